package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/credentials"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/discovery"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/handlers"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/hubapi"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
	"github.com/jake-scott/dirigera-bridge/pkg/middlewares"
)

var _serverCmdOpts struct {
	bindIP           string
	port             uint16
	corsOrigin       string
	staticDir        string
	gracefulTimeout  time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
	tokenFile        string
	hubAddress       string
	hubPort          uint16
	hubAPIVersion    string
	discoveryTimeout time.Duration
	hubTimeout       time.Duration
	maxConcurrent    int
	logRequests      bool
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Discover the hub and run the device proxy",

	RunE: func(cmd *cobra.Command, args []string) error {
		return doServer()
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("hub.token-file", "proxy.bind-ip")
	},
}

func init() {
	serverCmd.Flags().StringVar(&_serverCmdOpts.bindIP, "bind-ip", "127.0.0.1", "address the proxy listens on")
	serverCmd.Flags().Uint16Var(&_serverCmdOpts.port, "port", 3000, "port the proxy listens on")
	serverCmd.Flags().StringVar(&_serverCmdOpts.corsOrigin, "cors-origin", "*", "origin allowed to call the proxy from a browser")
	serverCmd.Flags().StringVar(&_serverCmdOpts.staticDir, "static-dir", "", "directory of browser assets to serve at /")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.gracefulTimeout, "graceful-timeout", time.Second*15, "duration to wait for server to finish, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.readTimeout, "read-timeout", time.Second*15, "duration to wait for request read, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.writeTimeout, "write-timeout", time.Second*60, "duration to wait for request write, eg. 1m or 10s")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tokenFile, "token-file", "token.txt", "file holding the hub bearer token")
	serverCmd.Flags().StringVar(&_serverCmdOpts.hubAddress, "hub-address", "", "hub address; skips mDNS discovery when set")
	serverCmd.Flags().Uint16Var(&_serverCmdOpts.hubPort, "hub-port", hubapi.DefaultPort, "hub API port")
	serverCmd.Flags().StringVar(&_serverCmdOpts.hubAPIVersion, "hub-api-version", hubapi.DefaultAPIVersion, "hub API path version")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.discoveryTimeout, "discovery-timeout", discovery.DefaultTimeout, "how long to wait for the hub to answer discovery")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.hubTimeout, "hub-timeout", time.Second*15, "maximum duration of a hub API call, eg. 1m or 10s")
	serverCmd.Flags().IntVar(&_serverCmdOpts.maxConcurrent, "max-concurrent", 4, "maximum hub calls in flight at once")
	serverCmd.Flags().BoolVar(&_serverCmdOpts.logRequests, "log-requests", false, "log requests and responses (only in debug mode)")

	errPanic(viper.GetViper().BindPFlag("proxy.bind-ip", serverCmd.Flags().Lookup("bind-ip")))
	errPanic(viper.GetViper().BindPFlag("proxy.port", serverCmd.Flags().Lookup("port")))
	errPanic(viper.GetViper().BindPFlag("proxy.cors-origin", serverCmd.Flags().Lookup("cors-origin")))
	errPanic(viper.GetViper().BindPFlag("proxy.static-dir", serverCmd.Flags().Lookup("static-dir")))
	errPanic(viper.GetViper().BindPFlag("proxy.graceful-timeout", serverCmd.Flags().Lookup("graceful-timeout")))
	errPanic(viper.GetViper().BindPFlag("proxy.read-timeout", serverCmd.Flags().Lookup("read-timeout")))
	errPanic(viper.GetViper().BindPFlag("proxy.write-timeout", serverCmd.Flags().Lookup("write-timeout")))
	errPanic(viper.GetViper().BindPFlag("hub.token-file", serverCmd.Flags().Lookup("token-file")))
	errPanic(viper.GetViper().BindPFlag("hub.address", serverCmd.Flags().Lookup("hub-address")))
	errPanic(viper.GetViper().BindPFlag("hub.port", serverCmd.Flags().Lookup("hub-port")))
	errPanic(viper.GetViper().BindPFlag("hub.api-version", serverCmd.Flags().Lookup("hub-api-version")))
	errPanic(viper.GetViper().BindPFlag("hub.discovery-timeout", serverCmd.Flags().Lookup("discovery-timeout")))
	errPanic(viper.GetViper().BindPFlag("hub.timeout", serverCmd.Flags().Lookup("hub-timeout")))
	errPanic(viper.GetViper().BindPFlag("hub.max-concurrent", serverCmd.Flags().Lookup("max-concurrent")))
	errPanic(viper.GetViper().BindPFlag("logging.log-requests", serverCmd.Flags().Lookup("log-requests")))

	rootCmd.AddCommand(serverCmd)
}

// locateHub returns the configured hub address, or runs discovery once
func locateHub(ctx context.Context) (string, error) {
	if addr := viper.GetString("hub.address"); addr != "" {
		logging.Logger(nil).Infof("using configured hub address %s", addr)
		return addr, nil
	}

	timeout := viper.GetDuration("hub.discovery-timeout")
	logging.Logger(nil).Infof("searching for hub (%s, up to %s)", discovery.ServiceType, timeout)

	res, err := discovery.NewLocator().Locate(ctx, timeout)
	if err != nil {
		return "", errors.Wrap(err, "locating hub")
	}

	logging.Logger(nil).Infof("found hub %s at %s", res.Name, res.Address)
	return res.Address, nil
}

func newRouter(hub hubapi.Hub, logRequests bool) http.Handler {
	dh := handlers.NewDevicesHandler(hub, viper.GetInt("hub.max-concurrent"), viper.GetDuration("hub.timeout"))

	r := mux.NewRouter()
	r.Use(middlewares.NewLoggingMw(logRequests, middlewares.DefaultCorrelationHeader))
	r.Use(middlewares.NewRecoveryMw())
	r.Use(middlewares.NewCorrelationMw(middlewares.DefaultCorrelationHeader))
	r.HandleFunc("/devices", dh.List).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}", dh.Patch).Methods(http.MethodPatch)

	if dir := viper.GetString("proxy.static-dir"); dir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(dir))).Methods(http.MethodGet, http.MethodHead)
	}

	return middlewares.NewCors(middlewares.ProxyCorsOptions(viper.GetString("proxy.cors-origin")), r)
}

func doServer() error {
	wait := viper.GetDuration("proxy.graceful-timeout")

	var logRequests bool
	if viper.GetBool("logging.log-requests") {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logRequests = true
		} else {
			logging.Logger(nil).Warn("log-requests ignored when not in debug mode")
		}
	}

	token, err := credentials.Load(viper.GetString("hub.token-file"))
	if err != nil {
		return err
	}
	logging.Logger(nil).Debugf("loaded hub token %s", token)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address, err := locateHub(ctx)
	if err != nil {
		return err
	}

	hub := hubapi.NewLiveClient(address, viper.GetInt("hub.port"), viper.GetString("hub.api-version"), token.Value())
	logging.Logger(nil).Infof("proxying to %s", hub.BaseURL())

	addr := net.JoinHostPort(viper.GetString("proxy.bind-ip"), strconv.Itoa(viper.GetInt("proxy.port")))
	s := &http.Server{
		Addr:         addr,
		ReadTimeout:  viper.GetDuration("proxy.read-timeout"),
		WriteTimeout: viper.GetDuration("proxy.write-timeout"),
		IdleTimeout:  time.Second * 60,
		Handler:      newRouter(hub, logRequests),
	}

	logging.Logger(nil).Infof("serving on %s", addr)
	serveErr := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Block until we receive a signal or the listener dies
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return errors.Wrapf(err, "serving on %s", addr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	logging.Logger(nil).Info("shutting down")
	if err := s.Shutdown(shutdownCtx); err != nil {
		logging.Logger(nil).WithError(err).Errorf("shutting down")
	}
	logging.Logger(nil).Info("exiting")
	return nil
}
