package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/control"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/proxyapi"
)

// Flags shared by every command that talks to a running proxy
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("proxy-url", "http://127.0.0.1:3000", "base URL of the running proxy")
	cmd.Flags().Duration("proxy-timeout", time.Second*15, "maximum duration of a proxy call")
	cmd.Flags().Duration("poll-interval", control.DefaultPollInterval, "how often to refresh device state")
	cmd.Flags().Duration("debounce", control.DefaultDebounce, "quiet period before a level change is sent")
	cmd.Flags().Duration("bulk-delay", control.DefaultBulkDelay, "gap between commands of a room toggle")
}

// viper keys are global, so bind just before the command runs to pick up
// the flags of the command actually invoked
func bindClientFlags(cmd *cobra.Command) {
	errPanic(viper.GetViper().BindPFlag("client.proxy-url", cmd.Flags().Lookup("proxy-url")))
	errPanic(viper.GetViper().BindPFlag("client.timeout", cmd.Flags().Lookup("proxy-timeout")))
	errPanic(viper.GetViper().BindPFlag("client.poll-interval", cmd.Flags().Lookup("poll-interval")))
	errPanic(viper.GetViper().BindPFlag("client.debounce", cmd.Flags().Lookup("debounce")))
	errPanic(viper.GetViper().BindPFlag("client.bulk-delay", cmd.Flags().Lookup("bulk-delay")))
}

func newSession() *control.Session {
	proxy := proxyapi.NewClient(viper.GetString("client.proxy-url")).WithTimeout(viper.GetDuration("client.timeout"))
	return control.NewSession(proxy, viper.GetDuration("client.poll-interval"))
}

func dispatcherOptions() control.Options {
	return control.Options{
		Debounce:  viper.GetDuration("client.debounce"),
		BulkDelay: viper.GetDuration("client.bulk-delay"),
	}
}

// refreshedSession runs one fetch and reconcile so rooms and devices can be
// looked up
func refreshedSession(ctx context.Context) (*control.Session, error) {
	s := newSession()
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
