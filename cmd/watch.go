package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/home"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/statepub"
	"github.com/jake-scott/dirigera-bridge/version"
)

var _watchCmdOpts struct {
	mqttBroker      string
	mqttClientID    string
	mqttTopicPrefix string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the proxy and report room state",

	PreRun: func(cmd *cobra.Command, args []string) {
		bindClientFlags(cmd)
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doWatch()
	},
}

func init() {
	addClientFlags(watchCmd)
	watchCmd.Flags().StringVar(&_watchCmdOpts.mqttBroker, "mqtt-broker", "", "MQTT broker URL to mirror state to, eg. tcp://localhost:1883")
	watchCmd.Flags().StringVar(&_watchCmdOpts.mqttClientID, "mqtt-client-id", "dirigera-bridge", "MQTT client ID")
	watchCmd.Flags().StringVar(&_watchCmdOpts.mqttTopicPrefix, "mqtt-topic-prefix", statepub.DefaultTopicPrefix, "MQTT topic prefix")

	errPanic(viper.GetViper().BindPFlag("mqtt.broker", watchCmd.Flags().Lookup("mqtt-broker")))
	errPanic(viper.GetViper().BindPFlag("mqtt.client-id", watchCmd.Flags().Lookup("mqtt-client-id")))
	errPanic(viper.GetViper().BindPFlag("mqtt.topic-prefix", watchCmd.Flags().Lookup("mqtt-topic-prefix")))

	rootCmd.AddCommand(watchCmd)
}

func logRooms(ctx context.Context, rooms []home.Room, gw *home.Gateway) {
	if gw != nil {
		entry := logging.Logger(ctx).WithField("reachable", gw.Reachable)
		if gw.NextSunRise != nil && gw.NextSunSet != nil {
			entry = entry.WithField("sunrise", gw.NextSunRise.Local().Format("15:04")).
				WithField("sunset", gw.NextSunSet.Local().Format("15:04"))
		}
		if link := gw.MapsURL(); link != "" {
			entry = entry.WithField("location", link)
		}
		entry.Infof("hub %s firmware %s", gw.Model, gw.Firmware)
	}

	for _, room := range rooms {
		states := make([]string, 0, len(room.Devices)+len(room.Controllers))
		for _, d := range room.Devices {
			if !d.Available {
				states = append(states, d.Name+": unavailable")
				continue
			}
			states = append(states, d.Name+": "+d.StatusText())
		}
		for _, c := range room.Controllers {
			s := c.Name + ": " + c.StatusText()
			if c.Battery != nil {
				if _, low := home.ClassifyBattery(*c.Battery); low {
					s += " (battery low)"
				}
			}
			states = append(states, s)
		}

		logging.Logger(ctx).WithField("room", room.Name).Info(strings.Join(states, ", "))
	}
}

func doWatch() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newSession()
	s.OnUpdate(logRooms)

	if broker := viper.GetString("mqtt.broker"); broker != "" {
		clientID := viper.GetString("mqtt.client-id")
		if clientID == "" {
			clientID = strings.ReplaceAll(version.UserAgent(), "/", "-")
		}

		mirror, err := statepub.Connect(broker, clientID, viper.GetString("mqtt.topic-prefix"))
		if err != nil {
			return err
		}
		defer mirror.Close()

		s.OnUpdate(mirror.Update)
	}

	logging.Logger(nil).Infof("watching %s every %s", viper.GetString("client.proxy-url"), viper.GetDuration("client.poll-interval"))
	return s.Run(ctx)
}
