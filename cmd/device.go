package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/control"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/home"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
)

var _deviceCmdOpts struct {
	toggle bool
	level  int
	color  string
}

var deviceCmd = &cobra.Command{
	Use:   "device <id>",
	Short: "Toggle a device or set its level or colour",
	Args:  cobra.ExactArgs(1),

	PreRunE: func(cmd *cobra.Command, args []string) error {
		bindClientFlags(cmd)

		set := 0
		for _, f := range []string{"toggle", "level", "color"} {
			if cmd.Flags().Changed(f) {
				set++
			}
		}
		if set != 1 {
			return errors.New("exactly one of --toggle, --level or --color is required")
		}
		return nil
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := deviceIntent(cmd, args[0])
		if err != nil {
			return err
		}
		return doDevice(in)
	},
}

func init() {
	addClientFlags(deviceCmd)
	deviceCmd.Flags().BoolVar(&_deviceCmdOpts.toggle, "toggle", false, "switch the device on or off")
	deviceCmd.Flags().IntVar(&_deviceCmdOpts.level, "level", 0, "set brightness or blind position, 0-100")
	deviceCmd.Flags().StringVar(&_deviceCmdOpts.color, "color", "", "set light colour: white, yellow or orange")

	rootCmd.AddCommand(deviceCmd)
}

func deviceIntent(cmd *cobra.Command, id string) (control.Intent, error) {
	switch {
	case cmd.Flags().Changed("level"):
		return control.Intent{Kind: control.IntentLevel, DeviceID: id, Level: _deviceCmdOpts.level}, nil
	case cmd.Flags().Changed("color"):
		c, err := home.ParseColorClass(_deviceCmdOpts.color)
		if err != nil {
			return control.Intent{}, err
		}
		return control.Intent{Kind: control.IntentColor, DeviceID: id, Color: c}, nil
	}
	return control.Intent{Kind: control.IntentToggle, DeviceID: id}, nil
}

func doDevice(in control.Intent) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := refreshedSession(ctx)
	if err != nil {
		return err
	}

	d := s.Dispatcher(dispatcherOptions())
	if err := d.Dispatch(ctx, in); err != nil {
		return err
	}
	d.Wait()

	if st := s.Store().Status(); st.Degraded {
		return errors.New(st.LastError)
	}

	if dev, ok := s.Store().Device(in.DeviceID); ok {
		logging.Logger(ctx).WithField("device", dev.Name).Infof("sent %s: %s", in.Kind, dev.StatusText())
	}
	return nil
}
