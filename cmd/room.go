package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/control"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/home"
)

var roomToggleCmd = &cobra.Command{
	Use:   "room-toggle <room>",
	Short: "Switch every device in a room on, or off if all are on",
	Args:  cobra.ExactArgs(1),

	PreRun: func(cmd *cobra.Command, args []string) {
		bindClientFlags(cmd)
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doRoomToggle(args[0])
	},
}

func init() {
	addClientFlags(roomToggleCmd)
	rootCmd.AddCommand(roomToggleCmd)
}

func doRoomToggle(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := refreshedSession(ctx)
	if err != nil {
		return err
	}

	room, ok := s.Store().Room(name)
	if !ok {
		return fmt.Errorf("%w: %s", control.ErrUnknownRoom, name)
	}

	d := s.Dispatcher(dispatcherOptions())
	if err := d.Dispatch(ctx, control.Intent{Kind: control.IntentRoomToggle, RoomID: room.ID}); err != nil {
		return err
	}

	if room, ok = s.Store().Room(room.ID); ok {
		logRooms(ctx, []home.Room{room}, nil)
	}
	return nil
}
