package home

import (
	"sync"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
)

// ThemeAssigner hands out palette themes by room name.  The first time a
// name is seen it gets the next theme, cycling once the palette runs out;
// after that the name always maps to the same theme.
type ThemeAssigner struct {
	mu     sync.Mutex
	byName map[string]Theme
	next   int
}

func NewThemeAssigner() *ThemeAssigner {
	return &ThemeAssigner{byName: make(map[string]Theme)}
}

func (a *ThemeAssigner) Assign(roomName string) Theme {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t, ok := a.byName[roomName]; ok {
		return t
	}

	t := palette[a.next%len(palette)]
	a.byName[roomName] = t
	a.next++
	return t
}

// Reconciler folds hub snapshots into the room model
type Reconciler struct {
	themes *ThemeAssigner
}

func NewReconciler() *Reconciler {
	return &Reconciler{themes: NewThemeAssigner()}
}

// Reconcile builds a fresh room list from snapshot.  Rooms appear in the
// order their first device appears in the snapshot.  The only thing
// carried over from previous is each room's IsOpen flag, matched by id;
// rooms not seen before start open.  It never fails: devices of other
// types or without a room are skipped.
func (r *Reconciler) Reconcile(previous []Room, snapshot []Record) ([]Room, *Gateway) {
	var gateway *Gateway

	wasOpen := make(map[string]bool, len(previous))
	for _, room := range previous {
		wasOpen[room.ID] = room.IsOpen
	}

	byID := make(map[string]*Room)
	var order []string

	for _, rec := range snapshot {
		if rec.Type == DeviceTypeGateway {
			if gateway == nil {
				gateway = NewGateway(rec)
			}
			continue
		}

		if !rec.Type.grouped() || rec.Room == nil || rec.Room.ID == "" {
			continue
		}

		room, ok := byID[rec.Room.ID]
		if !ok {
			isOpen, seen := wasOpen[rec.Room.ID]
			if !seen {
				isOpen = true
			}

			room = &Room{
				ID:          rec.Room.ID,
				Name:        rec.Room.Name,
				Theme:       r.themes.Assign(rec.Room.Name),
				Icon:        MapIcon(rec.Room.Icon),
				IsOpen:      isOpen,
				Devices:     []Device{},
				Controllers: []Device{},
			}
			byID[rec.Room.ID] = room
			order = append(order, rec.Room.ID)
		}

		d := NewDevice(rec)
		if rec.Type.Controllable() {
			room.Devices = append(room.Devices, d)
		} else {
			room.Controllers = append(room.Controllers, d)
		}
	}

	rooms := make([]Room, 0, len(order))
	for _, id := range order {
		room := byID[id]
		SortDevices(room.Devices)
		SortDevices(room.Controllers)
		rooms = append(rooms, *room)
	}

	logging.Logger(nil).Debugf("reconciled %d records into %d rooms", len(snapshot), len(rooms))

	return rooms, gateway
}
