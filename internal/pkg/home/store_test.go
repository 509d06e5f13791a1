package home

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreReconcile(t *testing.T) {
	s := NewStore()
	r := NewReconciler()

	rooms := s.Reconcile(r, snapshot())
	require.Len(t, rooms, 2)
	assert.Equal(t, rooms, s.Rooms())
	assert.False(t, s.Status().Degraded)
	assert.False(t, s.Status().LastRefresh.IsZero())

	gw := s.Gateway()
	require.NotNil(t, gw)
	assert.Equal(t, "gw", gw.ID)
}

func TestStoreKeepsGatewayWhenMissing(t *testing.T) {
	s := NewStore()
	r := NewReconciler()

	s.Reconcile(r, snapshot())
	s.Reconcile(r, []Record{light("l1", "Lamp 10", kitchen, true, 40)})

	gw := s.Gateway()
	require.NotNil(t, gw)
	assert.Equal(t, "gw", gw.ID)
}

func TestStoreRoomsAreCopies(t *testing.T) {
	s := NewStore()
	s.Reconcile(NewReconciler(), snapshot())

	rooms := s.Rooms()
	rooms[0].Devices[0].On = !rooms[0].Devices[0].On
	rooms[0].IsOpen = false

	fresh := s.Rooms()
	assert.NotEqual(t, rooms[0].Devices[0].On, fresh[0].Devices[0].On)
	assert.True(t, fresh[0].IsOpen)
}

func TestStoreOpenFlagSurvivesReconcile(t *testing.T) {
	s := NewStore()
	r := NewReconciler()
	s.Reconcile(r, snapshot())

	open, ok := s.ToggleRoomOpen("r-bed")
	require.True(t, ok)
	assert.False(t, open)

	rooms := s.Reconcile(r, snapshot())
	assert.True(t, rooms[0].IsOpen)
	assert.False(t, rooms[1].IsOpen)

	assert.True(t, s.SetRoomOpen("r-bed", true))
	room, ok := s.Room("r-bed")
	require.True(t, ok)
	assert.True(t, room.IsOpen)

	_, ok = s.ToggleRoomOpen("nope")
	assert.False(t, ok)
	assert.False(t, s.SetRoomOpen("nope", true))
}

func TestStoreRoomLookup(t *testing.T) {
	s := NewStore()
	s.Reconcile(NewReconciler(), snapshot())

	room, ok := s.Room("kitchen")
	require.True(t, ok)
	assert.Equal(t, "r-kitchen", room.ID)

	room, ok = s.Room("r-bed")
	require.True(t, ok)
	assert.Equal(t, "Bedroom", room.Name)

	_, ok = s.Room("garage")
	assert.False(t, ok)
}

func TestStoreUpdateDevice(t *testing.T) {
	s := NewStore()
	s.Reconcile(NewReconciler(), snapshot())

	d, ok := s.UpdateDevice("l2", func(d *Device) {
		d.On = true
		d.Value = 100
	})
	require.True(t, ok)
	assert.True(t, d.On)

	got, ok := s.Device("l2")
	require.True(t, ok)
	assert.Equal(t, 100, got.Value)

	got, ok = s.Device("c1")
	require.True(t, ok)
	assert.Equal(t, "Remote", got.Name)

	_, ok = s.UpdateDevice("missing", func(d *Device) {})
	assert.False(t, ok)
}

func TestStoreMarkDegraded(t *testing.T) {
	s := NewStore()
	r := NewReconciler()
	s.Reconcile(r, snapshot())

	s.MarkDegraded(errors.New("hub unreachable"))

	st := s.Status()
	assert.True(t, st.Degraded)
	assert.Equal(t, "hub unreachable", st.LastError)
	assert.Len(t, s.Rooms(), 2, "rooms survive a failed refresh")

	s.Reconcile(r, snapshot())
	assert.False(t, s.Status().Degraded)
}
