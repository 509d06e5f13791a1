package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/home"
)

func newTestDispatcher(t *testing.T, records ...string) (*Dispatcher, *Session, *fakeBackend) {
	t.Helper()

	backend := &fakeBackend{records: raw(records...)}
	session := NewSession(backend, time.Hour)
	require.NoError(t, session.Refresh(context.Background()))

	d := session.Dispatcher(Options{Debounce: 30 * time.Millisecond, BulkDelay: time.Millisecond})
	return d, session, backend
}

func TestToggleIsOptimistic(t *testing.T) {
	d, s, backend := newTestDispatcher(t, lampA, lampB)

	require.NoError(t, d.Toggle(context.Background(), "b"))

	dev, ok := s.Store().Device("b")
	require.True(t, ok)
	assert.True(t, dev.On)
	assert.Equal(t, 100, dev.Value)

	d.Wait()
	calls := backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "b", calls[0].DeviceID)
	assert.Equal(t, map[string]interface{}{"isOn": true, "lightLevel": 100}, calls[0].Patch)
}

func TestToggleOffSendsOnlySwitch(t *testing.T) {
	d, _, backend := newTestDispatcher(t, lampA)

	require.NoError(t, d.Toggle(context.Background(), "a"))
	d.Wait()

	calls := backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]interface{}{"isOn": false}, calls[0].Patch)
}

func TestToggleBlinds(t *testing.T) {
	d, s, backend := newTestDispatcher(t, blindC)

	require.NoError(t, d.Toggle(context.Background(), "c"))
	d.Wait()

	calls := backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]interface{}{"blindsTargetLevel": 100}, calls[0].Patch)

	dev, _ := s.Store().Device("c")
	assert.Equal(t, "Down", dev.StatusText())
}

func TestToggleErrors(t *testing.T) {
	d, _, backend := newTestDispatcher(t, lampA, remote)

	err := d.Toggle(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrUnknownDevice))

	err = d.Toggle(context.Background(), "rc")
	assert.True(t, errors.Is(err, ErrNotControllable))

	d.Wait()
	assert.Empty(t, backend.calls())
}

func TestFailedSendMarksDegraded(t *testing.T) {
	d, s, backend := newTestDispatcher(t, lampA)
	backend.patchErr = errors.New("hub said no")

	require.NoError(t, d.Toggle(context.Background(), "a"))
	d.Wait()

	assert.True(t, s.Store().Status().Degraded)
	assert.Equal(t, "hub said no", s.Store().Status().LastError)
}

func TestSetLevelDebounces(t *testing.T) {
	d, s, backend := newTestDispatcher(t, lampA)

	for _, v := range []int{10, 20, 30, 40, 55} {
		require.NoError(t, d.SetLevel(context.Background(), "a", v))
		time.Sleep(2 * time.Millisecond)
	}

	dev, _ := s.Store().Device("a")
	assert.Equal(t, 55, dev.Value, "store follows every movement")
	assert.Empty(t, backend.calls(), "nothing sent before the quiet period")

	d.Wait()

	calls := backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]interface{}{"lightLevel": 55}, calls[0].Patch)
}

func TestSetLevelSeparateDevices(t *testing.T) {
	d, _, backend := newTestDispatcher(t, lampA, blindC)

	require.NoError(t, d.SetLevel(context.Background(), "a", 140))
	require.NoError(t, d.SetLevel(context.Background(), "c", 35))
	d.Wait()

	calls := backend.calls()
	require.Len(t, calls, 2)

	byID := map[string]map[string]interface{}{}
	for _, c := range calls {
		byID[c.DeviceID] = c.Patch
	}
	assert.Equal(t, map[string]interface{}{"lightLevel": 100}, byID["a"])
	assert.Equal(t, map[string]interface{}{"blindsTargetLevel": 35}, byID["c"])
}

func TestSetLevelAgainAfterSettling(t *testing.T) {
	d, _, backend := newTestDispatcher(t, lampA)

	require.NoError(t, d.SetLevel(context.Background(), "a", 20))
	d.Wait()
	require.NoError(t, d.SetLevel(context.Background(), "a", 80))
	d.Wait()

	calls := backend.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 80, calls[1].Patch["lightLevel"])
}

func TestSetColorKeepsBrightness(t *testing.T) {
	d, s, backend := newTestDispatcher(t, lampA)

	require.NoError(t, d.SetColor(context.Background(), "a", home.ColorWhite))

	dev, _ := s.Store().Device("a")
	assert.Equal(t, home.ColorWhite, dev.Color)

	d.Wait()
	calls := backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]interface{}{"colorTemperature": 4000, "lightLevel": 63}, calls[0].Patch)
}

func TestSetColorRejectsBlinds(t *testing.T) {
	d, _, _ := newTestDispatcher(t, blindC)

	err := d.SetColor(context.Background(), "c", home.ColorWhite)
	assert.True(t, errors.Is(err, ErrNotControllable))
}

func TestToggleRoomTurnsOnWhenAnyOff(t *testing.T) {
	d, _, backend := newTestDispatcher(t, lampA, lampB, blindC, lampD, remote)
	before := backend.fetchCount()

	require.NoError(t, d.ToggleRoom(context.Background(), "r1"))

	calls := backend.calls()
	require.Len(t, calls, 3, "unreachable devices and controllers are skipped")
	assert.Equal(t, "a", calls[0].DeviceID)
	assert.Equal(t, "b", calls[1].DeviceID)
	assert.Equal(t, "c", calls[2].DeviceID)
	assert.Equal(t, map[string]interface{}{"isOn": true, "lightLevel": 100}, calls[0].Patch)
	assert.Equal(t, map[string]interface{}{"isOn": true, "lightLevel": 100}, calls[1].Patch)
	assert.Equal(t, map[string]interface{}{"blindsTargetLevel": 100}, calls[2].Patch)

	assert.Equal(t, before+1, backend.fetchCount(), "room is refreshed afterwards")
}

func TestToggleRoomTurnsOffWhenAllOn(t *testing.T) {
	on := `{"id":"%s","type":"light","isReachable":true,"room":{"id":"r1","name":"Living"},"attributes":{"customName":"%s","isOn":true,"lightLevel":100}}`
	d, _, backend := newTestDispatcher(t,
		sprintf(on, "x", "Lamp 1"), sprintf(on, "y", "Lamp 2"), sprintf(on, "z", "Lamp 3"), lampD)

	require.NoError(t, d.ToggleRoom(context.Background(), "Living"))

	calls := backend.calls()
	require.Len(t, calls, 3)
	for _, c := range calls {
		assert.Equal(t, map[string]interface{}{"isOn": false, "lightLevel": 0}, c.Patch)
	}
}

func TestToggleRoomSpacesCommands(t *testing.T) {
	backend := &fakeBackend{records: raw(lampA, lampB, blindC)}
	s := NewSession(backend, time.Hour)
	require.NoError(t, s.Refresh(context.Background()))

	d := s.Dispatcher(Options{BulkDelay: 20 * time.Millisecond})

	start := time.Now()
	require.NoError(t, d.ToggleRoom(context.Background(), "r1"))
	assert.GreaterOrEqual(t, int64(time.Since(start)), int64(40*time.Millisecond))
}

func TestToggleRoomGuardsReentry(t *testing.T) {
	backend := &fakeBackend{records: raw(lampA, lampB, blindC)}
	s := NewSession(backend, time.Hour)
	require.NoError(t, s.Refresh(context.Background()))

	d := s.Dispatcher(Options{BulkDelay: 50 * time.Millisecond})

	done := make(chan error)
	go func() { done <- d.ToggleRoom(context.Background(), "r1") }()

	assert.Eventually(t, func() bool { return len(backend.calls()) > 0 }, time.Second, time.Millisecond)
	err := d.ToggleRoom(context.Background(), "r1")
	assert.True(t, errors.Is(err, ErrBulkInProgress))

	require.NoError(t, <-done)
	assert.Len(t, backend.calls(), 3)
}

func TestToggleRoomCancelled(t *testing.T) {
	backend := &fakeBackend{records: raw(lampA, lampB, blindC)}
	s := NewSession(backend, time.Hour)
	require.NoError(t, s.Refresh(context.Background()))

	d := s.Dispatcher(Options{BulkDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.ToggleRoom(ctx, "r1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Len(t, backend.calls(), 1)
}

func TestToggleRoomUnknown(t *testing.T) {
	d, _, _ := newTestDispatcher(t, lampA)
	err := d.ToggleRoom(context.Background(), "garage")
	assert.True(t, errors.Is(err, ErrUnknownRoom))
}

func TestDispatch(t *testing.T) {
	d, _, backend := newTestDispatcher(t, lampA)

	require.NoError(t, d.Dispatch(context.Background(), Intent{Kind: IntentColor, DeviceID: "a", Color: home.ColorOrange}))
	d.Wait()
	require.Len(t, backend.calls(), 1)
	assert.Equal(t, 2200, backend.calls()[0].Patch["colorTemperature"])

	assert.Error(t, d.Dispatch(context.Background(), Intent{Kind: "dance"}))
}
