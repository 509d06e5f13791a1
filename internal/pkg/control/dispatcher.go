package control

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/pkg/errors"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/home"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
)

const (
	DefaultDebounce  = 250 * time.Millisecond
	DefaultBulkDelay = 150 * time.Millisecond
)

type Options struct {
	Debounce  time.Duration
	BulkDelay time.Duration
}

func DefaultOptions() Options {
	return Options{Debounce: DefaultDebounce, BulkDelay: DefaultBulkDelay}
}

// Dispatcher turns intents into backend commands and applies optimistic
// updates to the store.  Send failures are logged and mark the store
// degraded; the next poll is what repairs any divergence.
type Dispatcher struct {
	backend Backend
	store   *home.Store
	refresh func(ctx context.Context) error
	opts    Options

	inflight sync.WaitGroup

	mu         sync.Mutex
	debouncers map[string]func(func())
	pending    map[string]pendingLevel
	bulk       map[string]bool
}

type pendingLevel struct {
	ctx   context.Context
	cmd   Command
	level int
}

// NewDispatcher builds a dispatcher.  refresh, if not nil, is run after a
// room toggle has sent all its commands.
func NewDispatcher(backend Backend, store *home.Store, refresh func(ctx context.Context) error, opts Options) *Dispatcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.BulkDelay < 0 {
		opts.BulkDelay = 0
	}

	return &Dispatcher{
		backend:    backend,
		store:      store,
		refresh:    refresh,
		opts:       opts,
		debouncers: make(map[string]func(func())),
		pending:    make(map[string]pendingLevel),
		bulk:       make(map[string]bool),
	}
}

// Dispatch routes an intent to the matching operation
func (d *Dispatcher) Dispatch(ctx context.Context, in Intent) error {
	switch in.Kind {
	case IntentToggle:
		return d.Toggle(ctx, in.DeviceID)
	case IntentLevel:
		return d.SetLevel(ctx, in.DeviceID, in.Level)
	case IntentColor:
		return d.SetColor(ctx, in.DeviceID, in.Color)
	case IntentRoomToggle:
		return d.ToggleRoom(ctx, in.RoomID)
	}
	return errors.Errorf("unknown intent %q", in.Kind)
}

func (d *Dispatcher) controllable(id string) (home.Device, error) {
	dev, ok := d.store.Device(id)
	if !ok {
		return home.Device{}, errors.Wrap(ErrUnknownDevice, id)
	}
	if !dev.Type.Controllable() {
		return home.Device{}, errors.Wrap(ErrNotControllable, id)
	}
	return dev, nil
}

// Toggle flips a device on or off.  The store changes at once and the
// patch is sent in the background.
func (d *Dispatcher) Toggle(ctx context.Context, deviceID string) error {
	dev, err := d.controllable(deviceID)
	if err != nil {
		return err
	}

	on := !dev.On
	cmd := Command{DeviceID: deviceID, Patch: TogglePatch(dev, on), Class: Immediate}

	d.store.UpdateDevice(deviceID, func(dev *home.Device) {
		dev.On = on
		dev.Value = fullOrEmpty(on)
	})

	d.sendAsync(ctx, cmd)
	return nil
}

// SetColor changes a light's colour class, keeping its brightness
func (d *Dispatcher) SetColor(ctx context.Context, deviceID string, c home.ColorClass) error {
	dev, err := d.controllable(deviceID)
	if err != nil {
		return err
	}
	if dev.Type != home.DeviceTypeLight {
		return errors.Wrapf(ErrNotControllable, "%s has no colour", deviceID)
	}

	cmd := Command{DeviceID: deviceID, Patch: ColorPatch(dev, c), Class: Immediate}

	d.store.UpdateDevice(deviceID, func(dev *home.Device) {
		dev.Color = c
	})

	d.sendAsync(ctx, cmd)
	return nil
}

// SetLevel records a slider movement.  The store follows every movement
// but only the last value within a quiet period is sent.
func (d *Dispatcher) SetLevel(ctx context.Context, deviceID string, level int) error {
	dev, err := d.controllable(deviceID)
	if err != nil {
		return err
	}

	level = clampLevel(level)
	d.store.UpdateDevice(deviceID, func(dev *home.Device) {
		dev.Value = level
	})

	cmd := Command{DeviceID: deviceID, Patch: LevelPatch(dev, level), Class: Debounced}

	d.mu.Lock()
	debounced, ok := d.debouncers[deviceID]
	if !ok {
		debounced = debounce.New(d.opts.Debounce)
		d.debouncers[deviceID] = debounced
	}
	if _, waiting := d.pending[deviceID]; !waiting {
		d.inflight.Add(1)
	}
	d.pending[deviceID] = pendingLevel{ctx: context.WithoutCancel(ctx), cmd: cmd, level: level}
	debounced(func() { d.flushLevel(deviceID) })
	d.mu.Unlock()

	return nil
}

func (d *Dispatcher) flushLevel(deviceID string) {
	d.mu.Lock()
	p, ok := d.pending[deviceID]
	delete(d.pending, deviceID)
	d.mu.Unlock()

	// An earlier timer that lost the race with a newer movement
	if !ok {
		return
	}
	defer d.inflight.Done()

	logging.Logger(p.ctx).Debugf("sending settled level %d for %s", p.level, deviceID)
	d.send(p.ctx, p.cmd)
}

// ToggleRoom switches every reachable device in a room on if any of them
// is off, otherwise off.  Commands go out one at a time with a gap
// between them, then the room model is refreshed.  Only one toggle per
// room may run at once.
func (d *Dispatcher) ToggleRoom(ctx context.Context, roomID string) error {
	room, ok := d.store.Room(roomID)
	if !ok {
		return errors.Wrap(ErrUnknownRoom, roomID)
	}

	d.mu.Lock()
	if d.bulk[room.ID] {
		d.mu.Unlock()
		return errors.Wrap(ErrBulkInProgress, room.Name)
	}
	d.bulk[room.ID] = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.bulk, room.ID)
		d.mu.Unlock()
	}()

	ctx = logging.WithRoomID(ctx, room.ID)
	on := room.AnyAvailableOff()

	var cmds []Command
	for _, dev := range room.Devices {
		if !dev.Available {
			continue
		}
		cmds = append(cmds, Command{DeviceID: dev.ID, Patch: BulkPatch(dev, on), Class: SequencedDelayed})
	}

	logging.Logger(ctx).Infof("turning %d devices in %s %s", len(cmds), room.Name, onOff(on))

	for i, cmd := range cmds {
		if i > 0 {
			if err := sleep(ctx, d.opts.BulkDelay); err != nil {
				return err
			}
		}
		d.send(ctx, cmd)
	}

	if d.refresh == nil {
		return nil
	}
	if err := d.refresh(ctx); err != nil {
		return errors.Wrap(err, "refreshing after room toggle")
	}
	return nil
}

// Wait blocks until every background and debounced send has finished
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) sendAsync(ctx context.Context, cmd Command) {
	ctx = context.WithoutCancel(ctx)

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.send(ctx, cmd)
	}()
}

func (d *Dispatcher) send(ctx context.Context, cmd Command) {
	err := d.backend.PatchDevice(ctx, cmd.DeviceID, cmd.Patch)
	if err != nil {
		logging.Logger(ctx).WithError(err).Errorf("%s command for %s failed", cmd.Class, cmd.DeviceID)
		d.store.MarkDegraded(err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
