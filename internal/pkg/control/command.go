package control

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/home"
)

var (
	ErrUnknownDevice   = errors.New("unknown device")
	ErrUnknownRoom     = errors.New("unknown room")
	ErrNotControllable = errors.New("device cannot be controlled")
	ErrBulkInProgress  = errors.New("room toggle already in progress")
)

// Backend is whatever the dispatcher sends patches to and the session
// polls: the proxy in normal use
type Backend interface {
	Devices(ctx context.Context) ([]json.RawMessage, error)
	PatchDevice(ctx context.Context, deviceID string, attributes map[string]interface{}) error
}

// Class says how a command reaches the backend
type Class int

const (
	// Immediate commands are sent at once and not awaited
	Immediate Class = iota
	// Debounced commands only go out after a quiet period, last one wins
	Debounced
	// SequencedDelayed commands are sent one at a time with a gap between
	SequencedDelayed
)

func (c Class) String() string {
	switch c {
	case Immediate:
		return "immediate"
	case Debounced:
		return "debounced"
	case SequencedDelayed:
		return "sequenced-delayed"
	}
	return "unknown"
}

// Command is one attribute patch bound for one device
type Command struct {
	DeviceID string
	Patch    map[string]interface{}
	Class    Class
}

type IntentKind string

const (
	IntentToggle     IntentKind = "toggle"
	IntentLevel      IntentKind = "level"
	IntentColor      IntentKind = "color"
	IntentRoomToggle IntentKind = "room-toggle"
)

// Intent is a user action against a device or room
type Intent struct {
	Kind     IntentKind
	DeviceID string
	RoomID   string
	Level    int
	Color    home.ColorClass
}

// TogglePatch is what flipping a device's switch sends.  Lights turned on
// are also driven to full brightness; blinds go fully down or up.
func TogglePatch(d home.Device, on bool) map[string]interface{} {
	if d.Type == home.DeviceTypeLight {
		patch := map[string]interface{}{"isOn": on}
		if on {
			patch["lightLevel"] = 100
		}
		return patch
	}
	return map[string]interface{}{"blindsTargetLevel": fullOrEmpty(on)}
}

// LevelPatch sets brightness for a light or position for a blind
func LevelPatch(d home.Device, level int) map[string]interface{} {
	if d.Type == home.DeviceTypeLight {
		return map[string]interface{}{"lightLevel": level}
	}
	return map[string]interface{}{"blindsTargetLevel": level}
}

// ColorPatch carries the current brightness alongside the temperature so
// the hub does not reset it
func ColorPatch(d home.Device, c home.ColorClass) map[string]interface{} {
	return map[string]interface{}{
		"colorTemperature": c.Temperature(),
		"lightLevel":       d.Value,
	}
}

// BulkPatch is the per-device patch for a whole-room toggle
func BulkPatch(d home.Device, on bool) map[string]interface{} {
	if d.Type == home.DeviceTypeLight {
		return map[string]interface{}{"isOn": on, "lightLevel": fullOrEmpty(on)}
	}
	return map[string]interface{}{"blindsTargetLevel": fullOrEmpty(on)}
}

func fullOrEmpty(on bool) int {
	if on {
		return 100
	}
	return 0
}

func clampLevel(l int) int {
	switch {
	case l < 0:
		return 0
	case l > 100:
		return 100
	}
	return l
}
