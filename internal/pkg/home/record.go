package home

import (
	"encoding/json"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
)

/*
 *  Raw device records as listed by the hub.  Attribute decoding is
 *  lenient: a field with an unexpected shape is treated as absent so a
 *  single odd device cannot spoil a refresh.
 */

type DeviceType string

const (
	DeviceTypeLight      DeviceType = "light"
	DeviceTypeBlinds     DeviceType = "blinds"
	DeviceTypeController DeviceType = "controller"
	DeviceTypeGateway    DeviceType = "gateway"
)

// Controllable types get a card with controls; controllers are listed only
func (t DeviceType) Controllable() bool {
	return t == DeviceTypeLight || t == DeviceTypeBlinds
}

func (t DeviceType) grouped() bool {
	return t.Controllable() || t == DeviceTypeController
}

type RoomRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

type Coordinates struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type Attributes struct {
	CustomName         *string
	IsOn               *bool
	LightLevel         *float64
	ColorTemperature   *float64
	BatteryPercentage  *float64
	BlindsCurrentLevel *float64
	BlindsTargetLevel  *float64
	Model              *string
	FirmwareVersion    *string
	HardwareVersion    *string
	NextSunRise        *strfmt.DateTime
	NextSunSet         *strfmt.DateTime
	Coordinates        *Coordinates
}

type Record struct {
	ID              string       `json:"id"`
	Type            DeviceType   `json:"type"`
	IsReachable     bool         `json:"isReachable"`
	Room            *RoomRef     `json:"room,omitempty"`
	Attributes      Attributes   `json:"attributes"`
	Model           string       `json:"model,omitempty"`
	FirmwareVersion string       `json:"firmwareVersion,omitempty"`
	HardwareVersion string       `json:"hardwareVersion,omitempty"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// not an object, every attribute is absent
		return nil
	}

	a.CustomName = lenientString(fields, "customName")
	a.IsOn = lenientBool(fields, "isOn")
	a.LightLevel = lenientNumber(fields, "lightLevel")
	a.ColorTemperature = lenientNumber(fields, "colorTemperature")
	a.BatteryPercentage = lenientNumber(fields, "batteryPercentage")
	a.BlindsCurrentLevel = lenientNumber(fields, "blindsCurrentLevel")
	a.BlindsTargetLevel = lenientNumber(fields, "blindsTargetLevel")
	a.Model = lenientString(fields, "model")
	a.FirmwareVersion = lenientString(fields, "firmwareVersion")
	a.HardwareVersion = lenientString(fields, "hardwareVersion")
	a.NextSunRise = lenientDateTime(fields, "nextSunRise")
	a.NextSunSet = lenientDateTime(fields, "nextSunSet")

	if raw, ok := fields["coordinates"]; ok {
		var c Coordinates
		if err := json.Unmarshal(raw, &c); err == nil {
			a.Coordinates = &c
		}
	}

	return nil
}

func lenientString(fields map[string]json.RawMessage, key string) *string {
	var v string
	if raw, ok := fields[key]; ok && json.Unmarshal(raw, &v) == nil {
		return &v
	}
	return nil
}

func lenientBool(fields map[string]json.RawMessage, key string) *bool {
	var v bool
	if raw, ok := fields[key]; ok && json.Unmarshal(raw, &v) == nil {
		return &v
	}
	return nil
}

func lenientNumber(fields map[string]json.RawMessage, key string) *float64 {
	var v float64
	if raw, ok := fields[key]; ok && json.Unmarshal(raw, &v) == nil {
		return &v
	}
	return nil
}

func lenientDateTime(fields map[string]json.RawMessage, key string) *strfmt.DateTime {
	var v strfmt.DateTime
	if raw, ok := fields[key]; ok && json.Unmarshal(raw, &v) == nil && !time.Time(v).IsZero() {
		return &v
	}
	return nil
}

// DecodeSnapshot turns raw hub records into typed ones.  Records that are
// not JSON objects, or whose identity fields are malformed, are dropped.
func DecodeSnapshot(raw []json.RawMessage) []Record {
	records := make([]Record, 0, len(raw))

	for i, r := range raw {
		var rec Record
		if err := json.Unmarshal(r, &rec); err != nil {
			logging.Logger(nil).WithError(err).Debugf("dropping undecodable device record %d", i)
			continue
		}
		records = append(records, rec)
	}

	return records
}
