package home

import (
	"fmt"
	"math"

	"github.com/go-openapi/swag"
)

// ColorClass is the coarse colour-temperature bucket shown for a light
type ColorClass string

const (
	ColorWhite  ColorClass = "white"
	ColorYellow ColorClass = "yellow"
	ColorOrange ColorClass = "orange"
)

// Temperature is the colour temperature (K) sent to the hub for a class
func (c ColorClass) Temperature() int {
	switch c {
	case ColorWhite:
		return 4000
	case ColorYellow:
		return 2700
	default:
		return 2200
	}
}

func ParseColorClass(s string) (ColorClass, error) {
	switch c := ColorClass(s); c {
	case ColorWhite, ColorYellow, ColorOrange:
		return c, nil
	}
	return "", fmt.Errorf("unknown color %q, want white, yellow or orange", s)
}

// ClassifyColor buckets a colour temperature reading.  An absent (or zero)
// reading is yellow while a present but low reading is orange.
func ClassifyColor(temperature *float64) ColorClass {
	t := swag.Float64Value(temperature)
	switch {
	case t == 0:
		return ColorYellow
	case t > 3000:
		return ColorWhite
	case t > 2500:
		return ColorYellow
	default:
		return ColorOrange
	}
}

// Device is the display model of a light, blind or controller
type Device struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      DeviceType `json:"type"`
	Available bool       `json:"available"`
	On        bool       `json:"on"`
	Value     int        `json:"value"`
	Color     ColorClass `json:"color,omitempty"`
	Battery   *int       `json:"battery,omitempty"`
}

// NewDevice derives the display model from a raw record.  It is a pure
// function of the record.
func NewDevice(rec Record) Device {
	attrs := rec.Attributes

	d := Device{
		ID:        rec.ID,
		Name:      swag.StringValue(attrs.CustomName),
		Type:      rec.Type,
		Available: rec.IsReachable,
		On:        swag.BoolValue(attrs.IsOn),
	}
	if d.Name == "" {
		d.Name = string(rec.Type)
	}

	switch rec.Type {
	case DeviceTypeLight:
		d.Value = level(attrs.LightLevel)
		d.Color = ClassifyColor(attrs.ColorTemperature)
	case DeviceTypeBlinds:
		d.Value = level(attrs.BlindsCurrentLevel)
		d.Battery = percentage(attrs.BatteryPercentage)
	case DeviceTypeController:
		d.Battery = percentage(attrs.BatteryPercentage)
	}

	return d
}

func level(v *float64) int {
	l := int(math.Round(swag.Float64Value(v)))
	switch {
	case l < 0:
		return 0
	case l > 100:
		return 100
	}
	return l
}

func percentage(v *float64) *int {
	if v == nil {
		return nil
	}
	p := level(v)
	return &p
}

// IsOff is how the card is styled: lights by their switch, blinds also
// when fully up
func (d Device) IsOff() bool {
	return !d.On || (d.Type == DeviceTypeBlinds && d.Value == 0)
}

// StatusText is the short state label shown on a card
func (d Device) StatusText() string {
	switch d.Type {
	case DeviceTypeLight:
		if !d.On {
			return "Off"
		}
		return fmt.Sprintf("%d%%", d.Value)
	case DeviceTypeBlinds:
		return BlindsStatusText(d.Value)
	}

	if d.Battery != nil {
		return fmt.Sprintf("%d%%", *d.Battery)
	}
	return ""
}

func BlindsStatusText(value int) string {
	switch value {
	case 0:
		return "Up"
	case 100:
		return "Down"
	}
	return fmt.Sprintf("%d%% Down", value)
}

type BatteryLevel string

const (
	BatteryFull          BatteryLevel = "full"
	BatteryThreeQuarters BatteryLevel = "three-quarters"
	BatteryHalf          BatteryLevel = "half"
	BatteryQuarter       BatteryLevel = "quarter"
	BatteryEmpty         BatteryLevel = "empty"
)

// ClassifyBattery returns the gauge level and whether to warn
func ClassifyBattery(pct int) (BatteryLevel, bool) {
	low := pct <= 10

	switch {
	case pct > 85:
		return BatteryFull, low
	case pct > 60:
		return BatteryThreeQuarters, low
	case pct > 40:
		return BatteryHalf, low
	case pct > 15:
		return BatteryQuarter, low
	}
	return BatteryEmpty, low
}
