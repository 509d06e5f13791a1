package home

import (
	"fmt"
	"time"

	"github.com/go-openapi/swag"
)

// Theme is a room's header/text colour pair
type Theme struct {
	Header string `json:"header"`
	Text   string `json:"text"`
}

var palette = []Theme{
	{Header: "#8DBCD4", Text: "#1f2937"},
	{Header: "#9FB842", Text: "#1f2937"},
	{Header: "#FFDD51", Text: "#1f2937"},
	{Header: "#E3AA3C", Text: "#1f2937"},
	{Header: "#FFB7B9", Text: "#1f2937"},
	{Header: "#DC5D65", Text: "#ffffff"},
	{Header: "#F0DFB5", Text: "#1f2937"},
	{Header: "#3B6BE0", Text: "#ffffff"},
}

const DefaultIcon = "home"

var iconMapping = map[string]string{
	"rooms_sofa":    "couch",
	"rooms_bed":     "bed",
	"rooms_desk":    "briefcase",
	"rooms_sink":    "bath",
	"rooms_cutlery": "utensils",
}

// MapIcon translates the hub's room icon token
func MapIcon(token string) string {
	if icon, ok := iconMapping[token]; ok {
		return icon
	}
	return DefaultIcon
}

// Room groups the lights/blinds and controllers sharing a hub room id
type Room struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Theme       Theme    `json:"theme"`
	Icon        string   `json:"icon"`
	IsOpen      bool     `json:"isOpen"`
	Devices     []Device `json:"devices"`
	Controllers []Device `json:"controllers"`
}

func (r Room) clone() Room {
	nr := r
	nr.Devices = append([]Device(nil), r.Devices...)
	nr.Controllers = append([]Device(nil), r.Controllers...)
	return nr
}

// AnyAvailableOff reports whether some reachable device in the room is
// off, which makes a bulk toggle switch everything on
func (r Room) AnyAvailableOff() bool {
	for _, d := range r.Devices {
		if d.Available && !d.On {
			return true
		}
	}
	return false
}

// Gateway feeds the header/status display
type Gateway struct {
	ID          string     `json:"id"`
	Reachable   bool       `json:"reachable"`
	NextSunRise *time.Time `json:"nextSunRise,omitempty"`
	NextSunSet  *time.Time `json:"nextSunSet,omitempty"`
	Model       string     `json:"model,omitempty"`
	Firmware    string     `json:"firmware,omitempty"`
	Hardware    string     `json:"hardware,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
}

func NewGateway(rec Record) *Gateway {
	attrs := rec.Attributes
	gw := &Gateway{
		ID:        rec.ID,
		Reachable: rec.IsReachable,
		Model:     firstNonEmpty(rec.Model, swag.StringValue(attrs.Model)),
		Firmware:  firstNonEmpty(rec.FirmwareVersion, swag.StringValue(attrs.FirmwareVersion)),
		Hardware:  firstNonEmpty(rec.HardwareVersion, swag.StringValue(attrs.HardwareVersion)),
	}

	if attrs.NextSunRise != nil {
		t := time.Time(*attrs.NextSunRise)
		gw.NextSunRise = &t
	}
	if attrs.NextSunSet != nil {
		t := time.Time(*attrs.NextSunSet)
		gw.NextSunSet = &t
	}

	coords := attrs.Coordinates
	if coords == nil {
		coords = rec.Coordinates
	}
	if coords != nil {
		gw.Latitude = coords.Latitude
		gw.Longitude = coords.Longitude
	}

	return gw
}

// MapsURL links to the hub's configured location, or "" when unknown
func (g Gateway) MapsURL() string {
	if g.Latitude == nil || g.Longitude == nil || *g.Latitude == 0 || *g.Longitude == 0 {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/maps/place/%v,%v", *g.Latitude, *g.Longitude)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
