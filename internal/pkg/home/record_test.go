package home

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(t *testing.T, docs ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = json.RawMessage(d)
	}
	return out
}

func TestDecodeSnapshotLenientAttributes(t *testing.T) {
	records := DecodeSnapshot(raw(t,
		`{"id":"l1","type":"light","isReachable":true,"room":{"id":"r1","name":"Kitchen","icon":"rooms_cutlery"},
		  "attributes":{"customName":"Ceiling","isOn":true,"lightLevel":"bright","colorTemperature":2700}}`,
		`{"id":"g1","type":"gateway","isReachable":true,
		  "attributes":{"nextSunRise":"2024-03-01T06:45:00.000Z","nextSunSet":"not a date","model":"DIRIGERA Hub"}}`,
		`"not an object"`,
		`{"id":"b1","type":"blinds","attributes":[1,2,3]}`,
	))

	require.Len(t, records, 3)

	light := records[0]
	assert.Equal(t, DeviceTypeLight, light.Type)
	assert.Equal(t, "Ceiling", *light.Attributes.CustomName)
	assert.Nil(t, light.Attributes.LightLevel, "malformed level should read as absent")
	assert.Equal(t, 2700.0, *light.Attributes.ColorTemperature)
	assert.Equal(t, "rooms_cutlery", light.Room.Icon)

	gw := records[1]
	require.NotNil(t, gw.Attributes.NextSunRise)
	assert.Equal(t, 6, time.Time(*gw.Attributes.NextSunRise).UTC().Hour())
	assert.Nil(t, gw.Attributes.NextSunSet)

	blinds := records[2]
	assert.Nil(t, blinds.Attributes.IsOn)
	assert.Nil(t, blinds.Room)
}
