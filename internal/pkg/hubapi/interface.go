package hubapi

import (
	"context"
	"encoding/json"
	"time"
)

// Hub is the authenticated API of the local smart-home hub
type Hub interface {
	WithContext(ctx context.Context) Hub
	WithTimeout(d time.Duration) Hub

	// Devices returns the hub's device records exactly as it sent them
	Devices() ([]json.RawMessage, error)

	// PatchDevice applies a partial attribute update to one device
	PatchDevice(deviceID string, attributes map[string]interface{}) error
}
