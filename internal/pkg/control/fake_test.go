package control

import (
	"context"
	"encoding/json"
	"sync"
)

type patchCall struct {
	DeviceID string
	Patch    map[string]interface{}
}

type fakeBackend struct {
	mu       sync.Mutex
	records  []json.RawMessage
	devErr   error
	patchErr error
	fetches  int
	patches  []patchCall
}

func (f *fakeBackend) Devices(ctx context.Context) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.devErr != nil {
		return nil, f.devErr
	}
	return f.records, nil
}

func (f *fakeBackend) PatchDevice(ctx context.Context, id string, attrs map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patchCall{DeviceID: id, Patch: attrs})
	return f.patchErr
}

func (f *fakeBackend) calls() []patchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patchCall(nil), f.patches...)
}

func (f *fakeBackend) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func raw(docs ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = json.RawMessage(d)
	}
	return out
}

const (
	lampA  = `{"id":"a","type":"light","isReachable":true,"room":{"id":"r1","name":"Living"},"attributes":{"customName":"Lamp A","isOn":true,"lightLevel":63,"colorTemperature":2200}}`
	lampB  = `{"id":"b","type":"light","isReachable":true,"room":{"id":"r1","name":"Living"},"attributes":{"customName":"Lamp B","isOn":false,"lightLevel":0}}`
	blindC = `{"id":"c","type":"blinds","isReachable":true,"room":{"id":"r1","name":"Living"},"attributes":{"customName":"Lamp C blind","isOn":false,"blindsCurrentLevel":0}}`
	lampD  = `{"id":"d","type":"light","isReachable":false,"room":{"id":"r1","name":"Living"},"attributes":{"customName":"Lamp D","isOn":false}}`
	remote = `{"id":"rc","type":"controller","isReachable":true,"room":{"id":"r1","name":"Living"},"attributes":{"customName":"Remote","batteryPercentage":50}}`
)
