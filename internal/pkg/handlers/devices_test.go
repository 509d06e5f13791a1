package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/hubapi"
)

type mockHub struct {
	mock.Mock
}

func (m *mockHub) WithContext(ctx context.Context) hubapi.Hub { return m }
func (m *mockHub) WithTimeout(d time.Duration) hubapi.Hub     { return m }

func (m *mockHub) Devices() ([]json.RawMessage, error) {
	args := m.Called()
	records, _ := args.Get(0).([]json.RawMessage)
	return records, args.Error(1)
}

func (m *mockHub) PatchDevice(deviceID string, attributes map[string]interface{}) error {
	args := m.Called(deviceID, attributes)
	return args.Error(0)
}

func newRouter(hub hubapi.Hub) *mux.Router {
	h := NewDevicesHandler(hub, 2, time.Second)
	r := mux.NewRouter()
	r.HandleFunc("/devices", h.List).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}", h.Patch).Methods(http.MethodPatch)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListPassesRecordsThrough(t *testing.T) {
	hub := &mockHub{}
	hub.On("Devices").Return([]json.RawMessage{
		json.RawMessage(`{"id":"a","type":"light","extra":{"kept":true}}`),
	}, nil)

	rec := serve(newRouter(hub), http.MethodGet, "/devices", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"id":"a","type":"light","extra":{"kept":true}}]`, rec.Body.String())
	hub.AssertExpectations(t)
}

func TestListEmpty(t *testing.T) {
	hub := &mockHub{}
	hub.On("Devices").Return(nil, nil)

	rec := serve(newRouter(hub), http.MethodGet, "/devices", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListHubFailure(t *testing.T) {
	hub := &mockHub{}
	hub.On("Devices").Return(nil, errors.New("hub unreachable"))

	rec := serve(newRouter(hub), http.MethodGet, "/devices", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to fetch devices")
}

func TestPatchForwardsAttributes(t *testing.T) {
	hub := &mockHub{}
	hub.On("PatchDevice", "dev-1", map[string]interface{}{"isOn": true, "lightLevel": float64(100)}).Return(nil)

	rec := serve(newRouter(hub), http.MethodPatch, "/devices/dev-1", `{"attributes":{"isOn":true,"lightLevel":100}}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	hub.AssertExpectations(t)
}

func TestPatchRejectsBadBodies(t *testing.T) {
	for name, body := range map[string]string{
		"empty object":     `{}`,
		"null attributes":  `{"attributes":null}`,
		"empty attributes": `{"attributes":{}}`,
		"wrong type":       `{"attributes":"on"}`,
		"not json":         `attributes`,
		"two objects":      `{"attributes":{"isOn":true}}{}`,
	} {
		t.Run(name, func(t *testing.T) {
			hub := &mockHub{}

			rec := serve(newRouter(hub), http.MethodPatch, "/devices/dev-1", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			hub.AssertNotCalled(t, "PatchDevice", mock.Anything, mock.Anything)
		})
	}
}

func TestPatchRejectsOtherContentTypes(t *testing.T) {
	hub := &mockHub{}

	req := httptest.NewRequest(http.MethodPatch, "/devices/dev-1", strings.NewReader(`{"attributes":{"isOn":true}}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	newRouter(hub).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	hub.AssertNotCalled(t, "PatchDevice", mock.Anything, mock.Anything)
}

func TestPatchHubFailure(t *testing.T) {
	hub := &mockHub{}
	hub.On("PatchDevice", "dev-1", mock.Anything).Return(&hubapi.Error{Method: "PATCH", Path: "/devices/dev-1", StatusCode: 400})

	rec := serve(newRouter(hub), http.MethodPatch, "/devices/dev-1", `{"attributes":{"isOn":false}}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to update device")
}

func TestPatchRequestValidate(t *testing.T) {
	require.Error(t, (&PatchRequest{}).Validate())
	require.Error(t, (&PatchRequest{Attributes: map[string]interface{}{}}).Validate())
	require.NoError(t, (&PatchRequest{Attributes: map[string]interface{}{"isOn": true}}).Validate())
}
