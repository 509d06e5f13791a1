package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	oaerrors "github.com/go-openapi/errors"
	"github.com/go-openapi/validate"
	"github.com/gorilla/mux"
	"github.com/korovkin/limiter"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/hubapi"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
)

// DevicesHandler exposes the hub's device list and patch operations to
// local clients that cannot talk to the hub themselves
type DevicesHandler struct {
	hub     hubapi.Hub
	limit   *limiter.ConcurrencyLimiter
	timeout time.Duration
}

func NewDevicesHandler(hub hubapi.Hub, maxConcurrent int, timeout time.Duration) *DevicesHandler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &DevicesHandler{
		hub:     hub,
		limit:   limiter.NewConcurrencyLimiter(maxConcurrent),
		timeout: timeout,
	}
}

// PatchRequest is the body of PATCH /devices/{id}
type PatchRequest struct {
	Attributes map[string]interface{} `json:"attributes"`
}

// Validate reports a 422-style validation error when attributes are
// missing or empty
func (p *PatchRequest) Validate() error {
	var res []error

	if err := validate.Required("attributes", "body", p.Attributes); err != nil {
		res = append(res, err)
	} else if err := validate.MinItems("attributes", "body", int64(len(p.Attributes)), 1); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return oaerrors.CompositeValidationError(res...)
	}
	return nil
}

// upstream runs fn against the hub within the concurrency limit
func (h *DevicesHandler) upstream(r *http.Request, fn func(hub hubapi.Hub)) {
	hub := h.hub.WithContext(r.Context())
	if h.timeout > 0 {
		hub = hub.WithTimeout(h.timeout)
	}

	done := make(chan struct{})
	h.limit.Execute(func() {
		defer close(done)
		fn(hub)
	})
	<-done
}

// List serves GET /devices, relaying the hub's records unchanged
func (h *DevicesHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		records []json.RawMessage
		err     error
	)
	h.upstream(r, func(hub hubapi.Hub) {
		records, err = hub.Devices()
	})

	if err != nil {
		logging.Logger(r.Context()).WithError(err).Error("fetching devices from hub")
		sendError(w, http.StatusInternalServerError, "Failed to fetch devices")
		return
	}

	if records == nil {
		records = []json.RawMessage{}
	}
	sendJSONResponse(w, r, records)
}

// Patch serves PATCH /devices/{id}
func (h *DevicesHandler) Patch(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]

	var req PatchRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		logging.Logger(r.Context()).WithError(err).Info("bad device patch body")
		sendAPIError(w, oaerrors.New(http.StatusBadRequest, "Invalid request body: %s", err))
		return
	}

	if err := req.Validate(); err != nil {
		logging.Logger(r.Context()).WithError(err).Infof("rejected patch for %s", deviceID)
		sendAPIError(w, oaerrors.New(http.StatusBadRequest, "Invalid request body: 'attributes' object is required."))
		return
	}

	var err error
	h.upstream(r, func(hub hubapi.Hub) {
		err = hub.PatchDevice(deviceID, req.Attributes)
	})

	if err != nil {
		logging.Logger(r.Context()).WithError(err).Errorf("patching device %s", deviceID)
		sendError(w, http.StatusInternalServerError, "Failed to update device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func sendAPIError(w http.ResponseWriter, err oaerrors.Error) {
	sendError(w, int(err.Code()), err.Error())
}
