package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ctrlhome/automation-core/internal/apperr"
	"github.com/ctrlhome/automation-core/internal/device"
)

// deviceStateNotFound builds the 404 returned when a device has no
// state-cache entry yet (distinct from the device itself not existing).
func deviceStateNotFound(id string) error {
	return apperr.NotFound("device state", id)
}

// handleStatusSensors returns the current state cache entries for every
// sensor-type device.
func (s *Server) handleStatusSensors(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeUnavailable(w, "state cache not initialized")
		return
	}
	writeOK(w, s.cache.ByType(device.KindSensor))
}

// handleStatusActuators returns the current state cache entries for
// every actuator-type device.
func (s *Server) handleStatusActuators(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeUnavailable(w, "state cache not initialized")
		return
	}
	writeOK(w, s.cache.ByType(device.KindActuator))
}

// deviceStatusResponse is the wire shape for GET
// /api/engine/status/device/{id}: timestamp plus the extracted state
// fields, omitting the cache's internal last_raw_payload.
type deviceStatusResponse struct {
	Timestamp time.Time      `json:"timestamp"`
	State     map[string]any `json:"state"`
}

// handleStatusDevice returns the current state cache entry for one device.
func (s *Server) handleStatusDevice(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeUnavailable(w, "state cache not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	entry, ok := s.cache.Get(id)
	if !ok {
		writeError(w, deviceStateNotFound(id))
		return
	}
	writeOK(w, deviceStatusResponse{Timestamp: entry.Timestamp, State: entry.StateFields})
}

// handleStatusAll returns every state cache entry, keyed by device id.
func (s *Server) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeUnavailable(w, "state cache not initialized")
		return
	}
	writeOK(w, s.cache.All())
}
