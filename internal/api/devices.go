package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ctrlhome/automation-core/internal/bus"
	"github.com/ctrlhome/automation-core/internal/device"
)

// handleListDevices returns every device definition.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeUnavailable(w, "device registry not initialized")
		return
	}

	devices, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, devices)
}

// handleGetDevice returns one device by id.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeUnavailable(w, "device registry not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	dev, err := s.registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, dev)
}

// handleCreateDevice creates a new device definition.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeUnavailable(w, "device registry not initialized")
		return
	}

	var def device.Device
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	created, err := s.registry.Add(r.Context(), &def)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, created)
}

// handleUpdateDevice shallow-merges a partial update onto an existing device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeUnavailable(w, "device registry not initialized")
		return
	}

	id := chi.URLParam(r, "id")

	var partial device.Device
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	updated, err := s.registry.Update(r.Context(), id, &partial)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, updated)
}

// handleDeleteDevice removes a device definition. Dependent rules are
// left in place, per the dependent-object policy.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeUnavailable(w, "device registry not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.registry.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeNoContent(w)
}

// executeCommandRequest is the body of POST /api/engine/devices/command.
type executeCommandRequest struct {
	DeviceID string         `json:"device_id"`
	Command  string         `json:"command"`
	Params   map[string]any `json:"params"`
}

// handleExecuteCommand validates and resolves device_id/command through
// DeviceRegistry, then publishes the rendered payload through BusClient
// tagged source=api.
func (s *Server) handleExecuteCommand(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeUnavailable(w, "device registry not initialized")
		return
	}
	if s.bus == nil {
		writeUnavailable(w, "bus client not initialized")
		return
	}

	var req executeCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	topic, payload, err := s.registry.ResolveCommand(r.Context(), req.DeviceID, req.Command, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}

	const defaultQoS = 1
	record, err := s.bus.Publish(topic, payload, defaultQoS, false, bus.SourceAPI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, record)
}
