package api

import (
	"encoding/json"
	"net/http"

	"github.com/ctrlhome/automation-core/internal/apperr"
)

// Envelope is the uniform response shape every handler writes: code
// mirrors the HTTP status, message is human-readable, data carries the
// payload (nil on error, or for 204 responses).
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// writeEnvelope writes data wrapped in Envelope at status code with
// message. Callers that already hold an Envelope should pass it through
// writeRaw instead, keeping the wrapper idempotent.
func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	if env, ok := data.(Envelope); ok {
		writeRaw(w, env.Code, env)
		return
	}
	writeRaw(w, status, Envelope{Code: status, Message: message, Data: data})
}

// writeRaw writes v as JSON at status without re-wrapping it.
func writeRaw(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; the client may have gone away
		json.NewEncoder(w).Encode(v)
	}
}

// writeOK writes a 200 envelope carrying data.
func writeOK(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, "ok", data)
}

// writeCreated writes a 201 envelope carrying data.
func writeCreated(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusCreated, "created", data)
}

// writeNoContent writes a 204 with an empty body, per the envelope
// convention in the external-interfaces contract.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError classifies err against apperr's kind sentinels and writes
// the matching envelope status. Unclassified errors map to 500.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.StatusCode(err)
	writeEnvelope(w, status, err.Error(), nil)
}

// writeUnavailable writes a 503 envelope for a component that has not
// finished initializing or is not reachable.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusServiceUnavailable, message, nil)
}

// writeBadRequest writes a 400 envelope with message.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusBadRequest, message, nil)
}
