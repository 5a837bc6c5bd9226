package api

import (
	"net/http"
	"time"

	"github.com/ctrlhome/automation-core/internal/device"
	"github.com/ctrlhome/automation-core/internal/statecache"
)

// dashboardEntry is one device's row in the dashboard join.
type dashboardEntry struct {
	Definition   device.Device  `json:"definition"`
	CurrentState map[string]any `json:"current_state"`
	LastUpdated  *time.Time     `json:"last_updated"`
}

// dashboardResponse is the full dashboard aggregator payload.
type dashboardResponse struct {
	Devices   map[string]dashboardEntry `json:"devices"`
	Timestamp time.Time                 `json:"timestamp"`
}

// handleDashboardStatus joins DeviceRegistry and StateCache: every known
// device paired with its latest state, or an empty state and a nil
// last_updated for devices that haven't reported yet.
func (s *Server) handleDashboardStatus(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeUnavailable(w, "device registry not initialized")
		return
	}
	if s.cache == nil {
		writeUnavailable(w, "state cache not initialized")
		return
	}

	devices, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make(map[string]dashboardEntry, len(devices))
	for _, dev := range devices {
		entry := dashboardEntry{
			Definition:   dev,
			CurrentState: map[string]any{},
		}
		if cached, ok := s.cache.Get(dev.ID); ok {
			entry.CurrentState = stateFieldsOrEmpty(cached)
			ts := cached.Timestamp
			entry.LastUpdated = &ts
		}
		out[dev.ID] = entry
	}

	writeOK(w, dashboardResponse{Devices: out, Timestamp: time.Now().UTC()})
}

func stateFieldsOrEmpty(entry statecache.Entry) map[string]any {
	if entry.StateFields == nil {
		return map[string]any{}
	}
	return entry.StateFields
}
