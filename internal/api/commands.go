package api

import "net/http"

// handleCommandHistory returns the bus client's command-history ring in
// insertion order.
func (s *Server) handleCommandHistory(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeUnavailable(w, "bus client not initialized")
		return
	}
	writeOK(w, s.bus.History())
}
