package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware,
// per the canonical paths in the external-interfaces contract.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.securityHeadersMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api/engine", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)
			r.Post("/command", s.handleExecuteCommand)
			r.Get("/{id}", s.handleGetDevice)
			r.Put("/{id}", s.handleUpdateDevice)
			r.Delete("/{id}", s.handleDeleteDevice)
		})

		r.Route("/status", func(r chi.Router) {
			r.Get("/sensors", s.handleStatusSensors)
			r.Get("/actuators", s.handleStatusActuators)
			r.Get("/device/{id}", s.handleStatusDevice)
			r.Get("/all", s.handleStatusAll)
		})

		r.Get("/dashboard/status", s.handleDashboardStatus)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/{ident}", s.handleGetRule)
			r.Put("/{ident}", s.handleUpdateRule)
			r.Delete("/{ident}", s.handleDeleteRule)
		})

		r.Get("/commands/history", s.handleCommandHistory)

		r.Get("/stream", s.handleStream)
	})

	return r
}
