// Package api provides the HTTP REST API and WebSocket event stream for
// automation-core.
//
// It exposes device registry operations, live state and rule CRUD,
// command history, a dashboard aggregator, and a best-effort event
// stream for dashboard clients.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ctrlhome/automation-core/internal/bus"
	"github.com/ctrlhome/automation-core/internal/device"
	"github.com/ctrlhome/automation-core/internal/infrastructure/config"
	"github.com/ctrlhome/automation-core/internal/infrastructure/logging"
	"github.com/ctrlhome/automation-core/internal/rules"
	"github.com/ctrlhome/automation-core/internal/statecache"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = 60 * time.Second
)

// Deps holds the dependencies required by the API server. Every field
// except Config and Logger is optional; a nil component makes the
// handlers that need it respond 503 instead of panicking (§4.6 service-
// availability guard).
type Deps struct {
	Config    config.AppConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	RuleStore *rules.Store
	Evaluator *rules.Evaluator
	Cache     *statecache.Cache
	Bus       *bus.Client
	Version   string
}

// Server is the HTTP API server for automation-core.
//
// It manages the HTTP listener, routes, middleware, and the event-stream
// hub. The server is created with New() and started with Start().
type Server struct {
	cfg       config.AppConfig
	logger    *logging.Logger
	registry  *device.Registry
	ruleStore *rules.Store
	evaluator *rules.Evaluator
	cache     *statecache.Cache
	bus       *bus.Client
	version   string
	startTime time.Time

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		registry:  deps.Registry,
		ruleStore: deps.RuleStore,
		evaluator: deps.Evaluator,
		cache:     deps.Cache,
		bus:       deps.Bus,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       newHub(deps.Logger),
	}, nil
}

// Hub returns the live event-stream hub, satisfying bus.Observer. Wire it
// with BusClient.SetObserver before Start so rule/state events reach
// connected clients from the first message.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections. It runs the event-stream
// hub built by New and launches the HTTP listener in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to
// gracefulShutdownTimeout for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).String(),
	})
}
