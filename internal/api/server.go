package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tvmmachans/Customo/internal/audit"
	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/catalog"
	"github.com/tvmmachans/Customo/internal/commerce"
	"github.com/tvmmachans/Customo/internal/device"
	"github.com/tvmmachans/Customo/internal/infrastructure/config"
	"github.com/tvmmachans/Customo/internal/infrastructure/logging"
	"github.com/tvmmachans/Customo/internal/metrics"
	"github.com/tvmmachans/Customo/internal/ticket"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by every infrastructure client the health
// endpoint reports on.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   *config.Config
	Logger   *logging.Logger
	Database HealthChecker
	Auth     *auth.Service
	Devices  *device.Registry
	Catalog  *catalog.Service
	Commerce *commerce.Service
	Tickets  *ticket.Service

	// Optional.
	Audit          *audit.Trail
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	// Components are reported by /health without affecting its status.
	Components map[string]HealthChecker
	Version    string
}

// Server is the HTTP API server for Customo Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        *config.Config
	logger     *logging.Logger
	db         HealthChecker
	auth       *auth.Service
	devices    *device.Registry
	catalog    *catalog.Service
	commerce   *commerce.Service
	tickets    *ticket.Service
	audit      *audit.Trail
	metrics    metrics.Recorder
	metricsH   http.Handler
	components map[string]HealthChecker
	version    string

	hub          *Hub
	authLimit    *rateLimiter
	productLimit *rateLimiter
	router       http.Handler
	server       *http.Server
	started      time.Time

	// ctx outlives individual requests; channel handlers use it.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies and registers
// its WebSocket hub as an observer of the device registry and the ticket
// service.
//
// The server is not listening until Start() is called, but Handler() is
// usable immediately.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("config is required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Database == nil:
		return nil, fmt.Errorf("database is required")
	case deps.Auth == nil:
		return nil, fmt.Errorf("auth service is required")
	case deps.Devices == nil:
		return nil, fmt.Errorf("device registry is required")
	case deps.Catalog == nil, deps.Commerce == nil, deps.Tickets == nil:
		return nil, fmt.Errorf("catalog, commerce and ticket services are required")
	}

	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		db:         deps.Database,
		auth:       deps.Auth,
		devices:    deps.Devices,
		catalog:    deps.Catalog,
		commerce:   deps.Commerce,
		tickets:    deps.Tickets,
		audit:      deps.Audit,
		metrics:    rec,
		metricsH:   deps.MetricsHandler,
		components: deps.Components,
		version:    deps.Version,
		started:    time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}

	s.hub = NewHub(deps.Logger.Component("ws"), rec)
	s.devices.AddObserver(s.hub)
	s.tickets.AddObserver(s.hub)

	s.authLimit = newRateLimiter("auth", deps.Config.RateLimit.Auth, rec, deps.Logger)
	s.productLimit = newRateLimiter("products", deps.Config.RateLimit.Products, rec, deps.Logger)
	go s.authLimit.cleanupLoop(ctx)
	go s.productLimit.cleanupLoop(ctx)

	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr, "environment", s.cfg.Environment)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It disconnects every WebSocket client, then waits up to 10 seconds for
// in-flight requests to complete.
func (s *Server) Close() error {
	s.cancel()
	s.hub.Close()

	if s.server == nil {
		return nil
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
