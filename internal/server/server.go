package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/faucetdb/recordgate/internal/apperror"
	"github.com/faucetdb/recordgate/internal/audit"
	"github.com/faucetdb/recordgate/internal/handler"
	"github.com/faucetdb/recordgate/internal/ratelimit"
	"github.com/faucetdb/recordgate/internal/server/middleware"
	"github.com/faucetdb/recordgate/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigin      string
	// IPRateLimit is the per-IP request limit per minute applied before
	// routing. Zero disables it.
	IPRateLimit     int
	HealthPath      string
	LegacyAPIKey    string
	SuppressDetails bool
	EdgeEnabled     bool
	Edge            middleware.EdgeConfig
	Version         string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigin:      "*",
		HealthPath:      middleware.DefaultHealthPath,
		EdgeEnabled:     true,
		Edge: middleware.EdgeConfig{
			ResourcePrefix: "arn:aws:execute-api:local:000000000000:recordgate",
			Stage:          "local",
			CacheTTL:       5 * time.Minute,
			CacheSize:      1024,
		},
		Version: "dev",
	}
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Records    handler.RecordStore
	Authorizer *service.Authorizer
	Limiter    *ratelimit.Limiter
	Events     audit.Emitter
	OpenAPI    []byte
}

// Server is the top-level HTTP server. It owns the Chi router and the
// gateway wrapping every business handler.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	gateway    *middleware.Gateway
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.HealthPath == "" {
		cfg.HealthPath = middleware.DefaultHealthPath
	}
	if deps.Events == nil {
		deps.Events = audit.NopEmitter{}
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.gateway = middleware.NewGateway(
		middleware.GatewayConfig{
			CORSOrigin: cfg.CORSOrigin,
			HealthPath: cfg.HealthPath,
			Mapper:     apperror.Mapper{SuppressDetails: cfg.SuppressDetails},
		},
		middleware.DefaultAuthenticators(cfg.LegacyAPIKey, logger),
		deps.Limiter,
		deps.Events,
		logger,
	)
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Preflight(s.cfg.CORSOrigin))
	if s.cfg.IPRateLimit > 0 {
		r.Use(middleware.IPRateLimit(s.cfg.IPRateLimit, time.Minute))
	}
	r.Use(chimw.Compress(5))

	system := handler.NewSystemHandler(s.deps.Records, s.deps.Authorizer, s.deps.OpenAPI, s.cfg.Version)
	records := handler.NewRecordHandler(s.deps.Records)

	// --- Liveness (protected mode, identity bypass) ---
	r.Get(s.cfg.HealthPath, s.gateway.Protected(system.Health))

	// --- Public ---
	r.Get("/openapi.json", s.gateway.Public(system.OpenAPI))
	r.Post("/authorize", s.gateway.Public(system.Authorize))

	// --- Records ---
	r.Route("/records", func(r chi.Router) {
		if s.cfg.EdgeEnabled {
			mapper := apperror.Mapper{SuppressDetails: s.cfg.SuppressDetails}
			r.Use(middleware.EdgeAuthorizer(s.deps.Authorizer, s.cfg.Edge, mapper, s.deps.Events, s.logger))
		}
		r.Post("/", s.gateway.Protected(records.Create))
		r.Get("/", s.gateway.Protected(records.List))
		r.Get("/{id}", s.gateway.Protected(records.Get))
		r.Delete("/{id}", s.gateway.Protected(records.Delete))
	})

	s.router = r
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled or
// a SIGINT or SIGTERM is received. It then performs a graceful shutdown,
// draining in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr, "edge_authorizer", s.cfg.EdgeEnabled)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
