package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/budget"
	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/costs"
	"mercator-hq/sentinel/pkg/health"
	"mercator-hq/sentinel/pkg/kvstore"
	"mercator-hq/sentinel/pkg/telemetry/logging"
	"mercator-hq/sentinel/pkg/telemetry/metrics"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
	"mercator-hq/sentinel/pkg/usage"
)

// Deps are the components served by the status server. Store, Usage, Costs,
// Budgets and Health are required; Checker and Metrics are optional.
type Deps struct {
	Store   *kvstore.Client
	Usage   *usage.Recorder
	Costs   *costs.Estimator
	Budgets *budget.Engine
	Health  *health.Tracker

	// Checker serves /health and /ready. Nil serves a checker without
	// registered checks.
	Checker *health.Checker

	// Metrics serves MetricsPath. Nil disables the endpoint.
	Metrics     *metrics.Collector
	MetricsPath string

	// HealthServices are the services listed by /status/health.
	HealthServices []string

	// CriticalServices are validated when /v1/validate-critical is called
	// without a services parameter.
	CriticalServices []string

	// MaxWindowHours bounds the window parameter of /status/health.
	// Default: the health retention (168h)
	MaxWindowHours int

	Version   string
	Commit    string
	BuildTime string

	Logger *slog.Logger
	Now    func() time.Time
}

// Server is the status HTTP server. Everything is read-only except health
// report ingestion, which requires an API key.
type Server struct {
	config       *config.StatusConfig
	deps         Deps
	logger       *slog.Logger
	apiKeys      *APIKeyValidator
	httpServer   *http.Server
	addr         net.Addr
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new status server.
func NewServer(cfg *config.StatusConfig, deps Deps) *Server {
	if deps.Checker == nil {
		deps.Checker = health.NewChecker(config.DefaultHealthCheckTimeout)
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultMetricsPath
	}
	if deps.MaxWindowHours <= 0 {
		deps.MaxWindowHours = int(config.DefaultHealthRetention / time.Hour)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Server{
		config:  cfg,
		deps:    deps,
		logger:  logging.Component(deps.Logger, "status"),
		apiKeys: NewAPIKeyValidator(cfg.IngestTokens),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting status server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("status server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", s.deps.Checker.LivenessHandler())
	mux.Handle("GET /ready", s.deps.Checker.ReadinessHandler())
	mux.Handle("GET /version", health.VersionHandler(s.deps.Version, s.deps.Commit, s.deps.BuildTime))
	if s.deps.Metrics != nil {
		mux.Handle("GET "+s.deps.MetricsPath, s.deps.Metrics.Handler())
	}

	mux.HandleFunc("GET /status/environment", s.handleEnvironment)
	mux.HandleFunc("GET /status/usage", s.handleUsage)
	mux.HandleFunc("GET /status/costs", s.handleCosts)
	mux.HandleFunc("GET /status/budgets", s.handleBudgets)
	mux.HandleFunc("GET /status/health", s.handleHealth)
	requireKey := APIKeyMiddleware(s.apiKeys, DefaultAPIKeySources, s.logger)
	mux.Handle("POST /v1/health-reports", requireKey(http.HandlerFunc(s.handleHealthReport)))
	mux.HandleFunc("GET /v1/validate-critical", s.handleValidateCritical)

	var handler http.Handler = mux
	handler = tracing.HTTPMiddleware(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)

	return handler
}
