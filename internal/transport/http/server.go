package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"presalecli/internal/config"
	apperrors "presalecli/internal/errors"
	"presalecli/internal/infrastructure"
	"presalecli/internal/middleware"
	"presalecli/internal/services"
	ws "presalecli/internal/websocket"
)

// ServerOptions wires a Server. Config, Analysis, Health and Hub are
// required; the rest defaults.
type ServerOptions struct {
	Config   *config.Config
	Analysis *services.AnalysisService
	Health   *services.HealthService
	Hub      *ws.Hub

	Providers *infrastructure.OTelProviders
	Metrics   *infrastructure.PipelineMetrics
	Logger    *slog.Logger
}

// Server owns the HTTP listener and routing. Hub and telemetry provider
// lifecycles belong to the caller.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router chi.Router
	srv    *http.Server
}

// NewServer builds the router and the underlying http.Server.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Analysis == nil {
		return nil, errors.New("analysis service is required")
	}
	if opts.Health == nil {
		return nil, errors.New("health service is required")
	}
	if opts.Hub == nil {
		return nil, errors.New("websocket hub is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "http_server"))

	s := &Server{
		cfg:    opts.Config,
		logger: logger,
	}
	s.router = s.buildRouter(opts)
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  opts.Config.Server.ReadTimeout,
		WriteTimeout: opts.Config.Server.WriteTimeout,
		IdleTimeout:  opts.Config.Server.IdleTimeout,
	}

	return s, nil
}

// buildRouter assembles the middleware chain and mounts all handlers.
// The websocket route stays outside the main group because the logging
// and timeout middleware wrap the ResponseWriter, which breaks upgrades.
func (s *Server) buildRouter(opts ServerOptions) chi.Router {
	cfg := opts.Config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	wsHandler := NewWSHandler(opts.Hub, cfg.Security, cfg.Logging.Development, s.logger)
	r.Get("/ws", wsHandler.Handle)

	// Prometheus endpoint stays outside the group as well; scrapes are
	// frequent and should not consume the rate limit budget.
	if opts.Providers != nil && opts.Providers.PrometheusHTTP != nil {
		r.Handle("/metrics", opts.Providers.PrometheusHTTP)
	}

	errorHandler := apperrors.NewErrorHandler(s.logger, false)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Metrics(opts.Metrics))
		r.Use(middleware.StructuredLogger(s.logger))
		r.Use(middleware.Recoverer(s.logger))
		r.Use(middleware.Compress(5))
		r.Use(middleware.SecurityHeaders)

		if cfg.Security.EnableCORS {
			r.Use(middleware.CORS(middleware.CORSConfig{
				AllowedOrigins: cfg.Security.AllowedOrigins,
			}))
		}

		if cfg.Security.RateLimit.Enabled {
			r.Use(middleware.NewRateLimiter(
				cfg.Security.RateLimit.RPS,
				cfg.Security.RateLimit.Burst,
				s.logger,
			).Handler)
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			// Health endpoints are unauthenticated so probes work
			// without a token.
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(cfg.Server.ReadTimeout, s.logger))

				healthHandler := NewHealthHandler(opts.Health, s.logger)
				r.Get("/healthz", healthHandler.Liveness)
				r.Get("/readyz", healthHandler.Readiness)
				r.Get("/version", healthHandler.Version)
			})

			// Analysis endpoints carry bearer auth when a token hash is
			// configured. No timeout middleware here; a run may outlast
			// the read timeout.
			r.Group(func(r chi.Router) {
				r.Use(middleware.BearerAuth(cfg.Security.APITokenHash, s.logger))

				analysisHandler := NewAnalysisHandler(opts.Analysis, s.logger)
				r.Mount("/analysis", analysisHandler.Routes())
			})
		})
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	return r
}

// Router exposes the assembled handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start begins serving in a background goroutine. A listener failure
// cancels the supplied context so the caller can unwind.
func (s *Server) Start(ctx context.Context, cancel context.CancelFunc) {
	s.logger.InfoContext(ctx, "http server starting",
		slog.String("addr", s.srv.Addr))

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "http server error",
				slog.String("error", err.Error()))
			cancel()
		}
	}()
}

// Stop drains in-flight requests within the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.InfoContext(ctx, "http server stopped")
	return nil
}
