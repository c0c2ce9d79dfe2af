package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"presalecli/internal/config"
	"presalecli/internal/infrastructure"
	"presalecli/internal/services"
	transport "presalecli/internal/transport/http"
	ws "presalecli/internal/websocket"
	"presalecli/pkg/contracts"
)

// AppName identifies the service in startup logs.
const AppName = "PresalePulse"

// Application is the dependency container for the web service.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	Hub           *ws.Hub
	Analysis      *services.AnalysisService
	Health        *services.HealthService
	Server        *transport.Server
}

// NewApplication wires all components from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig wires all components from an already loaded
// configuration. Tests use it to inject temp paths.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", cfg.Server.Port))

	if err := cfg.Paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewPipelineMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	hub := ws.NewHub(logger)

	analysis, err := services.NewAnalysisService(cfg, metrics, hub, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis service: %w", err)
	}
	health := services.NewHealthService(contracts.Version, contracts.BuildTime, cfg.Paths, analysis, hub, logger)

	server, err := transport.NewServer(transport.ServerOptions{
		Config:    cfg,
		Analysis:  analysis,
		Health:    health,
		Hub:       hub,
		Providers: otelProviders,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create http server: %w", err)
	}

	return &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		Hub:           hub,
		Analysis:      analysis,
		Health:        health,
		Server:        server,
	}, nil
}

// Start launches the hub and the HTTP listener. A listener failure
// cancels the supplied context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) {
	a.Hub.Start()
	a.Server.Start(ctx, cancel)

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
}

// Stop shuts components down in reverse start order.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "application shutting down")

	if err := a.Server.Stop(ctx); err != nil {
		return err
	}

	a.Hub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry",
				slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	a.Start(ctx, cancel)

	select {
	case sig := <-sigChan:
		a.Logger.Info("received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
