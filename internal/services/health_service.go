package services

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"time"

	"presalecli/internal/config"
)

// ClientCounter exposes the live connection count of the websocket hub.
type ClientCounter interface {
	ClientCount() int
}

// HealthService reports process health for the monitoring endpoints.
type HealthService struct {
	version   string
	buildTime string
	startTime time.Time
	paths     config.PathsConfig
	analysis  *AnalysisService
	hub       ClientCounter
	logger    *slog.Logger
}

// HealthStatus is the payload of the health and readiness endpoints.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Checks    map[string]string      `json:"checks,omitempty"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
}

// NewHealthService builds the health reporter. analysis and hub are
// optional; when absent the corresponding checks are skipped.
func NewHealthService(version, buildTime string, paths config.PathsConfig, analysis *AnalysisService, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		startTime: time.Now(),
		paths:     paths,
		analysis:  analysis,
		hub:       hub,
		logger:    logger,
	}
}

// HealthCheck reports liveness. It succeeds whenever the process can
// serve requests at all.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health check",
		slog.String("version", hs.version),
		slog.Duration("uptime", time.Since(hs.startTime)),
	)
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
		},
	}
}

// ReadinessCheck verifies the service can actually execute an analysis:
// both configured dataset files must exist. Informational checks (run
// registry size, websocket clients) never flip readiness.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Checks:    make(map[string]string),
	}

	status.Checks["projects_file"] = hs.checkFile(hs.paths.ProjectsFile)
	status.Checks["transactions_file"] = hs.checkFile(hs.paths.TransactionsFile)

	if hs.analysis != nil {
		if hs.analysis.Running() {
			status.Checks["analysis"] = "running"
		} else {
			status.Checks["analysis"] = "idle"
		}
		status.Checks["stored_runs"] = strconv.Itoa(len(hs.analysis.StoredRuns()))
	}
	if hs.hub != nil {
		status.Checks["websocket_clients"] = strconv.Itoa(hs.hub.ClientCount())
	}

	for _, key := range []string{"projects_file", "transactions_file"} {
		if status.Checks[key] != "ok" {
			status.Status = "not_ready"
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "readiness check failed",
			slog.Any("checks", status.Checks),
		)
	}
	return status
}

func (hs *HealthService) checkFile(path string) string {
	if path == "" {
		return "not configured"
	}
	if _, err := os.Stat(path); err != nil {
		return err.Error()
	}
	return "ok"
}

// Version returns build and runtime details for the version endpoint.
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}
