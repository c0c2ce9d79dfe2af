package services

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presalecli/internal/config"
)

type stubClientCounter int

func (s stubClientCounter) ClientCount() int { return int(s) }

func healthFixturePaths(t *testing.T) config.PathsConfig {
	t.Helper()
	dir := t.TempDir()
	projectsPath := filepath.Join(dir, "projects.csv")
	transactionsPath := filepath.Join(dir, "transactions.csv")
	require.NoError(t, os.WriteFile(projectsPath, []byte(projectsCSV), 0o644))
	require.NoError(t, os.WriteFile(transactionsPath, []byte(transactionsCSV), 0o644))

	paths := config.Default().Paths
	paths.ProjectsFile = projectsPath
	paths.TransactionsFile = transactionsPath
	return paths
}

func TestHealthCheck(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hs := NewHealthService("1.2.3", "", config.PathsConfig{}, nil, nil, logger)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Contains(t, status.Runtime, "goroutines")
	assert.Contains(t, status.Runtime, "go_version")
}

func TestReadinessCheckReady(t *testing.T) {
	paths := healthFixturePaths(t)
	hs := NewHealthService("1.2.3", "", paths, nil, stubClientCounter(2), nil)

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, "ok", status.Checks["projects_file"])
	assert.Equal(t, "ok", status.Checks["transactions_file"])
	assert.Equal(t, "2", status.Checks["websocket_clients"])
}

func TestReadinessCheckMissingDataset(t *testing.T) {
	paths := healthFixturePaths(t)
	paths.TransactionsFile = filepath.Join(t.TempDir(), "missing.csv")
	hs := NewHealthService("1.2.3", "", paths, nil, nil, nil)

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)
	assert.Equal(t, "ok", status.Checks["projects_file"])
	assert.NotEqual(t, "ok", status.Checks["transactions_file"])
}

func TestReadinessCheckReportsAnalysisState(t *testing.T) {
	svc := testService(t, nil)
	hs := NewHealthService("1.2.3", "", config.PathsConfig{}, svc, nil, nil)

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "idle", status.Checks["analysis"])
	assert.Equal(t, "0", status.Checks["stored_runs"])

	svc.runMu.Lock()
	status = hs.ReadinessCheck(context.Background())
	svc.runMu.Unlock()
	assert.Equal(t, "running", status.Checks["analysis"])
}

func TestVersionInfo(t *testing.T) {
	hs := NewHealthService("1.2.3", "2025-06-30T00:00:00Z", config.PathsConfig{}, nil, nil, nil)

	info := hs.Version()
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "2025-06-30T00:00:00Z", info["build_time"])
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "start_time")
}
