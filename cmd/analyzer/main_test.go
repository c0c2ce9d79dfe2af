package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presalecli/internal/config"
	"presalecli/internal/exporter"
	"presalecli/internal/pipeline"
	"presalecli/internal/services"
)

const (
	projectsCSV = "serial,city,district,name,units,self_sale_start\n" +
		"RPUNML37CA0881,台北市,大安區,大安華廈,20,1130110\n" +
		"RPXAAA11BB2233,台北市,信義區,信義之星,10,1130110\n" +
		"RPON11AA22BB33,台北市,中山區,中山苑,10,1130110\n"

	transactionsCSV = "serial,city,district,name,transaction_date,cancelled,total_price,unit_price\n" +
		"RPUNML37CA0881,台北市,大安區,大安華廈,1130201,,15000000,850000\n" +
		"RPXAAA11BB2233,台北市,信義區,信義之星,1130320,,13000000,720000\n" +
		"RPON11AA22BB33,台北市,中山區,中山苑,1130708,,11000000,660000\n"
)

func runFixtureAnalysis(t *testing.T) *pipeline.Result {
	t.Helper()

	dir := t.TempDir()
	projectsPath := filepath.Join(dir, "projects.csv")
	transactionsPath := filepath.Join(dir, "transactions.csv")
	require.NoError(t, os.WriteFile(projectsPath, []byte(projectsCSV), 0o644))
	require.NoError(t, os.WriteFile(transactionsPath, []byte(transactionsCSV), 0o644))

	cfg := config.Default()
	cfg.Paths.ProjectsFile = projectsPath
	cfg.Paths.TransactionsFile = transactionsPath

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := services.NewAnalysisService(cfg, nil, nil, logger)
	require.NoError(t, err)

	res, err := svc.Run(context.Background(), services.RunRequest{})
	require.NoError(t, err)
	return res
}

func TestBuildRunRequest(t *testing.T) {
	req, err := buildRunRequest("p.csv", "t.csv", "")
	require.NoError(t, err)
	assert.Equal(t, "p.csv", req.ProjectsFile)
	assert.Equal(t, "t.csv", req.TransactionsFile)
	assert.Nil(t, req.AnalysisDate)

	req, err = buildRunRequest("", "", "2025-03-31")
	require.NoError(t, err)
	require.NotNil(t, req.AnalysisDate)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), *req.AnalysisDate)

	_, err = buildRunRequest("", "", "March 2025")
	assert.Error(t, err)
}

func TestExportResultsCSV(t *testing.T) {
	res := runFixtureAnalysis(t)
	out := t.TempDir()

	require.NoError(t, exportResults(res, "csv", out))

	for _, name := range []string{
		exporter.SummaryFile,
		exporter.ProjectsFile,
		exporter.DistrictsFile,
		exporter.CitiesFile,
		exporter.QuarterlyFile,
		exporter.RiskFile,
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}
}

func TestExportResultsExcel(t *testing.T) {
	res := runFixtureAnalysis(t)
	out := t.TempDir()

	require.NoError(t, exportResults(res, "excel", out))
	assert.FileExists(t, filepath.Join(out, "presale_analysis_20250630.xlsx"))
}

func TestExportResultsBoth(t *testing.T) {
	res := runFixtureAnalysis(t)
	out := t.TempDir()

	require.NoError(t, exportResults(res, "both", out))
	assert.FileExists(t, filepath.Join(out, exporter.RiskFile))
	assert.FileExists(t, filepath.Join(out, "presale_analysis_20250630.xlsx"))
}

func TestExportResultsRejectsUnknownFormat(t *testing.T) {
	res := runFixtureAnalysis(t)

	err := exportResults(res, "pdf", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
