package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ReferenceAnalysisDate, cfg.Analysis.Date)
	assert.Equal(t, 1911, cfg.Analysis.EraOffset)
	assert.Equal(t, 12.0, cfg.Analysis.BaselineMonths)
	assert.Equal(t, 0.5, cfg.Analysis.MinElapsedMonths)
	assert.True(t, cfg.Analysis.CorrectStartDates)
	assert.Equal(t, 3, cfg.Analysis.MinRelativeSample)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestAnalysisDateParsing(t *testing.T) {
	cfg := Default()
	date, err := cfg.Analysis.AnalysisDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), date)

	cfg.Analysis.Date = "30/06/2025"
	_, err = cfg.Analysis.AnalysisDate()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "bad analysis date",
			mutate:  func(c *Config) { c.Analysis.Date = "not-a-date" },
			wantErr: "invalid analysis date",
		},
		{
			name:    "zero era offset",
			mutate:  func(c *Config) { c.Analysis.EraOffset = 0 },
			wantErr: "era offset",
		},
		{
			name:    "negative baseline",
			mutate:  func(c *Config) { c.Analysis.BaselineMonths = -1 },
			wantErr: "baseline months",
		},
		{
			name:    "outlier trim too large",
			mutate:  func(c *Config) { c.Analysis.PriceOutlierTrim = 0.5 },
			wantErr: "price outlier trim",
		},
		{
			name:    "relative sample too small",
			mutate:  func(c *Config) { c.Analysis.MinRelativeSample = 1 },
			wantErr: "relative sample",
		},
		{
			name:    "no origins",
			mutate:  func(c *Config) { c.Security.AllowedOrigins = nil },
			wantErr: "allowed origin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateCoercesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PRESALE_ANALYSIS_DATE", "2024-12-31")
	t.Setenv("PRESALE_SERVER_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", cfg.Analysis.Date)
	assert.Equal(t, 9191, cfg.Server.Port)
	// Untouched fields keep their struct-tag defaults.
	assert.Equal(t, 1911, cfg.Analysis.EraOffset)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("PRESALE_ANALYSIS_DATE", "June 30th")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid analysis date")
}

func TestSheetsEnabled(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.Export.SheetsEnabled())

	cfg.Export.SheetsSpreadsheetID = "1abc"
	assert.False(t, cfg.Export.SheetsEnabled())

	cfg.Export.CredentialsFile = "sa.json"
	assert.True(t, cfg.Export.SheetsEnabled())
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	paths := PathsConfig{
		DataDir:    dir + "/data",
		ReportsDir: dir + "/data/reports",
		ChartsDir:  dir + "/data/charts",
		LogsDir:    dir + "/logs",
	}
	require.NoError(t, paths.EnsureDirectories())
	require.NoError(t, paths.EnsureDirectories()) // idempotent
}
