// Package config loads application configuration from environment
// variables (prefix PRESALE) merged over an optional YAML file. Analysis
// thresholds are validated at load time so a bad weight or cutoff fails the
// run before any computation starts.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// ReferenceAnalysisDate is the default snapshot date used when none is
// configured. Results are only reproducible relative to a known snapshot
// date, so whichever date is used must be logged at run start.
const ReferenceAnalysisDate = "2025-06-30"

// Config represents the complete application configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Export   ExportConfig   `yaml:"export" envconfig:"EXPORT"`
}

// AnalysisConfig contains the run-level analysis knobs. The finer-grained
// decision-table thresholds live with their packages (absorption, risk)
// and are constructed from defaults by the callers.
type AnalysisConfig struct {
	// Date is the analysis snapshot date in YYYY-MM-DD form.
	Date string `yaml:"date" envconfig:"DATE" default:"2025-06-30"`
	// EraOffset converts dataset era years to Gregorian years.
	EraOffset int `yaml:"era_offset" envconfig:"ERA_OFFSET" default:"1911"`
	// BaselineMonths is the marketing duration treated as neutral by the
	// time adjustment.
	BaselineMonths float64 `yaml:"baseline_months" envconfig:"BASELINE_MONTHS" default:"12"`
	// MinElapsedMonths floors the elapsed-duration divisor.
	MinElapsedMonths float64 `yaml:"min_elapsed_months" envconfig:"MIN_ELAPSED_MONTHS" default:"0.5"`
	// CorrectStartDates pulls a project's marketing start back to its
	// first registered sale when the recorded start post-dates it.
	CorrectStartDates bool `yaml:"correct_start_dates" envconfig:"CORRECT_START_DATES" default:"true"`
	// PriceOutlierTrim is the two-sided percentile share of unit prices
	// dropped before price statistics (0 disables).
	PriceOutlierTrim float64 `yaml:"price_outlier_trim" envconfig:"PRICE_OUTLIER_TRIM" default:"0.03"`
	// MinRelativeSample is the minimum number of regions a city needs for
	// peer-relative classification.
	MinRelativeSample int `yaml:"min_relative_sample" envconfig:"MIN_RELATIVE_SAMPLE" default:"3"`
}

// AnalysisDate parses the configured snapshot date.
func (a AnalysisConfig) AnalysisDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", a.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid analysis date %q: %w", a.Date, err)
	}
	return t, nil
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	// APITokenHash is the bcrypt hash of the API bearer token; empty
	// disables authentication (local use).
	APITokenHash string `yaml:"api_token_hash" envconfig:"API_TOKEN_HASH"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"true"`
}

// PathsConfig contains file system paths.
type PathsConfig struct {
	DataDir          string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	ReportsDir       string `yaml:"reports_dir" envconfig:"REPORTS_DIR" default:"data/reports"`
	ChartsDir        string `yaml:"charts_dir" envconfig:"CHARTS_DIR" default:"data/charts"`
	LogsDir          string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
	ProjectsFile     string `yaml:"projects_file" envconfig:"PROJECTS_FILE" default:"data/projects.csv"`
	TransactionsFile string `yaml:"transactions_file" envconfig:"TRANSACTIONS_FILE" default:"data/transactions.csv"`
}

// EnsureDirectories creates the configured directories when missing.
func (p PathsConfig) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.ReportsDir, p.ChartsDir, p.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExportConfig contains export adapter configuration. Google Sheets upload
// is active only when both the spreadsheet ID and a credentials file are
// set.
type ExportConfig struct {
	SheetsSpreadsheetID string `yaml:"sheets_spreadsheet_id" envconfig:"SHEETS_SPREADSHEET_ID"`
	SheetsRange         string `yaml:"sheets_range" envconfig:"SHEETS_RANGE" default:"Risk!A1"`
	CredentialsFile     string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// SheetsEnabled reports whether the Google Sheets exporter is configured.
func (e ExportConfig) SheetsEnabled() bool {
	return e.SheetsSpreadsheetID != "" && e.CredentialsFile != ""
}

// Load loads configuration from environment variables and the optional
// config file, then validates it.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("PRESALE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path := configFilePath(); path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// mergeConfigs overlays environment values on top of file values.
// Environment wins wherever it differs from the struct defaults.
func mergeConfigs(fileConfig, envConfig Config) Config {
	merged := fileConfig
	defaults := *Default()

	if envConfig.Analysis != defaults.Analysis {
		merged.Analysis = envConfig.Analysis
	}
	if envConfig.Server != defaults.Server {
		merged.Server = envConfig.Server
	}
	if envConfig.Logging != defaults.Logging {
		merged.Logging = envConfig.Logging
	}
	if envConfig.Paths != defaults.Paths {
		merged.Paths = envConfig.Paths
	}
	if envConfig.Export != defaults.Export {
		merged.Export = envConfig.Export
	}
	if envConfig.Security.APITokenHash != "" ||
		envConfig.Security.EnableCORS != defaults.Security.EnableCORS ||
		envConfig.Security.RateLimit != defaults.Security.RateLimit ||
		len(envConfig.Security.AllowedOrigins) != len(defaults.Security.AllowedOrigins) {
		merged.Security = envConfig.Security
	}
	return merged
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if _, err := c.Analysis.AnalysisDate(); err != nil {
		return err
	}
	if c.Analysis.EraOffset <= 0 {
		return fmt.Errorf("era offset must be positive, got %d", c.Analysis.EraOffset)
	}
	if c.Analysis.BaselineMonths <= 0 {
		return fmt.Errorf("baseline months must be positive, got %v", c.Analysis.BaselineMonths)
	}
	if c.Analysis.MinElapsedMonths <= 0 {
		return fmt.Errorf("minimum elapsed months must be positive, got %v", c.Analysis.MinElapsedMonths)
	}
	if c.Analysis.PriceOutlierTrim < 0 || c.Analysis.PriceOutlierTrim >= 0.5 {
		return fmt.Errorf("price outlier trim must be in [0, 0.5), got %v", c.Analysis.PriceOutlierTrim)
	}
	if c.Analysis.MinRelativeSample < 2 {
		return fmt.Errorf("minimum relative sample must be at least 2, got %d", c.Analysis.MinRelativeSample)
	}

	// Logging is coerced, not rejected: JSON dual output is the house rule.
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "stdout" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}
	return nil
}

func configFilePath() string {
	for _, location := range []string{"config.yaml", "configs/config.yaml"} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns the default configuration used by tests and by the merge
// logic to detect environment overrides.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Date:              ReferenceAnalysisDate,
			EraOffset:         1911,
			BaselineMonths:    12,
			MinElapsedMonths:  0.5,
			CorrectStartDates: true,
			PriceOutlierTrim:  0.03,
			MinRelativeSample: 3,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   25,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "both",
			FilePath:    "logs/app.log",
			Development: true,
		},
		Paths: PathsConfig{
			DataDir:          "data",
			ReportsDir:       "data/reports",
			ChartsDir:        "data/charts",
			LogsDir:          "logs",
			ProjectsFile:     "data/projects.csv",
			TransactionsFile: "data/transactions.csv",
		},
		Export: ExportConfig{
			SheetsRange: "Risk!A1",
		},
	}
}
