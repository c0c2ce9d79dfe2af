package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"presalecli/internal/absorption"
	"presalecli/internal/aggregate"
	"presalecli/internal/calendar"
	"presalecli/internal/config"
	"presalecli/internal/dataset"
	"presalecli/internal/infrastructure"
	"presalecli/internal/pipeline"
	"presalecli/internal/risk"
	"presalecli/pkg/contracts/domain"
)

// maxStoredRuns bounds the in-memory run registry; when full, the oldest
// completed run is evicted. Results are process-lifetime state, not
// persistence.
const maxStoredRuns = 16

// ProgressHub receives run progress events for live streaming. The
// websocket hub satisfies it; tests use a recording stub.
type ProgressHub interface {
	Broadcast(messageType string, data interface{})
}

// RunRequest selects the inputs of one analysis run. Zero values fall
// back to the configured defaults.
type RunRequest struct {
	// AnalysisDate overrides the configured snapshot date.
	AnalysisDate *time.Time

	// ProjectsFile and TransactionsFile override the configured dataset
	// paths.
	ProjectsFile     string
	TransactionsFile string
}

// RunSummary is the compact descriptor of a completed run returned by the
// trigger endpoint and broadcast to websocket clients.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	AnalysisDate time.Time     `json:"analysis_date"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`

	Projects      int     `json:"projects"`
	Districts     int     `json:"districts"`
	Cities        int     `json:"cities"`
	QuarterlyRows int     `json:"quarterly_rows"`
	RiskRegions   int     `json:"risk_regions"`
	HighRisk      int     `json:"high_risk_regions"`
	MatchRate     float64 `json:"match_rate"`
}

// Summarize builds the compact descriptor of a completed run.
func Summarize(res *pipeline.Result) RunSummary {
	high := 0
	for i := range res.Risk {
		if res.Risk[i].Level() == domain.RiskHigh {
			high++
		}
	}
	return RunSummary{
		RunID:         res.RunID,
		AnalysisDate:  res.AnalysisDate,
		StartedAt:     res.StartedAt,
		Duration:      res.Duration,
		Projects:      len(res.Projects),
		Districts:     len(res.Districts),
		Cities:        len(res.Cities),
		QuarterlyRows: len(res.Quarterly),
		RiskRegions:   len(res.Risk),
		HighRisk:      high,
		MatchRate:     res.Diagnostics.MatchRate,
	}
}

// AnalysisService loads the datasets, executes analysis runs one at a
// time, and keeps completed results in a bounded in-memory registry keyed
// by run id.
//
// The aggregator and classifier are built once from the configuration;
// the calculator is built per run because each run may carry its own
// analysis date.
type AnalysisService struct {
	cfg        *config.Config
	loader     *dataset.Loader
	aggregator *aggregate.Aggregator
	classifier *risk.Classifier
	thresholds absorption.Thresholds
	metrics    *infrastructure.PipelineMetrics
	hub        ProgressHub
	logger     *slog.Logger

	runMu sync.Mutex // serializes analysis execution

	mu     sync.RWMutex // guards the registry below
	runs   map[string]*pipeline.Result
	order  []string // completion order, oldest first
	latest string
}

// NewAnalysisService wires the analytic components from cfg. metrics and
// hub are optional; a nil logger falls back to slog.Default.
func NewAnalysisService(cfg *config.Config, metrics *infrastructure.PipelineMetrics, hub ProgressHub, logger *slog.Logger) (*AnalysisService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	thresholds := absorption.DefaultThresholds()
	thresholds.BaselineMonths = cfg.Analysis.BaselineMonths
	thresholds.MinMonths = cfg.Analysis.MinElapsedMonths

	cal := calendar.New(cfg.Analysis.EraOffset)

	aggregator, err := aggregate.New(aggregate.Config{
		Thresholds: thresholds,
		Tiers:      aggregate.DefaultTierBands(),
		Calendar:   cal,
		PriceTrim:  cfg.Analysis.PriceOutlierTrim,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build aggregator: %w", err)
	}

	riskCfg := risk.DefaultConfig()
	riskCfg.MinPeerRegions = cfg.Analysis.MinRelativeSample
	classifier, err := risk.NewClassifier(riskCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	logger.Info("analysis service initialized",
		slog.Int("era_offset", cfg.Analysis.EraOffset),
		slog.Int("max_stored_runs", maxStoredRuns),
	)

	return &AnalysisService{
		cfg:        cfg,
		loader:     dataset.NewLoader(&cal, logger),
		aggregator: aggregator,
		classifier: classifier,
		thresholds: thresholds,
		metrics:    metrics,
		hub:        hub,
		logger:     logger,
		runs:       make(map[string]*pipeline.Result),
	}, nil
}

// Run executes one full analysis over the requested datasets and stores
// the result. Only one run executes at a time; a concurrent call fails
// fast with ErrAnalysisRunning instead of queueing.
func (s *AnalysisService) Run(ctx context.Context, req RunRequest) (*pipeline.Result, error) {
	if !s.runMu.TryLock() {
		return nil, ErrAnalysisRunning
	}
	defer s.runMu.Unlock()

	analysisDate, err := s.analysisDate(req)
	if err != nil {
		return nil, err
	}

	projectsPath := req.ProjectsFile
	if projectsPath == "" {
		projectsPath = s.cfg.Paths.ProjectsFile
	}
	transactionsPath := req.TransactionsFile
	if transactionsPath == "" {
		transactionsPath = s.cfg.Paths.TransactionsFile
	}

	s.logger.InfoContext(ctx, "analysis run starting",
		slog.Time("analysis_date", analysisDate),
		slog.String("projects_file", projectsPath),
		slog.String("transactions_file", transactionsPath),
	)

	projects, projectReport, err := s.loader.LoadProjects(ctx, projectsPath)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	transactions, transactionReport, err := s.loader.LoadTransactions(ctx, transactionsPath)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	calculator, err := absorption.NewCalculator(absorption.Config{
		AnalysisDate:      analysisDate,
		Thresholds:        s.thresholds,
		CorrectStartDates: s.cfg.Analysis.CorrectStartDates,
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("build calculator: %w", err)
	}

	runner, err := pipeline.NewRunner(pipeline.Options{
		Calculator: calculator,
		Aggregator: s.aggregator,
		Classifier: s.classifier,
		Metrics:    s.metrics,
		Logger:     s.logger,
		Progress:   s.progressFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}

	res, err := runner.Run(ctx, pipeline.Input{
		Projects:     projects,
		Transactions: transactions,
		LoadReports:  []dataset.LoadReport{*projectReport, *transactionReport},
	})
	if err != nil {
		s.broadcast("analysis_failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	s.store(res)
	s.broadcast("analysis_complete", Summarize(res))
	return res, nil
}

// analysisDate resolves the snapshot date for one run: the request
// override when present, the configured date otherwise.
func (s *AnalysisService) analysisDate(req RunRequest) (time.Time, error) {
	if req.AnalysisDate != nil {
		return *req.AnalysisDate, nil
	}
	date, err := s.cfg.Analysis.AnalysisDate()
	if err != nil {
		return time.Time{}, fmt.Errorf("configured analysis date: %w", err)
	}
	return date, nil
}

func (s *AnalysisService) progressFunc() pipeline.ProgressFunc {
	if s.hub == nil {
		return nil
	}
	return func(stage string, percent float64, message string) {
		s.hub.Broadcast("analysis_progress", map[string]interface{}{
			"stage":   stage,
			"percent": percent,
			"message": message,
		})
	}
}

func (s *AnalysisService) broadcast(messageType string, data interface{}) {
	if s.hub != nil {
		s.hub.Broadcast(messageType, data)
	}
}

// store registers a completed run and evicts the oldest entries beyond
// the registry bound. The latest pointer always names the newest run, so
// eviction never removes it.
func (s *AnalysisService) store(res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[res.RunID]; !ok {
		s.order = append(s.order, res.RunID)
	}
	s.runs[res.RunID] = res
	s.latest = res.RunID

	for len(s.order) > maxStoredRuns {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.runs, evicted)
		s.logger.Debug("evicted stored run", slog.String("run_id", evicted))
	}
}

// Get returns the stored run for id. An id that is not a UUID yields
// ErrInvalidRunID; an unknown or evicted id yields ErrRunNotFound.
func (s *AnalysisService) Get(id string) (*pipeline.Result, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidRunID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return res, nil
}

// Latest returns the most recently completed run.
func (s *AnalysisService) Latest() (*pipeline.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == "" {
		return nil, ErrNoCompletedRun
	}
	return s.runs[s.latest], nil
}

// StoredRuns returns the registered run ids, oldest first.
func (s *AnalysisService) StoredRuns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Running reports whether an analysis is currently executing.
func (s *AnalysisService) Running() bool {
	if s.runMu.TryLock() {
		s.runMu.Unlock()
		return false
	}
	return true
}
