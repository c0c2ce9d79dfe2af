// Package pipeline sequences the analysis stages over loaded datasets:
// link, absorb, aggregate, classify. The runner never mutates its inputs;
// running it twice over the same inputs with the same analysis date yields
// deeply equal analytic results.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"presalecli/internal/absorption"
	"presalecli/internal/aggregate"
	"presalecli/internal/dataset"
	"presalecli/internal/infrastructure"
	"presalecli/internal/linkage"
	"presalecli/internal/risk"
	"presalecli/pkg/contracts/domain"
)

// Stage names, in execution order.
const (
	StageLink      = "link"
	StageAbsorb    = "absorb"
	StageAggregate = "aggregate"
	StageClassify  = "classify"
)

// ProgressFunc receives stage transitions for display (console spinner,
// WebSocket hub). percent is the overall run progress estimate.
type ProgressFunc func(stage string, percent float64, message string)

// Input carries the loaded datasets into a run. LoadReports are optional;
// when present their drop counts surface in the run diagnostics and
// metrics.
type Input struct {
	Projects     []domain.Project
	Transactions []domain.Transaction
	LoadReports  []dataset.LoadReport
}

// Result is the complete outcome of one analysis run.
type Result struct {
	RunID        string    `json:"run_id"`
	AnalysisDate time.Time `json:"analysis_date"`
	StartedAt    time.Time `json:"started_at"`

	Duration time.Duration `json:"duration_ns"`

	Projects  []domain.LinkedProject   `json:"projects"`
	Districts []domain.RegionRollup    `json:"districts"`
	Cities    []domain.RegionRollup    `json:"cities"`
	Quarterly []domain.QuarterlySeries `json:"quarterly"`
	Risk      []domain.RiskRecord      `json:"risk"`

	Diagnostics domain.MatchDiagnostics `json:"diagnostics"`
	LoadReports []dataset.LoadReport    `json:"load_reports,omitempty"`
}

// Options wires a Runner. Calculator, Aggregator and Classifier are
// required; the rest defaults.
type Options struct {
	Calculator *absorption.Calculator
	Aggregator *aggregate.Aggregator
	Classifier *risk.Classifier

	Linker   *linkage.Linker
	Metrics  *infrastructure.PipelineMetrics
	Logger   *slog.Logger
	Progress ProgressFunc
}

// Runner executes the analysis stages in order. Safe for concurrent use;
// each Run works on its own state.
type Runner struct {
	calculator *absorption.Calculator
	aggregator *aggregate.Aggregator
	classifier *risk.Classifier
	linker     *linkage.Linker

	metrics  *infrastructure.PipelineMetrics
	logger   *slog.Logger
	progress ProgressFunc
	tracer   trace.Tracer
}

// NewRunner validates opts and returns a ready Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Calculator == nil || opts.Aggregator == nil || opts.Classifier == nil {
		return nil, fmt.Errorf("pipeline: calculator, aggregator and classifier are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	linker := opts.Linker
	if linker == nil {
		linker = linkage.NewLinker(logger)
	}
	return &Runner{
		calculator: opts.Calculator,
		aggregator: opts.Aggregator,
		classifier: opts.Classifier,
		linker:     linker,
		metrics:    opts.Metrics,
		logger:     logger,
		progress:   opts.Progress,
		tracer:     otel.Tracer("presalecli/pipeline"),
	}, nil
}

// Run executes link, absorb, aggregate and classify over input. The
// returned error is the first stage failure, wrapped with the stage name;
// a zero-match linkage aborts before any analysis.
func (r *Runner) Run(ctx context.Context, input Input) (*Result, error) {
	started := time.Now()
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := r.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	res := &Result{
		RunID:        uuid.New().String(),
		AnalysisDate: r.calculator.AnalysisDate(),
		StartedAt:    started,
		LoadReports:  input.LoadReports,
	}
	logger := r.logger.With(slog.String("run_id", res.RunID))
	logger.InfoContext(ctx, "analysis run started",
		slog.Time("analysis_date", res.AnalysisDate),
		slog.Int("projects", len(input.Projects)),
		slog.Int("transactions", len(input.Transactions)),
	)

	r.metrics.AddActiveRun(ctx, 1)
	defer r.metrics.AddActiveRun(ctx, -1)
	for _, rep := range input.LoadReports {
		r.metrics.RecordRows(ctx, rep.Table, int64(rep.Accepted), int64(rep.Dropped()))
	}

	var sales []linkage.ProjectSales
	err := r.stage(ctx, StageLink, 10, func(ctx context.Context) error {
		linked, err := r.linker.Link(ctx, input.Projects, input.Transactions)
		if err != nil {
			return err
		}
		sales = linked.Projects
		res.Diagnostics = linked.Diagnostics
		return nil
	})
	if err != nil {
		return nil, r.fail(ctx, logger, started, StageLink, err)
	}
	applyLoadDrops(&res.Diagnostics, input.LoadReports)
	r.metrics.RecordMatchRatio(ctx, res.Diagnostics.MatchRate)

	err = r.stage(ctx, StageAbsorb, 40, func(ctx context.Context) error {
		res.Projects = r.calculator.Evaluate(ctx, sales)
		return nil
	})
	if err != nil {
		return nil, r.fail(ctx, logger, started, StageAbsorb, err)
	}

	err = r.stage(ctx, StageAggregate, 65, func(ctx context.Context) error {
		res.Districts = r.aggregator.Rollup(ctx, res.Projects, domain.LevelDistrict)
		res.Cities = r.aggregator.Rollup(ctx, res.Projects, domain.LevelCity)
		res.Quarterly = r.aggregator.Quarterly(ctx, res.Projects)
		return nil
	})
	if err != nil {
		return nil, r.fail(ctx, logger, started, StageAggregate, err)
	}
	r.metrics.RecordRegions(ctx, "rollup", "district", int64(len(res.Districts)))
	r.metrics.RecordRegions(ctx, "rollup", "city", int64(len(res.Cities)))

	err = r.stage(ctx, StageClassify, 85, func(ctx context.Context) error {
		res.Risk = r.classifier.Classify(ctx, res.Districts)
		return nil
	})
	if err != nil {
		return nil, r.fail(ctx, logger, started, StageClassify, err)
	}

	res.Duration = time.Since(started)
	r.metrics.RecordRun(ctx, res.Duration, true)
	r.report("complete", 100, res.Diagnostics.Summary())

	logger.InfoContext(ctx, "analysis run complete",
		slog.Duration("duration", res.Duration),
		slog.Int("linked_projects", len(res.Projects)),
		slog.Int("districts", len(res.Districts)),
		slog.Int("cities", len(res.Cities)),
		slog.Int("quarterly_rows", len(res.Quarterly)),
		slog.Float64("match_rate", res.Diagnostics.MatchRate),
	)
	return res, nil
}

// stage wraps one stage execution with a span, a progress report and a
// stage-duration metric.
func (r *Runner) stage(ctx context.Context, name string, percent float64, fn func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	r.report(name, percent, "started")
	start := time.Now()
	err := fn(ctx)
	r.metrics.RecordStage(ctx, name, time.Since(start), err == nil)
	if err != nil {
		infrastructure.RecordError(ctx, err)
	}
	return err
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, started time.Time, stage string, err error) error {
	r.metrics.RecordRun(ctx, time.Since(started), false)
	infrastructure.WithError(logger, err).ErrorContext(ctx, "analysis run failed",
		slog.String("stage", stage),
	)
	return fmt.Errorf("%s stage: %w", stage, err)
}

func (r *Runner) report(stage string, percent float64, message string) {
	if r.progress != nil {
		r.progress(stage, percent, message)
	}
}

// applyLoadDrops folds the loaders' drop counts into the run diagnostics.
func applyLoadDrops(d *domain.MatchDiagnostics, reports []dataset.LoadReport) {
	for _, rep := range reports {
		switch rep.Table {
		case "projects":
			d.DroppedProjectRows += rep.Dropped()
		case "transactions":
			d.DroppedTransactionRows += rep.Dropped()
		}
	}
}
