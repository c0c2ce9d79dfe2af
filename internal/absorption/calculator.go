// Package absorption computes the per-project sell-through metrics of an
// analysis run: the raw absorption rate, the elapsed-time normalization,
// and the categorical performance label.
package absorption

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"presalecli/internal/linkage"
	"presalecli/pkg/contracts/domain"
)

// Config fixes one analysis run. It is captured at construction and never
// mutated, so repeated Evaluate calls over the same inputs are idempotent.
type Config struct {
	// AnalysisDate is the snapshot date every elapsed duration is measured
	// against. Results are meaningless without knowing it, so the
	// calculator logs it on every evaluation.
	AnalysisDate time.Time

	Thresholds Thresholds

	// CorrectStartDates pulls a project's marketing start back to its first
	// non-cancelled sale when that sale pre-dates the recorded start, and
	// derives a start for projects with no recorded source at all.
	CorrectStartDates bool
}

// Calculator evaluates linked projects against a fixed analysis snapshot.
type Calculator struct {
	cfg    Config
	logger *slog.Logger
}

// NewCalculator validates the configuration and builds a Calculator.
func NewCalculator(cfg Config, logger *slog.Logger) (*Calculator, error) {
	if cfg.AnalysisDate.IsZero() {
		return nil, fmt.Errorf("analysis date must be set")
	}
	if !cfg.Thresholds.IsValid() {
		return nil, fmt.Errorf("invalid absorption thresholds: %+v", cfg.Thresholds)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{cfg: cfg, logger: logger}, nil
}

// AnalysisDate returns the snapshot date the calculator was built with.
func (c *Calculator) AnalysisDate() time.Time {
	return c.cfg.AnalysisDate
}

// Evaluate derives the absorption metrics for every linked project. The
// input is not mutated; a fresh slice is returned.
func (c *Calculator) Evaluate(ctx context.Context, sales []linkage.ProjectSales) []domain.LinkedProject {
	linked := make([]domain.LinkedProject, len(sales))

	timeBased := 0
	corrected := 0
	rateless := 0
	for i := range sales {
		linked[i] = c.evaluateOne(sales[i])
		if linked[i].MarketingStartDate != nil {
			timeBased++
		}
		if linked[i].StartCorrected {
			corrected++
		}
		if !linked[i].RateValid {
			rateless++
		}
	}

	c.logger.InfoContext(ctx, "absorption evaluated",
		slog.Time("analysis_date", c.cfg.AnalysisDate),
		slog.Int("projects", len(linked)),
		slog.Int("time_based", timeBased),
		slog.Int("start_corrected", corrected),
		slog.Int("rate_invalid", rateless))

	return linked
}

func (c *Calculator) evaluateOne(ps linkage.ProjectSales) domain.LinkedProject {
	lp := domain.LinkedProject{
		Project:        ps.Project,
		UnitsSold:      ps.UnitsSold,
		CancelledCount: ps.Cancelled,
		Transactions:   ps.Transactions,
	}

	var standard float64
	if ps.TotalUnits > 0 {
		lp.RateValid = true
		standard = float64(ps.UnitsSold) / float64(ps.TotalUnits)
		lp.AbsorptionRate = round2(standard * 100)
	}

	start, hasStart := ps.MarketingStart()
	if c.cfg.CorrectStartDates && ps.FirstSaleDate != nil &&
		(!hasStart || ps.FirstSaleDate.Before(start)) {
		start = *ps.FirstSaleDate
		hasStart = true
		lp.StartCorrected = true
	}
	if !hasStart {
		// No usable start source: the project stays in counts and
		// rate-based aggregation but out of time-based analysis.
		return lp
	}

	startCopy := start
	lp.MarketingStartDate = &startCopy

	days := int(c.cfg.AnalysisDate.Sub(start).Hours() / 24)
	if days < 0 {
		days = 0
	}
	lp.ElapsedDays = days

	months := float64(days) / DaysPerMonth
	if months < c.cfg.Thresholds.MinMonths {
		months = c.cfg.Thresholds.MinMonths
	}
	lp.ElapsedMonths = round2(months)

	lp.Stage = c.cfg.Thresholds.Stage(days)

	if !lp.RateValid {
		return lp
	}

	lp.MonthlyRate = round2(lp.AbsorptionRate / months)
	lp.TimeAdjustedRate = round4(c.cfg.Thresholds.TimeAdjusted(standard, months))

	if lp.MonthlyRate > 0 {
		lp.EstimatedMonthsToSellout = round2((100 - lp.AbsorptionRate) / lp.MonthlyRate)
	} else {
		lp.SelloutUnbounded = true
	}

	lp.Performance = c.cfg.Thresholds.Performance(days, lp.AbsorptionRate)
	return lp
}
