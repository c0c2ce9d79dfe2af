// Package risk classifies district-level market metrics in two
// independent, non-destructive phases.
//
// Phase A scores each region against fixed thresholds. Phase B ranks each
// region against the other districts of the same city and classifies by
// percentile, with absolute floors that force high risk regardless of
// standing. Both results are kept side by side on the record; cities with
// too few districts for a meaningful peer group carry the absolute result
// into the relative slot.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	apperrors "presalecli/internal/errors"
	"presalecli/pkg/contracts/domain"
)

// Classifier applies both phases. Safe for concurrent use.
type Classifier struct {
	cfg    Config
	logger *slog.Logger
}

// NewClassifier validates cfg and returns a ready Classifier.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("risk config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{cfg: cfg, logger: logger}, nil
}

// Classify runs phase A over every district rollup, then phase B per city.
// Input rollups are not modified.
func (c *Classifier) Classify(ctx context.Context, rollups []domain.RegionRollup) []domain.RiskRecord {
	records := make([]domain.RiskRecord, len(rollups))
	byCity := make(map[string][]int)
	for i, r := range rollups {
		records[i] = newRecord(r)
		c.scoreAbsolute(&records[i])
		byCity[records[i].City] = append(byCity[records[i].City], i)
	}

	fallbacks := 0
	for _, idx := range byCity {
		if len(idx) < c.cfg.MinPeerRegions {
			for _, i := range idx {
				c.fallback(&records[i])
			}
			fallbacks += len(idx)
			continue
		}
		c.rankWithinCity(records, idx)
	}

	high := 0
	for i := range records {
		if records[i].Level() == domain.RiskHigh {
			high++
		}
	}
	c.logger.InfoContext(ctx, "risk classification complete",
		slog.Int("regions", len(records)),
		slog.Int("cities", len(byCity)),
		slog.Int("fallback_regions", fallbacks),
		slog.Int("high_risk", high),
	)
	return records
}

// RelativeWithinCity is the standalone phase B entry for one city's
// records. Unlike Classify it does not fall back on a thin peer group; the
// caller gets a typed error instead. Input records are not modified.
func (c *Classifier) RelativeWithinCity(ctx context.Context, city string, records []domain.RiskRecord) ([]domain.RiskRecord, error) {
	if len(records) < c.cfg.MinPeerRegions {
		return nil, &apperrors.InsufficientSampleError{
			City:     city,
			Regions:  len(records),
			Required: c.cfg.MinPeerRegions,
		}
	}

	out := make([]domain.RiskRecord, len(records))
	copy(out, records)
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	c.rankWithinCity(out, idx)

	c.logger.InfoContext(ctx, "relative classification complete",
		slog.String("city", city),
		slog.Int("regions", len(out)),
	)
	return out, nil
}

// newRecord snapshots the metrics the classifier reads from a rollup. The
// monthly rate is re-derived on the 0-1 scale the thresholds expect:
// overall rate divided by mean sales months.
func newRecord(r domain.RegionRollup) domain.RiskRecord {
	var monthly float64
	if r.MeanElapsedMonth > 0 {
		monthly = clip01(r.OverallRate/100) / r.MeanElapsedMonth
	}
	return domain.RiskRecord{
		City:             r.City,
		District:         r.District,
		TimeAdjustedRate: r.TimeAdjustedRate,
		MonthlyRate:      round4(monthly),
		TransactionCount: r.UnitsSold,
		AvgSalesMonths:   r.MeanElapsedMonth,
		ProjectCount:     r.ProjectCount,
	}
}

// fallback copies the absolute outcome into the relative slot for regions
// whose city is below the peer minimum.
func (c *Classifier) fallback(rec *domain.RiskRecord) {
	rec.RelativeLevel = rec.AbsoluteLevel
	rec.RelativeMethod = domain.MethodFallback
	rec.RelativeRationale = "insufficient peer sample, used absolute standard"
}

func clip01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
