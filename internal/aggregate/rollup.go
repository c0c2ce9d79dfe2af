// Package aggregate rolls evaluated projects up into district- and
// city-level statistics and per-project quarterly cumulative series.
//
// Rollups weight the overall rate by unit count (sum of sold over sum of
// units), which deliberately differs from the arithmetic mean of project
// rates: a large slow project drags the region down more than a small one.
// Both statistics are emitted side by side.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"presalecli/internal/absorption"
	"presalecli/internal/calendar"
	"presalecli/pkg/contracts/domain"
)

// Config carries the aggregation knobs. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	Thresholds absorption.Thresholds
	Tiers      TierBands
	Calendar   calendar.Calendar

	// PriceTrim is the total two-sided share of extreme unit prices
	// excluded from price statistics (0.03 trims 1.5% per tail; 0
	// disables trimming).
	PriceTrim float64
}

// DefaultConfig returns the production aggregation settings.
func DefaultConfig() Config {
	return Config{
		Thresholds: absorption.DefaultThresholds(),
		Tiers:      DefaultTierBands(),
		Calendar:   calendar.Default(),
		PriceTrim:  0.03,
	}
}

// Aggregator computes region rollups and quarterly series from evaluated
// projects. Safe for concurrent use.
type Aggregator struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and returns a ready Aggregator.
func New(cfg Config, logger *slog.Logger) (*Aggregator, error) {
	if !cfg.Thresholds.IsValid() {
		return nil, fmt.Errorf("invalid absorption thresholds")
	}
	if !cfg.Tiers.IsValid() {
		return nil, fmt.Errorf("invalid tier bands: cutoffs must descend within each scale")
	}
	if cfg.PriceTrim < 0 || cfg.PriceTrim >= 0.5 {
		return nil, fmt.Errorf("price trim %v out of range [0, 0.5)", cfg.PriceTrim)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{cfg: cfg, logger: logger}, nil
}

// regionAccum accumulates one region's running sums during grouping.
type regionAccum struct {
	city     string
	district string

	projects   int
	totalUnits int
	unitsSold  int

	// Rate-valid subset: the overall-rate numerator and denominator.
	validSold  int
	validUnits int

	sumRate float64
	rateN   int

	sumMonthly float64
	monthlyN   int

	sumMonths float64
	monthsN   int

	priceSum float64
	priceN   int

	districts map[string]struct{}
}

// Rollup groups linked projects by district or city and computes the
// weighted region statistics. Output is sorted by city, then district.
func (a *Aggregator) Rollup(ctx context.Context, linked []domain.LinkedProject, level domain.RollupLevel) []domain.RegionRollup {
	groups := make(map[string]*regionAccum)

	for i := range linked {
		lp := &linked[i]

		key := lp.City
		if level == domain.LevelDistrict {
			key = lp.City + "\x00" + lp.District
		}
		acc, ok := groups[key]
		if !ok {
			acc = &regionAccum{city: lp.City}
			if level == domain.LevelDistrict {
				acc.district = lp.District
			} else {
				acc.districts = make(map[string]struct{})
			}
			groups[key] = acc
		}

		acc.projects++
		acc.totalUnits += lp.TotalUnits
		acc.unitsSold += lp.UnitsSold
		if acc.districts != nil {
			acc.districts[lp.District] = struct{}{}
		}

		if lp.RateValid {
			acc.validSold += lp.UnitsSold
			acc.validUnits += lp.TotalUnits
			acc.sumRate += lp.AbsorptionRate
			acc.rateN++
		}
		if lp.MarketingStartDate != nil {
			acc.sumMonths += lp.ElapsedMonths
			acc.monthsN++
			if lp.RateValid {
				acc.sumMonthly += lp.MonthlyRate
				acc.monthlyN++
			}
		}

		for _, tx := range lp.Transactions {
			if tx.Cancelled || tx.UnitPrice <= 0 {
				continue
			}
			acc.priceSum += tx.UnitPrice
			acc.priceN++
		}
	}

	rollups := make([]domain.RegionRollup, 0, len(groups))
	for _, acc := range groups {
		rollups = append(rollups, a.finalize(acc, level))
	}
	sort.Slice(rollups, func(i, j int) bool {
		if rollups[i].City != rollups[j].City {
			return rollups[i].City < rollups[j].City
		}
		return rollups[i].District < rollups[j].District
	})

	a.logger.InfoContext(ctx, "region rollup complete",
		slog.String("level", level.String()),
		slog.Int("regions", len(rollups)),
		slog.Int("projects", len(linked)),
	)
	return rollups
}

func (a *Aggregator) finalize(acc *regionAccum, level domain.RollupLevel) domain.RegionRollup {
	r := domain.RegionRollup{
		Level:        level,
		City:         acc.city,
		District:     acc.district,
		ProjectCount: acc.projects,
		TotalUnits:   acc.totalUnits,
		UnitsSold:    acc.unitsSold,
	}

	var standard float64
	if acc.validUnits > 0 {
		standard = float64(acc.validSold) / float64(acc.validUnits)
		r.OverallRate = round2(standard * 100)
	}
	if acc.rateN > 0 {
		r.MeanRate = round2(acc.sumRate / float64(acc.rateN))
	}
	if acc.monthlyN > 0 {
		r.MeanMonthlyRate = round2(acc.sumMonthly / float64(acc.monthlyN))
	}

	var meanMonths float64
	if acc.monthsN > 0 {
		meanMonths = acc.sumMonths / float64(acc.monthsN)
		r.MeanElapsedMonth = round2(meanMonths)
	}
	if acc.validUnits > 0 && meanMonths > 0 {
		r.TimeAdjustedRate = round4(a.cfg.Thresholds.TimeAdjusted(clip01(standard), meanMonths))
	}

	if acc.priceN > 0 {
		r.WeightedUnitPrice = round2(acc.priceSum / float64(acc.priceN))
	}

	if level == domain.LevelCity {
		r.DistrictCount = len(acc.districts)
		r.CommunityCount = acc.projects
		r.Tier = a.cfg.Tiers.CityTier(r.OverallRate)
	} else {
		r.Tier = a.cfg.Tiers.DistrictTier(r.OverallRate)
	}
	return r
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
