package risk

import (
	"fmt"
	"math"
)

// AbsoluteRules holds the fixed-threshold scoring table. Each rule that
// fires adds its points to the region's risk score; the score is then cut
// into levels. Defaults come from field observation, not derivation, so
// every threshold and point value stays configurable.
type AbsoluteRules struct {
	// CriticalTimeAdjusted fires when the time-adjusted rate (0-1 scale)
	// falls below it.
	CriticalTimeAdjusted       float64 `json:"critical_time_adjusted"`
	CriticalTimeAdjustedPoints float64 `json:"critical_time_adjusted_points"`

	// OverAbsorption fires when the time-adjusted rate exceeds it:
	// unusually fast sell-through is its own signal.
	OverAbsorption       float64 `json:"over_absorption"`
	OverAbsorptionPoints float64 `json:"over_absorption_points"`

	// WeakMonthly fires when the monthly rate (0-1 scale) falls below it.
	WeakMonthly       float64 `json:"weak_monthly"`
	WeakMonthlyPoints float64 `json:"weak_monthly_points"`

	// NoTransactionPoints applies at exactly zero transactions;
	// FewTransactions applies below that count otherwise.
	NoTransactionPoints  float64 `json:"no_transaction_points"`
	FewTransactions      int     `json:"few_transactions"`
	FewTransactionPoints float64 `json:"few_transaction_points"`

	// LongDuration fires when average sales months exceed it.
	LongDuration       float64 `json:"long_duration"`
	LongDurationPoints float64 `json:"long_duration_points"`

	// Score cuts: >= HighScore is high risk, >= MediumScore is medium.
	HighScore   float64 `json:"high_score"`
	MediumScore float64 `json:"medium_score"`
}

// DefaultAbsoluteRules returns the production scoring table.
func DefaultAbsoluteRules() AbsoluteRules {
	return AbsoluteRules{
		CriticalTimeAdjusted:       0.25,
		CriticalTimeAdjustedPoints: 3,
		OverAbsorption:             0.65,
		OverAbsorptionPoints:       1,
		WeakMonthly:                0.05,
		WeakMonthlyPoints:          2,
		NoTransactionPoints:        4,
		FewTransactions:            5,
		FewTransactionPoints:       2,
		LongDuration:               36,
		LongDurationPoints:         1,
		HighScore:                  5,
		MediumScore:                2.5,
	}
}

// IsValid reports whether thresholds are ordered and points non-negative.
func (r AbsoluteRules) IsValid() bool {
	ordered := r.CriticalTimeAdjusted > 0 &&
		r.CriticalTimeAdjusted < r.OverAbsorption &&
		r.WeakMonthly > 0 &&
		r.FewTransactions > 0 &&
		r.LongDuration > 0 &&
		r.MediumScore > 0 &&
		r.MediumScore < r.HighScore
	points := r.CriticalTimeAdjustedPoints >= 0 &&
		r.OverAbsorptionPoints >= 0 &&
		r.WeakMonthlyPoints >= 0 &&
		r.NoTransactionPoints >= 0 &&
		r.FewTransactionPoints >= 0 &&
		r.LongDurationPoints >= 0
	return ordered && points
}

// Floors are the absolute minimums that override any percentile outcome:
// a region breaching one is high risk no matter how it ranks against its
// peers.
type Floors struct {
	MinTransactions int     `json:"min_transactions"`
	MinTimeAdjusted float64 `json:"min_time_adjusted"`
	MaxSalesMonths  float64 `json:"max_sales_months"`
}

// DefaultFloors returns the production floor values.
func DefaultFloors() Floors {
	return Floors{
		MinTransactions: 1,
		MinTimeAdjusted: 0.005,
		MaxSalesMonths:  60,
	}
}

// IsValid reports whether every floor is positive.
func (f Floors) IsValid() bool {
	return f.MinTransactions > 0 && f.MinTimeAdjusted > 0 && f.MaxSalesMonths > 0
}

// RankWeights blend the three metric ranks into the composite rank.
type RankWeights struct {
	TimeAdjusted float64 `json:"time_adjusted"`
	Monthly      float64 `json:"monthly"`
	Transactions float64 `json:"transactions"`
}

// DefaultRankWeights returns the production blend.
func DefaultRankWeights() RankWeights {
	return RankWeights{TimeAdjusted: 0.4, Monthly: 0.3, Transactions: 0.3}
}

// IsValid reports whether the weights are non-negative and sum to one.
func (w RankWeights) IsValid() bool {
	if w.TimeAdjusted < 0 || w.Monthly < 0 || w.Transactions < 0 {
		return false
	}
	return math.Abs(w.TimeAdjusted+w.Monthly+w.Transactions-1) < 1e-9
}

// Config carries both classification phases' settings.
type Config struct {
	Rules   AbsoluteRules `json:"rules"`
	Floors  Floors        `json:"floors"`
	Weights RankWeights   `json:"weights"`

	// Percentile cuts for the relative phase: at or below HighPercentile
	// is high risk, at or below MediumPercentile is medium. Higher
	// percentile means a better standing among peers.
	HighPercentile   float64 `json:"high_percentile"`
	MediumPercentile float64 `json:"medium_percentile"`

	// MinPeerRegions is the smallest city (by region count) that still
	// gets relative ranking; smaller cities fall back to the absolute
	// result.
	MinPeerRegions int `json:"min_peer_regions"`
}

// DefaultConfig returns the production classification settings.
func DefaultConfig() Config {
	return Config{
		Rules:            DefaultAbsoluteRules(),
		Floors:           DefaultFloors(),
		Weights:          DefaultRankWeights(),
		HighPercentile:   25,
		MediumPercentile: 50,
		MinPeerRegions:   3,
	}
}

// Validate rejects out-of-range settings before any computation starts.
func (c Config) Validate() error {
	if !c.Rules.IsValid() {
		return fmt.Errorf("invalid absolute rules: thresholds must be ordered and points non-negative")
	}
	if !c.Floors.IsValid() {
		return fmt.Errorf("invalid floors: all minimums must be positive")
	}
	if !c.Weights.IsValid() {
		return fmt.Errorf("invalid rank weights: must be non-negative and sum to 1")
	}
	if c.HighPercentile <= 0 || c.HighPercentile > 100 ||
		c.MediumPercentile <= 0 || c.MediumPercentile > 100 {
		return fmt.Errorf("percentile cuts must lie in (0, 100]")
	}
	if c.HighPercentile >= c.MediumPercentile {
		return fmt.Errorf("high percentile cut %v must be below medium cut %v", c.HighPercentile, c.MediumPercentile)
	}
	if c.MinPeerRegions < 2 {
		return fmt.Errorf("minimum peer regions %d must be at least 2", c.MinPeerRegions)
	}
	return nil
}
