package absorption

import (
	"math"

	"presalecli/pkg/contracts/domain"
)

// DaysPerMonth is the mean Gregorian month length used to convert elapsed
// marketing days into months.
const DaysPerMonth = 30.44

// Thresholds holds every tunable constant of the absorption evaluation:
// the stage bounds, the performance decision table, and the time
// normalization parameters. Defaults mirror observed market practice; they
// are configuration, not guaranteed-correct business rules.
type Thresholds struct {
	// Stage bounds in elapsed days. A project is a launch below
	// LaunchDays, established at EstablishedDays and beyond.
	LaunchDays      int `json:"launch_days"`
	EarlyStageDays  int `json:"early_stage_days"`
	EstablishedDays int `json:"established_days"`
	ExtendedDays    int `json:"extended_days"`

	// Launch-window performance cutoffs (absorption rate percent).
	HotLaunch    float64 `json:"hot_launch"`
	SteadyLaunch float64 `json:"steady_launch"`

	// First-year performance cutoffs.
	Excellent float64 `json:"excellent"`
	Good      float64 `json:"good"`
	Average   float64 `json:"average"`

	// Established performance cutoffs.
	Stable     float64 `json:"stable"`
	Continuing float64 `json:"continuing"`
	Sluggish   float64 `json:"sluggish"`

	// MinMonths floors the elapsed-month divisor so brand-new projects do
	// not blow up the monthly rate.
	MinMonths float64 `json:"min_months"`

	// BaselineMonths is the marketing duration regarded as neutral when
	// scaling the time-adjusted rate; FactorFloor and FactorCeiling clamp
	// the scaling factor.
	BaselineMonths float64 `json:"baseline_months"`
	FactorFloor    float64 `json:"factor_floor"`
	FactorCeiling  float64 `json:"factor_ceiling"`
}

// DefaultThresholds returns the standard evaluation constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LaunchDays:      90,
		EarlyStageDays:  180,
		EstablishedDays: 365,
		ExtendedDays:    730,
		HotLaunch:       20,
		SteadyLaunch:    10,
		Excellent:       70,
		Good:            40,
		Average:         20,
		Stable:          80,
		Continuing:      50,
		Sluggish:        30,
		MinMonths:       0.5,
		BaselineMonths:  12,
		FactorFloor:     0.5,
		FactorCeiling:   2.0,
	}
}

// IsValid checks internal consistency of the thresholds.
func (t Thresholds) IsValid() bool {
	if t.LaunchDays <= 0 || t.EarlyStageDays <= t.LaunchDays ||
		t.EstablishedDays <= t.EarlyStageDays || t.ExtendedDays <= t.EstablishedDays {
		return false
	}
	if t.HotLaunch <= t.SteadyLaunch || t.SteadyLaunch < 0 {
		return false
	}
	if t.Excellent <= t.Good || t.Good <= t.Average || t.Average < 0 {
		return false
	}
	if t.Stable <= t.Continuing || t.Continuing <= t.Sluggish || t.Sluggish < 0 {
		return false
	}
	if t.MinMonths <= 0 || t.BaselineMonths <= 0 {
		return false
	}
	if t.FactorFloor <= 0 || t.FactorFloor > 1 || t.FactorCeiling < 1 {
		return false
	}
	return true
}

// TimeAdjusted scales a 0-1 absorption rate by how far the project's
// marketing duration sits from the baseline: young projects are scaled up
// (capped), old projects scaled down (floored), and the result never
// exceeds full absorption.
func (t Thresholds) TimeAdjusted(standardRate, months float64) float64 {
	if months <= 0 || standardRate <= 0 {
		return 0
	}
	factor := t.BaselineMonths / months
	if factor > t.FactorCeiling {
		factor = t.FactorCeiling
	}
	if factor < t.FactorFloor {
		factor = t.FactorFloor
	}
	return math.Min(standardRate*factor, 1.0)
}

// Performance places one project in the (elapsed days, absorption rate)
// decision table.
func (t Thresholds) Performance(elapsedDays int, rate float64) domain.Performance {
	switch {
	case elapsedDays < t.LaunchDays:
		switch {
		case rate > t.HotLaunch:
			return domain.PerformanceHotLaunch
		case rate > t.SteadyLaunch:
			return domain.PerformanceSteadyLaunch
		default:
			return domain.PerformanceWatch
		}
	case elapsedDays < t.EstablishedDays:
		switch {
		case rate > t.Excellent:
			return domain.PerformanceExcellent
		case rate > t.Good:
			return domain.PerformanceGood
		case rate > t.Average:
			return domain.PerformanceAverage
		default:
			return domain.PerformanceSlow
		}
	default:
		switch {
		case rate > t.Stable:
			return domain.PerformanceStableLongTerm
		case rate > t.Continuing:
			return domain.PerformanceContinuing
		case rate > t.Sluggish:
			return domain.PerformanceSluggish
		default:
			return domain.PerformanceDifficult
		}
	}
}

// Stage buckets elapsed marketing days into the sales stage.
func (t Thresholds) Stage(elapsedDays int) domain.SalesStage {
	switch {
	case elapsedDays < 0:
		return domain.StageUnknown
	case elapsedDays < t.LaunchDays:
		return domain.StageLaunch
	case elapsedDays < t.EarlyStageDays:
		return domain.StageEarly
	case elapsedDays < t.EstablishedDays:
		return domain.StageMain
	case elapsedDays < t.ExtendedDays:
		return domain.StageLate
	default:
		return domain.StageExtended
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
