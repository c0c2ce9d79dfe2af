package domain

import (
	"fmt"
	"time"
)

// Performance is the categorical sell-through label assigned to a linked
// project from the (elapsed days, absorption rate) decision table.
type Performance int

const (
	PerformanceUnknown Performance = iota
	PerformanceHotLaunch
	PerformanceSteadyLaunch
	PerformanceWatch
	PerformanceExcellent
	PerformanceGood
	PerformanceAverage
	PerformanceSlow
	PerformanceStableLongTerm
	PerformanceContinuing
	PerformanceSluggish
	PerformanceDifficult
)

// String returns the stable machine token for the label.
func (p Performance) String() string {
	switch p {
	case PerformanceHotLaunch:
		return "hot_launch"
	case PerformanceSteadyLaunch:
		return "steady_launch"
	case PerformanceWatch:
		return "watch"
	case PerformanceExcellent:
		return "excellent"
	case PerformanceGood:
		return "good"
	case PerformanceAverage:
		return "average"
	case PerformanceSlow:
		return "slow"
	case PerformanceStableLongTerm:
		return "stable_long_term"
	case PerformanceContinuing:
		return "continuing"
	case PerformanceSluggish:
		return "sluggish"
	case PerformanceDifficult:
		return "difficult"
	default:
		return "unknown"
	}
}

// Display returns the human-readable label. Program logic must branch on
// the enum value, never on this string.
func (p Performance) Display() string {
	switch p {
	case PerformanceHotLaunch:
		return "hot new launch"
	case PerformanceSteadyLaunch:
		return "steady new launch"
	case PerformanceWatch:
		return "watch"
	case PerformanceExcellent:
		return "excellent"
	case PerformanceGood:
		return "good"
	case PerformanceAverage:
		return "average"
	case PerformanceSlow:
		return "slow moving"
	case PerformanceStableLongTerm:
		return "stable long-term"
	case PerformanceContinuing:
		return "continuing"
	case PerformanceSluggish:
		return "sluggish"
	case PerformanceDifficult:
		return "difficult"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the machine token.
func (p Performance) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", p.String())), nil
}

// SalesStage buckets a project's elapsed marketing duration.
type SalesStage int

const (
	StageUnknown SalesStage = iota
	StageLaunch             // < 90 days
	StageEarly              // 90-180 days
	StageMain               // 180-365 days
	StageLate               // 1-2 years
	StageExtended           // >= 2 years
)

func (s SalesStage) String() string {
	switch s {
	case StageLaunch:
		return "launch"
	case StageEarly:
		return "early"
	case StageMain:
		return "main"
	case StageLate:
		return "late"
	case StageExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// Display returns the human-readable stage description.
func (s SalesStage) Display() string {
	switch s {
	case StageLaunch:
		return "launch period (under 3 months)"
	case StageEarly:
		return "early sales (3-6 months)"
	case StageMain:
		return "main sales (6-12 months)"
	case StageLate:
		return "late sales (1-2 years)"
	case StageExtended:
		return "extended sales (over 2 years)"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the machine token.
func (s SalesStage) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

// LinkedProject is a Project joined with its aggregated transactions for a
// single analysis run. Created once per run from a fixed analysis date and
// immutable thereafter.
type LinkedProject struct {
	Project

	UnitsSold      int `json:"units_sold"`
	CancelledCount int `json:"cancelled_count"`

	// AbsorptionRate is the sell-through percentage (0-100, 2 decimals).
	AbsorptionRate float64 `json:"absorption_rate"`
	// RateValid is false when TotalUnits <= 0; the project is then excluded
	// from rate-based aggregation but retained in counts.
	RateValid bool `json:"rate_valid"`

	MarketingStartDate *time.Time `json:"marketing_start,omitempty"`
	// StartCorrected marks projects whose recorded start post-dated their
	// first registered sale and was pulled back to it.
	StartCorrected bool `json:"start_corrected,omitempty"`

	ElapsedDays   int     `json:"elapsed_days"`
	ElapsedMonths float64 `json:"elapsed_months"`

	// MonthlyRate is AbsorptionRate / ElapsedMonths (percentage points per
	// month, 2 decimals).
	MonthlyRate float64 `json:"monthly_rate"`
	// TimeAdjustedRate is the 0-1 scale rate scaled by the duration factor
	// and capped at 1.
	TimeAdjustedRate float64 `json:"time_adjusted_rate"`

	// EstimatedMonthsToSellout is (100 - rate) / monthly rate; +Inf encoded
	// as 0 with SelloutUnbounded set.
	EstimatedMonthsToSellout float64 `json:"estimated_months_to_sellout"`
	SelloutUnbounded         bool    `json:"sellout_unbounded,omitempty"`

	Stage       SalesStage  `json:"stage"`
	Performance Performance `json:"performance"`

	// Transactions carries the raw linked transactions through to the
	// aggregation stage; omitted from API payloads.
	Transactions []Transaction `json:"-"`
}

// QuarterlySeries is one (project, quarter) row of the cumulative
// sell-through series. Rows exist only for quarters with at least one
// linked transaction; within a project, cumulative values never decrease
// across chronologically ordered quarters.
type QuarterlySeries struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	City      string `json:"city"`
	District  string `json:"district"`

	// Quarter is the era-year quarter label, e.g. "111Y3S". Rows are
	// emitted in ascending quarter order per project.
	Quarter string `json:"quarter"`

	UnitsSold       int     `json:"units_sold"`
	MeanUnitPrice   float64 `json:"mean_unit_price"`
	MedianUnitPrice float64 `json:"median_unit_price"`

	CumulativeUnits int     `json:"cumulative_units"`
	CumulativeRate  float64 `json:"cumulative_rate"`
}

// RollupLevel distinguishes district-level from city-level rollups.
type RollupLevel int

const (
	LevelDistrict RollupLevel = iota
	LevelCity
)

func (l RollupLevel) String() string {
	if l == LevelCity {
		return "city"
	}
	return "district"
}

// Tier is the categorical market-performance band assigned to a rollup.
// District rollups use the excellent..difficult scale, city rollups the
// hot..cold scale; the two decision tables are independent.
type Tier int

const (
	TierUnknown Tier = iota
	// District scale.
	TierExcellent
	TierGood
	TierAverage
	TierBelowPar
	TierDifficult
	// City scale.
	TierHot
	TierSteady
	TierFlat
	TierCold
)

func (t Tier) String() string {
	switch t {
	case TierExcellent:
		return "excellent"
	case TierGood:
		return "good"
	case TierAverage:
		return "average"
	case TierBelowPar:
		return "below_par"
	case TierDifficult:
		return "difficult"
	case TierHot:
		return "hot"
	case TierSteady:
		return "steady"
	case TierFlat:
		return "flat"
	case TierCold:
		return "cold"
	default:
		return "unknown"
	}
}

// Display returns the human-readable tier name.
func (t Tier) Display() string {
	switch t {
	case TierExcellent:
		return "excellent market"
	case TierGood:
		return "good market"
	case TierAverage:
		return "average market"
	case TierBelowPar:
		return "below-par market"
	case TierDifficult:
		return "difficult market"
	case TierHot:
		return "hot market"
	case TierSteady:
		return "steady market"
	case TierFlat:
		return "flat market"
	case TierCold:
		return "cold market"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the machine token.
func (t Tier) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.String())), nil
}

// RegionRollup aggregates linked projects within one region. District is
// empty for city-level rollups. OverallRate weights every project by its
// unit count; it is a deliberately different statistic from MeanRate.
type RegionRollup struct {
	Level    RollupLevel `json:"level"`
	City     string      `json:"city"`
	District string      `json:"district,omitempty"`

	ProjectCount int `json:"project_count"`
	TotalUnits   int `json:"total_units"`
	UnitsSold    int `json:"units_sold"`

	// OverallRate = sum(units_sold) / sum(total_units) * 100 over projects
	// with a valid rate.
	OverallRate float64 `json:"overall_rate"`
	// MeanRate is the arithmetic mean of per-project absorption rates.
	MeanRate         float64 `json:"mean_rate"`
	MeanMonthlyRate  float64 `json:"mean_monthly_rate"`
	MeanElapsedMonth float64 `json:"mean_elapsed_months"`
	TimeAdjustedRate float64 `json:"time_adjusted_rate"`

	// WeightedUnitPrice is the transaction-volume-weighted mean unit price
	// across the region's linked transactions (0 when prices are absent).
	WeightedUnitPrice float64 `json:"weighted_unit_price,omitempty"`

	// DistrictCount and CommunityCount are populated at city level only.
	DistrictCount  int `json:"district_count,omitempty"`
	CommunityCount int `json:"community_count,omitempty"`

	Tier Tier `json:"tier"`
}

// Region returns the display key: "city district" at district level, the
// city name alone at city level.
func (r RegionRollup) Region() string {
	if r.District == "" {
		return r.City
	}
	return r.City + " " + r.District
}
