package domain

import "fmt"

// RiskLevel is the classification outcome for a region.
type RiskLevel int

const (
	RiskUnknown RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Display returns the human-readable level name.
func (l RiskLevel) Display() string {
	switch l {
	case RiskLow:
		return "low risk"
	case RiskMedium:
		return "medium risk"
	case RiskHigh:
		return "high risk"
	default:
		return "unclassified"
	}
}

// MarshalJSON emits the machine token.
func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", l.String())), nil
}

// ClassificationMethod records how a relative risk level was produced.
type ClassificationMethod int

const (
	MethodAbsolute ClassificationMethod = iota
	MethodRelative
	// MethodFallback marks cities with too few peer regions for relative
	// ranking, where the absolute result was copied over.
	MethodFallback
)

func (m ClassificationMethod) String() string {
	switch m {
	case MethodRelative:
		return "relative"
	case MethodFallback:
		return "absolute_fallback"
	default:
		return "absolute"
	}
}

// MarshalJSON emits the machine token.
func (m ClassificationMethod) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", m.String())), nil
}

// RiskRecord holds both classification results for one region, side by
// side and non-destructively. The metric snapshot is the exact input the
// classifier saw, retained for rationale display and export.
type RiskRecord struct {
	City     string `json:"city"`
	District string `json:"district"`

	// Metric snapshot.
	TimeAdjustedRate float64 `json:"time_adjusted_rate"`
	MonthlyRate      float64 `json:"monthly_rate"`
	TransactionCount int     `json:"transaction_count"`
	AvgSalesMonths   float64 `json:"avg_sales_months"`
	ProjectCount     int     `json:"project_count"`

	// Phase A: absolute (fixed-threshold) result.
	AbsoluteLevel     RiskLevel `json:"absolute_level"`
	AbsoluteScore     float64   `json:"absolute_score"`
	AbsoluteRationale string    `json:"absolute_rationale"`

	// Phase B: peer-relative result; method Fallback when the city had
	// fewer regions than the relative minimum.
	RelativeLevel     RiskLevel            `json:"relative_level"`
	RelativeMethod    ClassificationMethod `json:"relative_method"`
	CompositeRank     float64              `json:"composite_rank,omitempty"`
	PercentileRank    float64              `json:"percentile_rank,omitempty"`
	RelativeRationale string               `json:"relative_rationale"`
}

// Region returns the "city district" display key.
func (r RiskRecord) Region() string {
	return r.City + " " + r.District
}

// Level returns the final classification: the relative result when one was
// computed, otherwise the absolute result.
func (r RiskRecord) Level() RiskLevel {
	if r.RelativeLevel != RiskUnknown {
		return r.RelativeLevel
	}
	return r.AbsoluteLevel
}
