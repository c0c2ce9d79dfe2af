package aggregate

import "presalecli/pkg/contracts/domain"

// TierBands holds the overall-rate cutoffs for the two tier decision
// tables. District and city rollups use independent scales; each band is
// an inclusive lower bound in percentage points.
type TierBands struct {
	DistrictExcellent float64 `json:"district_excellent"`
	DistrictGood      float64 `json:"district_good"`
	DistrictAverage   float64 `json:"district_average"`
	DistrictBelowPar  float64 `json:"district_below_par"`

	CityHot    float64 `json:"city_hot"`
	CitySteady float64 `json:"city_steady"`
	CityFlat   float64 `json:"city_flat"`
}

// DefaultTierBands returns the production cutoffs.
func DefaultTierBands() TierBands {
	return TierBands{
		DistrictExcellent: 80,
		DistrictGood:      60,
		DistrictAverage:   40,
		DistrictBelowPar:  20,

		CityHot:    70,
		CitySteady: 50,
		CityFlat:   30,
	}
}

// IsValid reports whether each scale's cutoffs are strictly descending and
// non-negative.
func (b TierBands) IsValid() bool {
	district := b.DistrictExcellent > b.DistrictGood &&
		b.DistrictGood > b.DistrictAverage &&
		b.DistrictAverage > b.DistrictBelowPar &&
		b.DistrictBelowPar >= 0
	city := b.CityHot > b.CitySteady &&
		b.CitySteady > b.CityFlat &&
		b.CityFlat >= 0
	return district && city
}

// DistrictTier classifies a district-level overall rate.
func (b TierBands) DistrictTier(rate float64) domain.Tier {
	switch {
	case rate >= b.DistrictExcellent:
		return domain.TierExcellent
	case rate >= b.DistrictGood:
		return domain.TierGood
	case rate >= b.DistrictAverage:
		return domain.TierAverage
	case rate >= b.DistrictBelowPar:
		return domain.TierBelowPar
	default:
		return domain.TierDifficult
	}
}

// CityTier classifies a city-level overall rate.
func (b TierBands) CityTier(rate float64) domain.Tier {
	switch {
	case rate >= b.CityHot:
		return domain.TierHot
	case rate >= b.CitySteady:
		return domain.TierSteady
	case rate >= b.CityFlat:
		return domain.TierFlat
	default:
		return domain.TierCold
	}
}
