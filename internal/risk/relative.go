package risk

import (
	"fmt"
	"strings"

	"presalecli/pkg/contracts/domain"
)

// rankWithinCity computes composite competition ranks and percentile
// classification for one city's records, addressed by index into records.
func (c *Classifier) rankWithinCity(records []domain.RiskRecord, idx []int) {
	n := len(idx)
	timeAdj := make([]float64, n)
	monthly := make([]float64, n)
	txCount := make([]float64, n)
	for k, i := range idx {
		timeAdj[k] = records[i].TimeAdjustedRate
		monthly[k] = records[i].MonthlyRate
		txCount[k] = float64(records[i].TransactionCount)
	}

	taRanks := competitionRanks(timeAdj)
	moRanks := competitionRanks(monthly)
	txRanks := competitionRanks(txCount)

	w := c.cfg.Weights
	composites := make([]float64, n)
	for k := range idx {
		composites[k] = w.TimeAdjusted*taRanks[k] + w.Monthly*moRanks[k] + w.Transactions*txRanks[k]
	}

	for k, i := range idx {
		records[i].CompositeRank = round2(composites[k])
		records[i].PercentileRank = round2(percentileOf(composites, k))
		c.classifyRelative(&records[i])
	}
}

// classifyRelative assigns the relative level from the percentile, after
// checking the absolute floors. Floors win unconditionally.
func (c *Classifier) classifyRelative(rec *domain.RiskRecord) {
	rec.RelativeMethod = domain.MethodRelative

	if breached := c.floorBreaches(rec); len(breached) > 0 {
		rec.RelativeLevel = domain.RiskHigh
		rec.RelativeRationale = "absolute floor breached: " + strings.Join(breached, "; ")
		return
	}

	switch {
	case rec.PercentileRank <= c.cfg.HighPercentile:
		rec.RelativeLevel = domain.RiskHigh
		rec.RelativeRationale = fmt.Sprintf("bottom %.0f%% of %s districts (composite rank %.2f, percentile %.1f)",
			c.cfg.HighPercentile, rec.City, rec.CompositeRank, rec.PercentileRank)
	case rec.PercentileRank <= c.cfg.MediumPercentile:
		rec.RelativeLevel = domain.RiskMedium
		rec.RelativeRationale = fmt.Sprintf("mid-band of %s districts (composite rank %.2f, percentile %.1f)",
			rec.City, rec.CompositeRank, rec.PercentileRank)
	default:
		rec.RelativeLevel = domain.RiskLow
		rec.RelativeRationale = fmt.Sprintf("top %.0f%% of %s districts (composite rank %.2f, percentile %.1f)",
			100-c.cfg.MediumPercentile, rec.City, rec.CompositeRank, rec.PercentileRank)
	}
}

// floorBreaches lists which absolute minimums the record violates.
func (c *Classifier) floorBreaches(rec *domain.RiskRecord) []string {
	f := c.cfg.Floors
	var breached []string
	if rec.TransactionCount < f.MinTransactions {
		breached = append(breached, "transaction count below minimum")
	}
	if rec.TimeAdjustedRate < f.MinTimeAdjusted {
		breached = append(breached, "time-adjusted rate near zero")
	}
	if rec.AvgSalesMonths > f.MaxSalesMonths {
		breached = append(breached, "marketing duration beyond limit")
	}
	return breached
}

// competitionRanks ranks descending: the highest value gets rank 1, and
// tied values share the smallest rank of their group (so two leaders both
// rank 1 and the next value ranks 3).
func competitionRanks(values []float64) []float64 {
	ranks := make([]float64, len(values))
	for i, v := range values {
		greater := 0
		for _, other := range values {
			if other > v {
				greater++
			}
		}
		ranks[i] = float64(greater + 1)
	}
	return ranks
}

// percentileOf returns the share of peers (self included) whose composite
// rank is at or above composites[k], as a percentage. Low composite ranks
// are good, so the best region scores 100 and the worst 100/n.
func percentileOf(composites []float64, k int) float64 {
	atOrAbove := 0
	for _, other := range composites {
		if other >= composites[k] {
			atOrAbove++
		}
	}
	return float64(atOrAbove) / float64(len(composites)) * 100
}
