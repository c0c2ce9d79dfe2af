package aggregate

import (
	"context"
	"log/slog"
	"sort"

	"presalecli/internal/calendar"
	"presalecli/pkg/contracts/domain"
)

// quarterStat accumulates one (project, quarter) bucket.
type quarterStat struct {
	count  int
	prices []float64
}

// Quarterly derives the per-project cumulative sell-through series.
//
// Only non-cancelled transactions with a parseable date are bucketed, and
// only quarters at or after the project's marketing-start quarter appear;
// projects without a resolved start date emit no series. Price statistics
// draw on unit prices inside the global trim bounds, while bucket counts
// include unpriced transactions.
func (a *Aggregator) Quarterly(ctx context.Context, linked []domain.LinkedProject) []domain.QuarterlySeries {
	lower, upper, trimmed := a.priceBounds(linked)

	var series []domain.QuarterlySeries
	projects := 0
	for i := range linked {
		lp := &linked[i]
		if lp.MarketingStartDate == nil {
			continue
		}
		startQ := a.cfg.Calendar.QuarterOf(*lp.MarketingStartDate)

		buckets := make(map[calendar.Quarter]*quarterStat)
		for _, tx := range lp.Transactions {
			if tx.Cancelled || tx.Date == nil {
				continue
			}
			q := a.cfg.Calendar.QuarterOf(*tx.Date)
			if q.Before(startQ) {
				continue
			}
			st, ok := buckets[q]
			if !ok {
				st = &quarterStat{}
				buckets[q] = st
			}
			st.count++
			if tx.UnitPrice > 0 && (!trimmed || (tx.UnitPrice >= lower && tx.UnitPrice <= upper)) {
				st.prices = append(st.prices, tx.UnitPrice)
			}
		}
		if len(buckets) == 0 {
			continue
		}
		projects++

		quarters := make([]calendar.Quarter, 0, len(buckets))
		for q := range buckets {
			quarters = append(quarters, q)
		}
		sort.Slice(quarters, func(i, j int) bool { return quarters[i].Before(quarters[j]) })

		cumulative := 0
		for _, q := range quarters {
			st := buckets[q]
			cumulative += st.count

			row := domain.QuarterlySeries{
				ProjectID:       lp.ID,
				Name:            lp.Name,
				City:            lp.City,
				District:        lp.District,
				Quarter:         q.Label(),
				UnitsSold:       st.count,
				CumulativeUnits: cumulative,
			}
			if lp.TotalUnits > 0 {
				row.CumulativeRate = round2(float64(cumulative) / float64(lp.TotalUnits) * 100)
			}
			if len(st.prices) > 0 {
				sort.Float64s(st.prices)
				row.MeanUnitPrice = round2(mean(st.prices))
				row.MedianUnitPrice = round2(median(st.prices))
			}
			series = append(series, row)
		}
	}

	sort.SliceStable(series, func(i, j int) bool {
		if series[i].ProjectID != series[j].ProjectID {
			return series[i].ProjectID < series[j].ProjectID
		}
		return series[i].Name < series[j].Name
	})

	a.logger.InfoContext(ctx, "quarterly series complete",
		slog.Int("rows", len(series)),
		slog.Int("projects", projects),
	)
	return series
}

// priceBounds computes the global trim window over every non-cancelled
// priced transaction. The third return is false when trimming is disabled
// or there is nothing to trim.
func (a *Aggregator) priceBounds(linked []domain.LinkedProject) (lower, upper float64, ok bool) {
	if a.cfg.PriceTrim <= 0 {
		return 0, 0, false
	}
	var prices []float64
	for i := range linked {
		for _, tx := range linked[i].Transactions {
			if !tx.Cancelled && tx.UnitPrice > 0 {
				prices = append(prices, tx.UnitPrice)
			}
		}
	}
	if len(prices) == 0 {
		return 0, 0, false
	}
	sort.Float64s(prices)
	tail := a.cfg.PriceTrim / 2
	return quantile(prices, tail), quantile(prices, 1-tail), true
}

// quantile interpolates linearly between order statistics, matching the
// convention of most statistics packages.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
