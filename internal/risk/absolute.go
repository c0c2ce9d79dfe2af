package risk

import (
	"strings"

	"presalecli/pkg/contracts/domain"
)

// scoreAbsolute applies the fixed-threshold rules to one record. Rules
// stack: every firing rule adds its points and its reason.
func (c *Classifier) scoreAbsolute(rec *domain.RiskRecord) {
	rules := c.cfg.Rules

	var score float64
	var reasons []string

	switch {
	case rec.TimeAdjustedRate < rules.CriticalTimeAdjusted:
		score += rules.CriticalTimeAdjustedPoints
		reasons = append(reasons, "time-adjusted absorption critically low")
	case rec.TimeAdjustedRate > rules.OverAbsorption:
		score += rules.OverAbsorptionPoints
		reasons = append(reasons, "absorption unusually fast, possible overheating")
	}

	if rec.MonthlyRate < rules.WeakMonthly {
		score += rules.WeakMonthlyPoints
		reasons = append(reasons, "weak monthly sales efficiency")
	}

	switch {
	case rec.TransactionCount == 0:
		score += rules.NoTransactionPoints
		reasons = append(reasons, "no transactions recorded")
	case rec.TransactionCount < rules.FewTransactions:
		score += rules.FewTransactionPoints
		reasons = append(reasons, "very low transaction count")
	}

	if rec.AvgSalesMonths > rules.LongDuration {
		score += rules.LongDurationPoints
		reasons = append(reasons, "extended marketing duration")
	}

	rec.AbsoluteScore = score
	switch {
	case score >= rules.HighScore:
		rec.AbsoluteLevel = domain.RiskHigh
	case score >= rules.MediumScore:
		rec.AbsoluteLevel = domain.RiskMedium
	default:
		rec.AbsoluteLevel = domain.RiskLow
	}

	if len(reasons) == 0 {
		rec.AbsoluteRationale = "no obvious risk signals"
	} else {
		rec.AbsoluteRationale = strings.Join(reasons, "; ")
	}
}
