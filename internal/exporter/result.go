package exporter

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"presalecli/internal/pipeline"
	"presalecli/pkg/contracts/domain"
)

// Fixed output file names inside the reports directory.
const (
	SummaryFile   = "summary.csv"
	ProjectsFile  = "projects.csv"
	DistrictsFile = "districts.csv"
	CitiesFile    = "cities.csv"
	QuarterlyFile = "quarterly.csv"
	RiskFile      = "risk.csv"
)

// ResultExporter writes one analysis run's tables as BOM-prefixed CSV
// files.
type ResultExporter struct {
	csvWriter *CSVWriter
}

// NewResultExporter creates an exporter rooted at the reports directory.
func NewResultExporter(reportsDir string) *ResultExporter {
	return &ResultExporter{csvWriter: NewCSVWriter(reportsDir)}
}

// ExportAll writes every result table under the reports directory.
func (e *ResultExporter) ExportAll(res *pipeline.Result) error {
	writes := []struct {
		name    string
		headers []string
		records [][]string
	}{
		{SummaryFile, summaryHeaders, summaryRecords(res)},
		{ProjectsFile, projectHeaders, projectRecords(res.Projects)},
		{DistrictsFile, rollupHeaders, rollupRecords(res.Districts)},
		{CitiesFile, rollupHeaders, rollupRecords(res.Cities)},
		{QuarterlyFile, quarterlyHeaders, quarterlyRecords(res.Quarterly)},
		{RiskFile, riskHeaders, riskRecords(res.Risk)},
	}
	for _, w := range writes {
		if err := e.csvWriter.WriteSimpleCSV(w.name, w.headers, w.records); err != nil {
			return fmt.Errorf("export %s: %w", w.name, err)
		}
	}
	return nil
}

// ExportProjectHistories writes one quarterly-history CSV per project into
// historyDir (relative paths resolve under the reports directory).
func (e *ResultExporter) ExportProjectHistories(series []domain.QuarterlySeries, historyDir string) error {
	byProject := make(map[string][]domain.QuarterlySeries)
	for _, row := range series {
		key := row.ProjectID
		if key == "" {
			key = row.Name
		}
		byProject[key] = append(byProject[key], row)
	}

	keys := make([]string, 0, len(byProject))
	for key := range byProject {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name := filepath.Join(historyDir, fmt.Sprintf("history_%s.csv", sanitizeFileName(key)))
		if err := e.csvWriter.WriteSimpleCSV(name, quarterlyHeaders, quarterlyRecords(byProject[key])); err != nil {
			return fmt.Errorf("export history for %s: %w", key, err)
		}
	}
	return nil
}

var summaryHeaders = []string{"metric", "value"}

func summaryRecords(res *pipeline.Result) [][]string {
	highRisk := 0
	for _, rec := range res.Risk {
		if rec.Level() == domain.RiskHigh {
			highRisk++
		}
	}
	return [][]string{
		{"run_id", res.RunID},
		{"analysis_date", res.AnalysisDate.Format("2006-01-02")},
		{"projects", formatInt(len(res.Projects))},
		{"districts", formatInt(len(res.Districts))},
		{"cities", formatInt(len(res.Cities))},
		{"quarterly_rows", formatInt(len(res.Quarterly))},
		{"match_rate", formatFloat(res.Diagnostics.MatchRate)},
		{"linked_transactions", formatInt(res.Diagnostics.LinkedTransactions)},
		{"unmatched_transactions", formatInt(res.Diagnostics.UnmatchedTransactions)},
		{"fallback_matches", formatInt(res.Diagnostics.FallbackMatches)},
		{"high_risk_regions", formatInt(highRisk)},
	}
}

var projectHeaders = []string{
	"id", "city", "district", "name", "total_units", "units_sold",
	"cancelled_count", "absorption_rate", "marketing_start",
	"start_corrected", "elapsed_days", "elapsed_months", "monthly_rate",
	"time_adjusted_rate", "estimated_months_to_sellout", "stage",
	"performance",
}

func projectRecords(projects []domain.LinkedProject) [][]string {
	records := make([][]string, 0, len(projects))
	for _, p := range projects {
		sellout := ""
		if !p.SelloutUnbounded && p.MonthlyRate > 0 {
			sellout = formatFloat(p.EstimatedMonthsToSellout)
		}
		records = append(records, []string{
			p.ID,
			p.City,
			p.District,
			p.Name,
			formatInt(p.TotalUnits),
			formatInt(p.UnitsSold),
			formatInt(p.CancelledCount),
			formatFloat(p.AbsorptionRate),
			formatDate(p.MarketingStartDate),
			formatBool(p.StartCorrected),
			formatInt(p.ElapsedDays),
			formatFloat(p.ElapsedMonths),
			formatFloat(p.MonthlyRate),
			formatFloat4(p.TimeAdjustedRate),
			sellout,
			p.Stage.String(),
			p.Performance.String(),
		})
	}
	return records
}

var rollupHeaders = []string{
	"level", "city", "district", "project_count", "total_units",
	"units_sold", "overall_rate", "mean_rate", "mean_monthly_rate",
	"mean_elapsed_months", "time_adjusted_rate", "weighted_unit_price",
	"district_count", "community_count", "tier",
}

func rollupRecords(rollups []domain.RegionRollup) [][]string {
	records := make([][]string, 0, len(rollups))
	for _, r := range rollups {
		records = append(records, []string{
			r.Level.String(),
			r.City,
			r.District,
			formatInt(r.ProjectCount),
			formatInt(r.TotalUnits),
			formatInt(r.UnitsSold),
			formatFloat(r.OverallRate),
			formatFloat(r.MeanRate),
			formatFloat(r.MeanMonthlyRate),
			formatFloat(r.MeanElapsedMonth),
			formatFloat4(r.TimeAdjustedRate),
			formatFloat(r.WeightedUnitPrice),
			formatInt(r.DistrictCount),
			formatInt(r.CommunityCount),
			r.Tier.String(),
		})
	}
	return records
}

var quarterlyHeaders = []string{
	"project_id", "name", "city", "district", "quarter", "units_sold",
	"mean_unit_price", "median_unit_price", "cumulative_units",
	"cumulative_rate",
}

func quarterlyRecords(series []domain.QuarterlySeries) [][]string {
	records := make([][]string, 0, len(series))
	for _, row := range series {
		records = append(records, []string{
			row.ProjectID,
			row.Name,
			row.City,
			row.District,
			row.Quarter,
			formatInt(row.UnitsSold),
			formatFloat(row.MeanUnitPrice),
			formatFloat(row.MedianUnitPrice),
			formatInt(row.CumulativeUnits),
			formatFloat(row.CumulativeRate),
		})
	}
	return records
}

var riskHeaders = []string{
	"city", "district", "time_adjusted_rate", "monthly_rate",
	"transaction_count", "avg_sales_months", "project_count",
	"absolute_level", "absolute_score", "absolute_rationale",
	"relative_level", "relative_method", "composite_rank",
	"percentile_rank", "relative_rationale", "final_level",
}

func riskRecords(records []domain.RiskRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.City,
			rec.District,
			formatFloat4(rec.TimeAdjustedRate),
			formatFloat4(rec.MonthlyRate),
			formatInt(rec.TransactionCount),
			formatFloat(rec.AvgSalesMonths),
			formatInt(rec.ProjectCount),
			rec.AbsoluteLevel.String(),
			formatFloat(rec.AbsoluteScore),
			rec.AbsoluteRationale,
			rec.RelativeLevel.String(),
			rec.RelativeMethod.String(),
			formatFloat(rec.CompositeRank),
			formatFloat(rec.PercentileRank),
			rec.RelativeRationale,
			rec.Level().String(),
		})
	}
	return rows
}

// sanitizeFileName keeps letters, digits, dash and underscore.
func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
