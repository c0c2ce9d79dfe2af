package exporter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presalecli/internal/pipeline"
	"presalecli/pkg/contracts/domain"
)

func resultFixture() *pipeline.Result {
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return &pipeline.Result{
		RunID:        "3b9dfa60-1111-4222-8333-abcdefabcdef",
		AnalysisDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		StartedAt:    time.Date(2025, 6, 30, 8, 0, 0, 0, time.UTC),
		Duration:     1500 * time.Millisecond,
		Projects: []domain.LinkedProject{
			{
				Project: domain.Project{
					ID:         "RPUNML37CA0881",
					City:       "台北市",
					District:   "大安區",
					Name:       "御景天下",
					TotalUnits: 20,
				},
				UnitsSold:                8,
				AbsorptionRate:           40,
				RateValid:                true,
				MarketingStartDate:       &start,
				ElapsedDays:              537,
				ElapsedMonths:            17.64,
				MonthlyRate:              2.27,
				TimeAdjustedRate:         0.2722,
				EstimatedMonthsToSellout: 26.43,
				Stage:                    domain.StageLate,
				Performance:              domain.PerformanceSluggish,
			},
			{
				Project: domain.Project{
					ID:         "RPXAAA11BB2233",
					City:       "台北市",
					District:   "信義區",
					Name:       "信義首府",
					TotalUnits: 10,
				},
				UnitsSold:        0,
				AbsorptionRate:   0,
				RateValid:        true,
				SelloutUnbounded: true,
				Stage:            domain.StageUnknown,
			},
		},
		Districts: []domain.RegionRollup{
			{
				Level:            domain.LevelDistrict,
				City:             "台北市",
				District:         "大安區",
				ProjectCount:     1,
				TotalUnits:       20,
				UnitsSold:        8,
				OverallRate:      40,
				MeanRate:         40,
				MeanElapsedMonth: 17.64,
				TimeAdjustedRate: 0.2722,
				Tier:             domain.TierAverage,
			},
		},
		Cities: []domain.RegionRollup{
			{
				Level:          domain.LevelCity,
				City:           "台北市",
				ProjectCount:   2,
				TotalUnits:     30,
				UnitsSold:      8,
				OverallRate:    26.67,
				DistrictCount:  2,
				CommunityCount: 2,
				Tier:           domain.TierCold,
			},
		},
		Quarterly: []domain.QuarterlySeries{
			{
				ProjectID:       "RPUNML37CA0881",
				Name:            "御景天下",
				City:            "台北市",
				District:        "大安區",
				Quarter:         "113Y1S",
				UnitsSold:       5,
				MeanUnitPrice:   92.5,
				MedianUnitPrice: 91,
				CumulativeUnits: 5,
				CumulativeRate:  25,
			},
			{
				ProjectID:       "RPUNML37CA0881",
				Name:            "御景天下",
				City:            "台北市",
				District:        "大安區",
				Quarter:         "113Y2S",
				UnitsSold:       3,
				CumulativeUnits: 8,
				CumulativeRate:  40,
			},
			{
				ProjectID:       "RPXAAA11BB2233",
				Name:            "信義首府",
				City:            "台北市",
				District:        "信義區",
				Quarter:         "113Y1S",
				UnitsSold:       0,
				CumulativeUnits: 0,
			},
		},
		Risk: []domain.RiskRecord{
			{
				City:              "台北市",
				District:          "大安區",
				TimeAdjustedRate:  0.2722,
				MonthlyRate:       0.0154,
				TransactionCount:  8,
				AvgSalesMonths:    17.64,
				ProjectCount:      1,
				AbsoluteLevel:     domain.RiskMedium,
				AbsoluteScore:     2,
				AbsoluteRationale: "weak monthly sales efficiency",
				RelativeLevel:     domain.RiskHigh,
				RelativeMethod:    domain.MethodRelative,
				CompositeRank:     1.6,
				PercentileRank:    25,
				RelativeRationale: "bottom 25% of 台北市 districts (composite rank 1.60, percentile 25.0)",
			},
		},
		Diagnostics: domain.MatchDiagnostics{
			ProjectIDs:            2,
			TransactionIDs:        2,
			MatchedIDs:            2,
			MatchedProjects:       2,
			MatchRate:             100,
			LinkedTransactions:    8,
			UnmatchedTransactions: 0,
		},
	}
}

func TestExportAllWritesEveryTable(t *testing.T) {
	tempDir := t.TempDir()
	e := NewResultExporter(tempDir)

	require.NoError(t, e.ExportAll(resultFixture()))

	for _, name := range []string{SummaryFile, ProjectsFile, DistrictsFile, CitiesFile, QuarterlyFile, RiskFile} {
		_, err := os.Stat(filepath.Join(tempDir, name))
		assert.NoError(t, err, name)
	}
}

func TestExportProjectsTable(t *testing.T) {
	tempDir := t.TempDir()
	e := NewResultExporter(tempDir)
	require.NoError(t, e.ExportAll(resultFixture()))

	rows := readAllCSV(t, filepath.Join(tempDir, ProjectsFile))
	require.Len(t, rows, 3)
	assert.Equal(t, projectHeaders, rows[0])

	header := index(rows[0])
	first := rows[1]
	assert.Equal(t, "RPUNML37CA0881", first[header["id"]])
	assert.Equal(t, "大安區", first[header["district"]])
	assert.Equal(t, "40.00", first[header["absorption_rate"]])
	assert.Equal(t, "2024-01-10", first[header["marketing_start"]])
	assert.Equal(t, "0.2722", first[header["time_adjusted_rate"]])
	assert.Equal(t, "26.43", first[header["estimated_months_to_sellout"]])
	assert.Equal(t, "late", first[header["stage"]])

	// A project with no sales has no bounded sellout estimate.
	second := rows[2]
	assert.Equal(t, "", second[header["estimated_months_to_sellout"]])
	assert.Equal(t, "", second[header["marketing_start"]])
}

func TestExportSummaryTable(t *testing.T) {
	tempDir := t.TempDir()
	e := NewResultExporter(tempDir)
	require.NoError(t, e.ExportAll(resultFixture()))

	rows := readAllCSV(t, filepath.Join(tempDir, SummaryFile))
	values := make(map[string]string, len(rows))
	for _, row := range rows[1:] {
		values[row[0]] = row[1]
	}

	assert.Equal(t, "3b9dfa60-1111-4222-8333-abcdefabcdef", values["run_id"])
	assert.Equal(t, "2025-06-30", values["analysis_date"])
	assert.Equal(t, "2", values["projects"])
	assert.Equal(t, "100.00", values["match_rate"])
	assert.Equal(t, "1", values["high_risk_regions"])
}

func TestExportRiskTable(t *testing.T) {
	tempDir := t.TempDir()
	e := NewResultExporter(tempDir)
	require.NoError(t, e.ExportAll(resultFixture()))

	rows := readAllCSV(t, filepath.Join(tempDir, RiskFile))
	require.Len(t, rows, 2)

	header := index(rows[0])
	row := rows[1]
	assert.Equal(t, "medium", row[header["absolute_level"]])
	assert.Equal(t, "high", row[header["relative_level"]])
	assert.Equal(t, "relative", row[header["relative_method"]])
	assert.Equal(t, "high", row[header["final_level"]])
	assert.Contains(t, row[header["relative_rationale"]], "bottom 25%")
}

func TestExportProjectHistories(t *testing.T) {
	tempDir := t.TempDir()
	e := NewResultExporter(tempDir)
	res := resultFixture()

	require.NoError(t, e.ExportProjectHistories(res.Quarterly, "history"))

	first := readAllCSV(t, filepath.Join(tempDir, "history", "history_RPUNML37CA0881.csv"))
	require.Len(t, first, 3)
	assert.Equal(t, "113Y1S", first[1][4])
	assert.Equal(t, "113Y2S", first[2][4])

	second := readAllCSV(t, filepath.Join(tempDir, "history", "history_RPXAAA11BB2233.csv"))
	require.Len(t, second, 2)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "RPUNML37CA0881", sanitizeFileName("RPUNML37CA0881"))
	assert.Equal(t, "____", sanitizeFileName("御景天下"))
	assert.Equal(t, "a_b-c", sanitizeFileName("a/b-c"))
}

// index maps header names to column positions.
func index(headers []string) map[string]int {
	m := make(map[string]int, len(headers))
	for i, h := range headers {
		m[h] = i
	}
	return m
}
