package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presalecli/internal/pipeline"
	"presalecli/pkg/contracts/domain"
)

func reportFixture() *pipeline.Result {
	return &pipeline.Result{
		RunID:        "11111111-2222-4333-8444-555555555555",
		AnalysisDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		Projects: []domain.LinkedProject{
			{
				Project:          domain.Project{ID: "RPAAA", City: "台北市", District: "大安區", Name: "快銷案", TotalUnits: 20},
				UnitsSold:        18,
				AbsorptionRate:   90,
				RateValid:        true,
				ElapsedMonths:    6,
				TimeAdjustedRate: 1,
				Performance:      domain.PerformanceExcellent,
			},
			{
				Project:          domain.Project{ID: "RPBBB", City: "台北市", District: "信義區", Name: "中速案", TotalUnits: 20},
				UnitsSold:        8,
				AbsorptionRate:   40,
				RateValid:        true,
				ElapsedMonths:    12,
				TimeAdjustedRate: 0.4,
				Performance:      domain.PerformanceGood,
			},
			{
				Project:          domain.Project{ID: "RPCCC", City: "台北市", District: "中山區", Name: "滯銷案", TotalUnits: 20},
				UnitsSold:        1,
				AbsorptionRate:   5,
				RateValid:        true,
				ElapsedMonths:    24,
				TimeAdjustedRate: 0.025,
				Performance:      domain.PerformanceDifficult,
			},
			{
				Project: domain.Project{ID: "RPDDD", City: "台北市", District: "中山區", Name: "無戶數案"},
				// TotalUnits zero: excluded from rate listings.
			},
		},
		Districts: []domain.RegionRollup{
			{Level: domain.LevelDistrict, City: "台北市", District: "大安區", ProjectCount: 1, TotalUnits: 20, UnitsSold: 18, OverallRate: 90, TimeAdjustedRate: 1, Tier: domain.TierExcellent},
			{Level: domain.LevelDistrict, City: "台北市", District: "信義區", ProjectCount: 1, TotalUnits: 20, UnitsSold: 8, OverallRate: 40, TimeAdjustedRate: 0.4, Tier: domain.TierAverage},
			{Level: domain.LevelDistrict, City: "台北市", District: "中山區", ProjectCount: 2, TotalUnits: 20, UnitsSold: 1, OverallRate: 5, TimeAdjustedRate: 0.025, Tier: domain.TierDifficult},
		},
		Cities: []domain.RegionRollup{
			{Level: domain.LevelCity, City: "台北市", ProjectCount: 4, TotalUnits: 60, UnitsSold: 27, OverallRate: 45, DistrictCount: 3, CommunityCount: 4, Tier: domain.TierFlat},
		},
		Risk: []domain.RiskRecord{
			{City: "台北市", District: "大安區", AbsoluteLevel: domain.RiskLow, RelativeLevel: domain.RiskLow, RelativeMethod: domain.MethodRelative, RelativeRationale: "top 50% of 台北市 districts (composite rank 1.00, percentile 100.0)"},
			{City: "台北市", District: "信義區", AbsoluteLevel: domain.RiskMedium, RelativeLevel: domain.RiskMedium, RelativeMethod: domain.MethodRelative, RelativeRationale: "mid-band of 台北市 districts (composite rank 2.00, percentile 66.7)"},
			{City: "台北市", District: "中山區", AbsoluteLevel: domain.RiskHigh, RelativeLevel: domain.RiskHigh, RelativeMethod: domain.MethodRelative, RelativeRationale: "bottom 25% of 台北市 districts (composite rank 3.00, percentile 33.3)"},
		},
		Diagnostics: domain.MatchDiagnostics{
			ProjectIDs:             4,
			TransactionIDs:         4,
			MatchedIDs:             4,
			MatchRate:              100,
			LinkedTransactions:     27,
			DroppedProjectRows:     1,
			DroppedTransactionRows: 2,
		},
	}
}

func TestWriteSections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, reportFixture()))
	out := buf.String()

	assert.Contains(t, out, "Run: 11111111-2222-4333-8444-555555555555")
	assert.Contains(t, out, "Analysis Date: 2025-06-30")
	assert.Contains(t, out, "DATASET OVERVIEW")
	assert.Contains(t, out, "TOP 3 PROJECTS")
	assert.Contains(t, out, "BOTTOM 3 PROJECTS")
	assert.Contains(t, out, "DISTRICT OVERVIEW")
	assert.Contains(t, out, "CITY OVERVIEW")
	assert.Contains(t, out, "RISK DISTRIBUTION")
	assert.Contains(t, out, "HIGH RISK REGIONS")
	assert.Contains(t, out, "Dropped Rows: 1 project, 2 transaction")
}

func TestWriteProjectOrdering(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, reportFixture()))
	out := buf.String()

	fast := strings.Index(out, "快銷案")
	mid := strings.Index(out, "中速案")
	slow := strings.Index(out, "滯銷案")
	require.True(t, fast >= 0 && mid >= 0 && slow >= 0)
	assert.Less(t, fast, mid)
	assert.Less(t, mid, slow)

	// The zero-unit project carries no rate and stays out of the listings.
	assert.NotContains(t, out, "無戶數案")
}

func TestWriteRiskDistribution(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, reportFixture()))
	out := buf.String()

	assert.Contains(t, out, "low   :   1 (33.3%)")
	assert.Contains(t, out, "high  :   1 (33.3%)")
	assert.Contains(t, out, "台北市 中山區: bottom 25%")
}

func TestWriteDeterministicBody(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, Write(&a, reportFixture()))
	require.NoError(t, Write(&b, reportFixture()))

	// Strip the wall-clock line; everything else must match exactly.
	assert.Equal(t, stripGenerated(a.String()), stripGenerated(b.String()))
}

func TestWriteNilResult(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, nil))
}

func stripGenerated(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, "Generated:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
