package charts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presalecli/internal/pipeline"
	"presalecli/pkg/contracts/domain"
)

func chartFixture() *pipeline.Result {
	return &pipeline.Result{
		RunID:        "99999999-8888-4777-8666-555555555555",
		AnalysisDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		Districts: []domain.RegionRollup{
			{Level: domain.LevelDistrict, City: "台北市", District: "大安區", OverallRate: 72.5, Tier: domain.TierGood},
			{Level: domain.LevelDistrict, City: "台北市", District: "信義區", OverallRate: 38.4, Tier: domain.TierBelowPar},
		},
		Cities: []domain.RegionRollup{
			{Level: domain.LevelCity, City: "台北市", OverallRate: 55.4, Tier: domain.TierSteady},
		},
		Risk: []domain.RiskRecord{
			{City: "台北市", District: "大安區", AbsoluteLevel: domain.RiskLow},
			{City: "台北市", District: "信義區", AbsoluteLevel: domain.RiskMedium},
			{City: "台北市", District: "中山區", AbsoluteLevel: domain.RiskHigh},
		},
	}
}

func TestBuildOverview(t *testing.T) {
	doc, err := BuildOverview(chartFixture())
	require.NoError(t, err)

	assert.Contains(t, doc, "<!DOCTYPE html>")
	assert.Contains(t, doc, "PresalePulse Analysis Overview")
	assert.Contains(t, doc, "99999999-8888-4777-8666-555555555555")
	assert.Contains(t, doc, "2025-06-30")
	assert.Equal(t, 3, strings.Count(doc, "<svg"), "district bars, city bars, risk pie")
	assert.Contains(t, doc, "台北市 大安區")
	assert.Contains(t, doc, "Risk distribution")
}

func TestBuildOverviewOrdersBarsByRate(t *testing.T) {
	doc, err := BuildOverview(chartFixture())
	require.NoError(t, err)

	daan := strings.Index(doc, "台北市 大安區")
	xinyi := strings.Index(doc, "台北市 信義區")
	require.True(t, daan >= 0 && xinyi >= 0)
	assert.Less(t, daan, xinyi, "stronger district drawn first")
}

func TestBuildOverviewNoData(t *testing.T) {
	_, err := BuildOverview(&pipeline.Result{})
	assert.Error(t, err)

	_, err = BuildOverview(nil)
	assert.Error(t, err)
}

func TestBarChartScaling(t *testing.T) {
	svg := string(barChartSVG("rates", []BarDatum{
		{Label: "a", Value: 100},
		{Label: "b", Value: 50},
		{Label: "c", Value: 0},
	}))

	assert.Equal(t, 3, strings.Count(svg, "<rect"))
	// The maximum bar spans the full drawable width, half the value half
	// the width.
	span := float64(barChartWidth - barLabelWidth - barValueWidth - chartPadding*2)
	assert.Contains(t, svg, fmt.Sprintf(`width="%.1f"`, span))
	assert.Contains(t, svg, fmt.Sprintf(`width="%.1f"`, span/2))
	// Zero value draws an empty bar, not a phantom sliver.
	assert.Contains(t, svg, `width="0.0"`)
}

func TestPieChartSingleSliceIsFullCircle(t *testing.T) {
	svg := string(pieChartSVG("risk", []PieDatum{
		{Label: "low", Value: 4, Color: "#2e7d32"},
		{Label: "high", Value: 0, Color: "#c62828"},
	}))

	assert.Contains(t, svg, "<circle")
	assert.NotContains(t, svg, "<path")
	assert.Contains(t, svg, "low: 4 (100.0%)")
	assert.NotContains(t, svg, "high:")
}

func TestPieChartSliceCount(t *testing.T) {
	svg := string(pieChartSVG("risk", []PieDatum{
		{Label: "low", Value: 2, Color: "#2e7d32"},
		{Label: "medium", Value: 1, Color: "#f9a825"},
		{Label: "high", Value: 1, Color: "#c62828"},
	}))

	assert.Equal(t, 3, strings.Count(svg, "<path"))
	assert.Contains(t, svg, "low: 2 (50.0%)")
	assert.Contains(t, svg, "high: 1 (25.0%)")
}

func TestPieChartEmpty(t *testing.T) {
	assert.Empty(t, pieChartSVG("risk", nil))
	assert.Empty(t, pieChartSVG("risk", []PieDatum{{Label: "low", Value: 0}}))
}

func TestWriteHTML(t *testing.T) {
	tempDir := t.TempDir()
	r := NewRenderer(nil)
	path := filepath.Join(tempDir, "charts", "overview.html")

	require.NoError(t, r.WriteHTML(chartFixture(), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<svg")
}
