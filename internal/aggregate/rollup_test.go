package aggregate

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presalecli/pkg/contracts/domain"
)

func testAggregator(t *testing.T, cfg Config) *Aggregator {
	t.Helper()
	agg, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return agg
}

// linkedFixture builds an evaluated project with the fields the rollup
// reads. months <= 0 models a project without a marketing start date.
func linkedFixture(city, district string, units, sold int, rate, monthly, months float64) domain.LinkedProject {
	lp := domain.LinkedProject{
		Project: domain.Project{
			City:       city,
			District:   district,
			Name:       district + "-project",
			TotalUnits: units,
		},
		UnitsSold:      sold,
		RateValid:      units > 0,
		AbsorptionRate: rate,
		MonthlyRate:    monthly,
		ElapsedMonths:  months,
	}
	if months > 0 {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		lp.MarketingStartDate = &start
	}
	return lp
}

func TestRollupWeightedOverallRate(t *testing.T) {
	agg := testAggregator(t, DefaultConfig())

	// 5/50 = 10% and 45/150 = 30%: the naive mean is 20%, the
	// unit-weighted overall rate is 50/200 = 25%.
	linked := []domain.LinkedProject{
		linkedFixture("新北市", "板橋區", 50, 5, 10.0, 1.0, 10.0),
		linkedFixture("新北市", "板橋區", 150, 45, 30.0, 3.0, 10.0),
	}

	rollups := agg.Rollup(context.Background(), linked, domain.LevelDistrict)
	require.Len(t, rollups, 1)

	r := rollups[0]
	assert.Equal(t, "新北市", r.City)
	assert.Equal(t, "板橋區", r.District)
	assert.Equal(t, 2, r.ProjectCount)
	assert.Equal(t, 200, r.TotalUnits)
	assert.Equal(t, 50, r.UnitsSold)
	assert.InDelta(t, 25.0, r.OverallRate, 1e-9)
	assert.InDelta(t, 20.0, r.MeanRate, 1e-9)
	assert.InDelta(t, 2.0, r.MeanMonthlyRate, 1e-9)
	assert.InDelta(t, 10.0, r.MeanElapsedMonth, 1e-9)
}

func TestRollupDistrictGroupingAndOrder(t *testing.T) {
	agg := testAggregator(t, DefaultConfig())

	linked := []domain.LinkedProject{
		linkedFixture("台北市", "大安區", 100, 50, 50.0, 5.0, 10.0),
		linkedFixture("新北市", "中和區", 80, 20, 25.0, 2.5, 10.0),
		linkedFixture("台北市", "信義區", 60, 30, 50.0, 5.0, 10.0),
		linkedFixture("台北市", "大安區", 40, 10, 25.0, 2.5, 10.0),
	}

	rollups := agg.Rollup(context.Background(), linked, domain.LevelDistrict)
	require.Len(t, rollups, 3)

	assert.Equal(t, "台北市 信義區", rollups[0].Region())
	assert.Equal(t, "台北市 大安區", rollups[1].Region())
	assert.Equal(t, "新北市 中和區", rollups[2].Region())
	assert.Equal(t, 2, rollups[1].ProjectCount)
	assert.Equal(t, domain.LevelDistrict, rollups[0].Level)
}

func TestRollupCityLevel(t *testing.T) {
	agg := testAggregator(t, DefaultConfig())

	linked := []domain.LinkedProject{
		linkedFixture("台北市", "大安區", 100, 60, 60.0, 5.0, 12.0),
		linkedFixture("台北市", "信義區", 100, 50, 50.0, 4.0, 12.0),
		linkedFixture("台北市", "大安區", 0, 0, 0, 0, 0),
	}

	rollups := agg.Rollup(context.Background(), linked, domain.LevelCity)
	require.Len(t, rollups, 1)

	r := rollups[0]
	assert.Equal(t, domain.LevelCity, r.Level)
	assert.Equal(t, "台北市", r.Region())
	assert.Empty(t, r.District)
	assert.Equal(t, 2, r.DistrictCount)
	assert.Equal(t, 3, r.CommunityCount)
	assert.InDelta(t, 55.0, r.OverallRate, 1e-9)
	assert.Equal(t, domain.TierSteady, r.Tier)
}

func TestRollupExcludesInvalidRates(t *testing.T) {
	agg := testAggregator(t, DefaultConfig())

	// The zero-unit project stays in counts but never reaches the
	// overall-rate denominator.
	invalid := linkedFixture("桃園市", "中壢區", 0, 3, 0, 0, 0)
	linked := []domain.LinkedProject{
		linkedFixture("桃園市", "中壢區", 20, 10, 50.0, 5.0, 10.0),
		invalid,
	}

	rollups := agg.Rollup(context.Background(), linked, domain.LevelDistrict)
	require.Len(t, rollups, 1)

	r := rollups[0]
	assert.Equal(t, 2, r.ProjectCount)
	assert.Equal(t, 20, r.TotalUnits)
	assert.Equal(t, 13, r.UnitsSold)
	assert.InDelta(t, 50.0, r.OverallRate, 1e-9)
	assert.InDelta(t, 50.0, r.MeanRate, 1e-9)
}

func TestRollupTimeAdjustedRate(t *testing.T) {
	agg := testAggregator(t, DefaultConfig())

	// 30% standard over 6 elapsed months: factor 12/6 = 2.0, adjusted
	// 0.30 * 2.0 = 0.60.
	linked := []domain.LinkedProject{
		linkedFixture("台中市", "西屯區", 100, 30, 30.0, 5.0, 6.0),
	}

	rollups := agg.Rollup(context.Background(), linked, domain.LevelDistrict)
	require.Len(t, rollups, 1)
	assert.InDelta(t, 0.6, rollups[0].TimeAdjustedRate, 1e-9)
	assert.InDelta(t, 6.0, rollups[0].MeanElapsedMonth, 1e-9)
}

func TestRollupWeightedUnitPrice(t *testing.T) {
	agg := testAggregator(t, DefaultConfig())

	lp := linkedFixture("高雄市", "前鎮區", 50, 3, 6.0, 1.0, 6.0)
	lp.Transactions = []domain.Transaction{
		{UnitPrice: 50},
		{UnitPrice: 100},
		{UnitPrice: 999, Cancelled: true},
		{UnitPrice: 0},
	}

	rollups := agg.Rollup(context.Background(), []domain.LinkedProject{lp}, domain.LevelDistrict)
	require.Len(t, rollups, 1)
	assert.InDelta(t, 75.0, rollups[0].WeightedUnitPrice, 1e-9)
}

func TestTierDecisionTables(t *testing.T) {
	bands := DefaultTierBands()

	districtCases := []struct {
		rate float64
		want domain.Tier
	}{
		{95, domain.TierExcellent},
		{80, domain.TierExcellent},
		{79.99, domain.TierGood},
		{60, domain.TierGood},
		{40, domain.TierAverage},
		{20, domain.TierBelowPar},
		{19.9, domain.TierDifficult},
		{0, domain.TierDifficult},
	}
	for _, tc := range districtCases {
		assert.Equal(t, tc.want, bands.DistrictTier(tc.rate), "district rate %.2f", tc.rate)
	}

	cityCases := []struct {
		rate float64
		want domain.Tier
	}{
		{85, domain.TierHot},
		{70, domain.TierHot},
		{69.5, domain.TierSteady},
		{50, domain.TierSteady},
		{30, domain.TierFlat},
		{29.9, domain.TierCold},
	}
	for _, tc := range cityCases {
		assert.Equal(t, tc.want, bands.CityTier(tc.rate), "city rate %.2f", tc.rate)
	}
}

func TestAggregatorConfigValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bad := DefaultConfig()
	bad.Tiers.DistrictGood = 90 // above excellent
	_, err := New(bad, logger)
	assert.Error(t, err)

	bad = DefaultConfig()
	bad.PriceTrim = 0.5
	_, err = New(bad, logger)
	assert.Error(t, err)

	bad = DefaultConfig()
	bad.PriceTrim = -0.01
	_, err = New(bad, logger)
	assert.Error(t, err)

	_, err = New(DefaultConfig(), nil)
	assert.NoError(t, err)
}
