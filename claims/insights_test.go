package claims_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimcast/claims"
	"claimcast/claims/claimstest"
)

func TestSeasonalInsightsRequiresAYear(t *testing.T) {
	start := claims.MustParseDate("2022-01-01")
	h := claims.NewHistory(claimstest.Daily("Johnson", claims.Emergency, start, 364, claimstest.ByMonth))

	_, err := claims.SeasonalInsights(h, "Johnson", claims.Emergency)
	require.Error(t, err)
	assert.True(t, errors.Is(err, claims.ErrInsufficientHistory))

	h = claims.NewHistory(claimstest.Daily("Johnson", claims.Emergency, start, 365, claimstest.ByMonth))
	insights, err := claims.SeasonalInsights(h, "Johnson", claims.Emergency)
	require.NoError(t, err)
	assert.Len(t, insights.MonthlyPatterns.ClaimCount, 12)
	assert.Len(t, insights.DayOfWeekPatterns.ClaimCount, 7)
}

func TestSeasonalInsightsMonthlyMeans(t *testing.T) {
	start := claims.MustParseDate("2021-01-01")
	h := claims.NewHistory(claimstest.Daily("Sedgwick", claims.Pharmacy, start, 3*365, claimstest.ByMonth))

	insights, err := claims.SeasonalInsights(h, "Sedgwick", claims.Pharmacy)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, insights.MonthlyPatterns.ClaimCount.Keys())
	for m := 1; m <= 12; m++ {
		count, ok := insights.MonthlyPatterns.ClaimCount.Get(m)
		require.True(t, ok)
		assert.InDelta(t, float64(m), count, 1e-9)
		cost, ok := insights.MonthlyPatterns.TotalCost.Get(m)
		require.True(t, ok)
		assert.InDelta(t, 10*float64(m), cost, 1e-9)
	}

	peak, ok := insights.MonthlyPatterns.ClaimCount.Peak()
	require.True(t, ok)
	assert.Equal(t, 12, peak.Key)
}

func TestSeasonalInsightsOnlyPresentMonths(t *testing.T) {
	// 400 days from March reach April of the next year.
	start := claims.MustParseDate("2023-03-01")
	rows := claimstest.Daily("Douglas", claims.Inpatient, start, 400, claimstest.Constant(5, 50))
	h := claims.NewHistory(rows)

	insights, err := claims.SeasonalInsights(h, "Douglas", claims.Inpatient)
	require.NoError(t, err)
	assert.Len(t, insights.MonthlyPatterns.ClaimCount, 12)

	// A lowered floor exposes a segment covering only part of the year.
	partial := claimstest.Daily("Ford", claims.Preventive, claims.MustParseDate("2023-01-01"), 90, claimstest.Constant(1, 10))
	h = claims.NewHistory(partial)
	insights, err = claims.InsightAggregator{MinRows: 90}.Seasonal(h, "Ford", claims.Preventive)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, insights.MonthlyPatterns.ClaimCount.Keys())
}

func TestSeasonalInsightsRoundsToTwoDecimals(t *testing.T) {
	start := claims.MustParseDate("2022-01-03")
	rows := claimstest.Daily("Riley", claims.Outpatient, start, 365, claimstest.Constant(1, 1.0/3.0))
	h := claims.NewHistory(rows)

	insights, err := claims.SeasonalInsights(h, "Riley", claims.Outpatient)
	require.NoError(t, err)
	for _, pt := range insights.DayOfWeekPatterns.TotalCost {
		assert.Equal(t, 0.33, pt.Value)
	}
}

func TestPatternJSONIsKeyOrdered(t *testing.T) {
	p := claims.Pattern{{Key: 1, Value: 1.5}, {Key: 2, Value: 2}, {Key: 10, Value: 3.25}}
	payload, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"1":1.5,"2":2,"10":3.25}`, string(payload))

	var back claims.Pattern
	require.NoError(t, json.Unmarshal(payload, &back))
	assert.Equal(t, p, back)
}

func TestPatternPeakTieBreak(t *testing.T) {
	p := claims.Pattern{{Key: 0, Value: 4}, {Key: 3, Value: 9}, {Key: 5, Value: 9}}
	peak, ok := p.Peak()
	require.True(t, ok)
	assert.Equal(t, 3, peak.Key)

	_, ok = claims.Pattern{}.Peak()
	assert.False(t, ok)
}

func TestCountySummary(t *testing.T) {
	start := claims.MustParseDate("2024-01-01")
	var rows []claims.Record
	rows = append(rows, claimstest.Daily("Shawnee", claims.Emergency, start, 4, func(d claims.Date) (int, float64) {
		return d.Day, float64(d.Day) * 100
	})...)
	rows = append(rows, claimstest.Daily("Shawnee", claims.Pharmacy, start, 1, claimstest.Constant(7, 70))...)
	rows = append(rows, claimstest.Daily("Ford", claims.Pharmacy, start, 3, claimstest.Constant(1, 1))...)
	h := claims.NewHistory(rows)

	summary := claims.CountySummary(h, "Shawnee")
	require.Len(t, summary, 2)

	em := summary[0]
	assert.Equal(t, claims.Emergency, em.ClaimType)
	assert.Equal(t, 4, em.Rows)
	assert.Equal(t, 10.0, em.ClaimCountSum)
	assert.Equal(t, 2.5, em.ClaimCountMean)
	assert.Equal(t, 1.29, em.ClaimCountStd)
	assert.Equal(t, 1000.0, em.TotalCostSum)

	ph := summary[1]
	assert.Equal(t, claims.Pharmacy, ph.ClaimType)
	assert.Equal(t, 0.0, ph.ClaimCountStd)

	assert.Empty(t, claims.CountySummary(h, "Nowhere"))
}
