package claims_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimcast/claims"
	"claimcast/claims/claimstest"
)

func wobble(d claims.Date) (int, float64) {
	count := 10 + d.YearDay()%3
	return count, float64(count) * 100
}

func TestAnomalyDetectorFlagsSpikesDropsAndCostJumps(t *testing.T) {
	start := claims.MustParseDate("2022-01-01")
	rows := claimstest.Daily("Johnson", claims.Emergency, start, 100, wobble)
	rows[40].ClaimCount, rows[40].TotalCost = 40, 4000
	rows[50].TotalCost = float64(rows[50].ClaimCount) * 300
	rows[80].ClaimCount, rows[80].TotalCost = 1, 100
	h := claims.NewHistory(rows)

	anomalies, err := claims.NewAnomalyDetector().Detect(h, "Johnson", claims.Emergency)
	require.NoError(t, err)

	var got []string
	for _, a := range anomalies {
		got = append(got, a.Type+"@"+a.Date.String())
	}
	assert.Equal(t, []string{
		claims.AnomalyCountSpike + "@" + rows[40].Date.String(),
		claims.AnomalyCostJump + "@" + rows[50].Date.String(),
		claims.AnomalyCostJump + "@" + rows[51].Date.String(),
		claims.AnomalyCountDrop + "@" + rows[80].Date.String(),
	}, got)

	spike := anomalies[0]
	assert.Equal(t, 40, spike.ClaimCount)
	assert.Greater(t, spike.ZScore, 3.0)
	assert.InDelta(t, 11, spike.WindowMean, 0.5)

	jump := anomalies[1]
	assert.Equal(t, 300.0, jump.AvgCost)
	assert.Equal(t, 100.0, jump.PreviousAvg)

	assert.Less(t, anomalies[3].ZScore, -3.0)
}

func TestAnomalyDetectorQuietSegment(t *testing.T) {
	start := claims.MustParseDate("2022-01-01")
	h := claims.NewHistory(claimstest.Daily("Ford", claims.Pharmacy, start, 60, claimstest.Constant(5, 50)))

	anomalies, err := claims.NewAnomalyDetector().Detect(h, "Ford", claims.Pharmacy)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestAnomalyDetectorNeedsMoreThanAWindow(t *testing.T) {
	start := claims.MustParseDate("2022-01-01")
	h := claims.NewHistory(claimstest.Daily("Ford", claims.Pharmacy, start, 30, wobble))

	_, err := claims.NewAnomalyDetector().Detect(h, "Ford", claims.Pharmacy)
	assert.True(t, errors.Is(err, claims.ErrInsufficientHistory))

	_, err = claims.AnomalyDetector{Window: 10}.Detect(h, "Ford", claims.Pharmacy)
	assert.NoError(t, err)
}
