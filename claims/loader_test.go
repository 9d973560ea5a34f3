package claims_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimcast/claims"
	"claimcast/claims/claimstest"
)

const sampleCSV = "\ufeffdate,county,area_type,metro,population,claim_type,claim_count,total_cost,avg_cost_per_claim\n" +
	"2024-01-02,Johnson,urban,Kansas City,600000,emergency,120,54000.50,450.00\n" +
	"2024-01-01,Johnson,urban,Kansas City,600000,emergency,100,45000.00,450.00\n" +
	"2024-01-01,Ford,rural,,34000,pharmacy,0,0.00,0.00\n"

func TestReadCSV(t *testing.T) {
	records, err := claims.ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, claims.MustParseDate("2024-01-02"), first.Date)
	assert.Equal(t, "Johnson", first.County)
	assert.Equal(t, claims.AreaUrban, first.AreaType)
	assert.Equal(t, "Kansas City", first.Metro)
	assert.Equal(t, 600000, first.Population)
	assert.Equal(t, 120, first.ClaimCount)
	assert.InDelta(t, 54000.50, first.TotalCost, 1e-9)

	assert.Empty(t, records[2].Metro)
}

func TestReadCSVColumnOrderAndDerivedAverage(t *testing.T) {
	in := "claim_type,total_cost,claim_count,county,date\n" +
		"outpatient,300,4,Douglas,2024-05-01\n" +
		"outpatient,80,0,Douglas,2024-05-02\n"
	records, err := claims.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 75.0, records[0].AvgCostPerClaim)
	assert.Equal(t, 80.0, records[1].AvgCostPerClaim)
}

func TestReadCSVErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"missing column": "date,county,claim_type,claim_count\n2024-01-01,A,emergency,1\n",
		"bad date":       "date,county,claim_type,claim_count,total_cost\n01/02/2024,A,emergency,1,2\n",
		"bad count":      "date,county,claim_type,claim_count,total_cost\n2024-01-01,A,emergency,x,2\n",
		"negative cost":  "date,county,claim_type,claim_count,total_cost\n2024-01-01,A,emergency,1,-2\n",
		"bad area":       "date,county,area_type,claim_type,claim_count,total_cost\n2024-01-01,A,suburb,emergency,1,2\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := claims.ReadCSV(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestCSVRoundTripThroughFile(t *testing.T) {
	rows := claimstest.Daily("Johnson", claims.Emergency, claims.MustParseDate("2023-01-01"), 10, claimstest.Seasonal)

	var buf bytes.Buffer
	require.NoError(t, claims.WriteCSV(&buf, rows))

	path := filepath.Join(t.TempDir(), "claims.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	h, err := claims.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, h.Len())
	assert.Equal(t, rows, h.Segment("Johnson", claims.Emergency))
}

func TestParquetRoundTrip(t *testing.T) {
	rows := claimstest.Daily("Sedgwick", claims.Inpatient, claims.MustParseDate("2023-06-01"), 30, claimstest.Seasonal)
	rows[0].Metro = "Wichita"

	path := filepath.Join(t.TempDir(), "claims.parquet")
	require.NoError(t, claims.WriteParquetFile(path, rows))

	h, err := claims.LoadFile(path)
	require.NoError(t, err)
	got := h.Segment("Sedgwick", claims.Inpatient)
	require.Len(t, got, 30)
	assert.Equal(t, "Wichita", got[0].Metro)
	assert.Equal(t, rows[29].ClaimCount, got[29].ClaimCount)
	assert.InDelta(t, rows[29].TotalCost, got[29].TotalCost, 1e-9)
}

func TestLoadFileRejectsUnknownExtension(t *testing.T) {
	_, err := claims.LoadFile("claims.xlsx")
	assert.Error(t, err)
}

func TestHistoryIndexes(t *testing.T) {
	start := claims.MustParseDate("2024-01-01")
	var rows []claims.Record
	rows = append(rows, claimstest.Daily("Wyandotte", claims.Pharmacy, start.AddDays(5), 3, claimstest.Seasonal)...)
	rows = append(rows, claimstest.Daily("Wyandotte", claims.Pharmacy, start, 3, claimstest.Seasonal)...)
	rows = append(rows, claimstest.Daily("Butler", claims.Emergency, start, 2, claimstest.Seasonal)...)
	h := claims.NewHistory(rows)

	assert.Equal(t, []string{"Butler", "Wyandotte"}, h.Counties())
	assert.Equal(t, []string{"Wyandotte", "Butler"}, h.CountiesInLoadOrder())
	assert.Equal(t, []string{claims.Emergency, claims.Pharmacy}, h.ClaimTypes())

	seg := h.Segment("Wyandotte", claims.Pharmacy)
	require.Len(t, seg, 6)
	for i := 1; i < len(seg); i++ {
		assert.True(t, seg[i-1].Date.Before(seg[i].Date), "segment rows must be date ordered")
	}
	assert.Empty(t, h.Segment("Wyandotte", claims.Emergency))
	assert.True(t, h.HasCounty("Butler"))
	assert.False(t, h.HasCounty("Ford"))

	first, last, ok := h.DateRange()
	require.True(t, ok)
	assert.Equal(t, start, first)
	assert.Equal(t, start.AddDays(7), last)
}
