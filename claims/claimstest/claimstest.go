// Package claimstest builds deterministic claims histories for tests.
package claimstest

import (
	"math"

	"claimcast/claims"
)

// Shape returns the claim count and total cost for a day.
type Shape func(d claims.Date) (count int, cost float64)

// Daily emits one record per day for days consecutive days from start.
func Daily(county, claimType string, start claims.Date, days int, shape Shape) []claims.Record {
	return Every(county, claimType, start, days, 1, shape)
}

// Every emits n records spaced step days apart from start.
func Every(county, claimType string, start claims.Date, n, step int, shape Shape) []claims.Record {
	records := make([]claims.Record, 0, n)
	for i := 0; i < n; i++ {
		d := start.AddDays(i * step)
		count, cost := shape(d)
		records = append(records, claims.Record{
			Date:            d,
			County:          county,
			AreaType:        claims.AreaUrban,
			Population:      100000,
			ClaimType:       claimType,
			ClaimCount:      count,
			TotalCost:       cost,
			AvgCostPerClaim: math.Round(claims.AvgCost(cost, count)*100) / 100,
		})
	}
	return records
}

// Seasonal is a smooth yearly cycle with a weekend dip.
func Seasonal(d claims.Date) (int, float64) {
	base := 100 + 20*math.Sin(2*math.Pi*float64(d.YearDay())/365)
	if d.Weekday() >= 5 {
		base *= 0.7
	}
	count := int(math.Round(base))
	return count, math.Round(float64(count)*250*100) / 100
}

// Constant returns the same count and cost for every day.
func Constant(count int, cost float64) Shape {
	return func(claims.Date) (int, float64) { return count, cost }
}

// ByMonth returns count = month and cost = 10 * month.
func ByMonth(d claims.Date) (int, float64) {
	return int(d.Month), 10 * float64(d.Month)
}
