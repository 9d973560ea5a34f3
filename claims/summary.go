package claims

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ClaimTypeSummary holds descriptive statistics for one claim type of a county.
// Standard deviations are sample (n-1) deviations and are 0 for a single row.
type ClaimTypeSummary struct {
	ClaimType      string  `json:"claim_type"`
	Rows           int     `json:"rows"`
	ClaimCountSum  float64 `json:"claim_count_sum"`
	ClaimCountMean float64 `json:"claim_count_mean"`
	ClaimCountStd  float64 `json:"claim_count_std"`
	TotalCostSum   float64 `json:"total_cost_sum"`
	TotalCostMean  float64 `json:"total_cost_mean"`
	TotalCostStd   float64 `json:"total_cost_std"`
}

// CountySummary groups a county's rows by claim type. An unknown county
// yields an empty slice.
func CountySummary(h *History, county string) []ClaimTypeSummary {
	counts := make(map[string][]float64)
	costs := make(map[string][]float64)
	for _, r := range h.County(county) {
		counts[r.ClaimType] = append(counts[r.ClaimType], float64(r.ClaimCount))
		costs[r.ClaimType] = append(costs[r.ClaimType], r.TotalCost)
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	summary := make([]ClaimTypeSummary, 0, len(types))
	for _, t := range types {
		summary = append(summary, ClaimTypeSummary{
			ClaimType:      t,
			Rows:           len(counts[t]),
			ClaimCountSum:  round2(floats.Sum(counts[t])),
			ClaimCountMean: round2(stat.Mean(counts[t], nil)),
			ClaimCountStd:  round2(sampleStdDev(counts[t])),
			TotalCostSum:   round2(floats.Sum(costs[t])),
			TotalCostMean:  round2(stat.Mean(costs[t], nil)),
			TotalCostStd:   round2(sampleStdDev(costs[t])),
		})
	}
	return summary
}

func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}
