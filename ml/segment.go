package ml

import (
	"fmt"
	"math"
	"time"

	"claimcast/claims"
)

// Segment holds the two models trained for one (county, claim type) pair.
// Segments returned from a Store must not be modified.
type Segment struct {
	Key            claims.SegmentKey `json:"key"`
	CountModel     *LinearRegression `json:"count_model"`
	CostModel      *LinearRegression `json:"cost_model"`
	FeatureColumns []string          `json:"feature_columns"`
	Rows           int               `json:"rows"`
	FirstDate      claims.Date       `json:"first_date"`
	LastDate       claims.Date       `json:"last_date"`
	TrainedAt      time.Time         `json:"trained_at"`
}

// evaluate returns the raw, unclamped model outputs for a date.
func (s *Segment) evaluate(d claims.Date) (count, cost float64, err error) {
	x, err := DeriveFeatures(d).Columns(s.FeatureColumns)
	if err != nil {
		return 0, 0, err
	}
	if count, err = score(s.CountModel, x); err != nil {
		return 0, 0, fmt.Errorf("count model %s: %w", s.Key, err)
	}
	if cost, err = score(s.CostModel, x); err != nil {
		return 0, 0, fmt.Errorf("cost model %s: %w", s.Key, err)
	}
	return count, cost, nil
}

// Dataset is the design matrix and targets for one segment.
type Dataset struct {
	Columns []string
	X       [][]float64
	Counts  []float64
	Costs   []float64
}

// BuildDataset turns date-ordered records into regression inputs.
func BuildDataset(records []claims.Record) Dataset {
	ds := Dataset{
		Columns: FeatureNames(),
		X:       make([][]float64, len(records)),
		Counts:  make([]float64, len(records)),
		Costs:   make([]float64, len(records)),
	}
	for i, r := range records {
		ds.X[i] = DeriveFeatures(r.Date).Vector()
		ds.Counts[i] = float64(r.ClaimCount)
		ds.Costs[i] = r.TotalCost
	}
	return ds
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
