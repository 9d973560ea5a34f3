package ml

import (
	"fmt"
	"math"

	"claimcast/claims"
)

// Prediction is the clamped forecast for one segment and date.
type Prediction struct {
	County          string      `json:"county"`
	ClaimType       string      `json:"claim_type"`
	Date            claims.Date `json:"date"`
	PredictedCount  int         `json:"predicted_count"`
	PredictedCost   float64     `json:"predicted_cost"`
	AvgCostPerClaim float64     `json:"avg_cost_per_claim"`
}

// Predict parses dateText as YYYY-MM-DD and forecasts the segment on that day.
func Predict(s *Store, county, claimType, dateText string) (*Prediction, error) {
	d, err := claims.ParseDate(dateText)
	if err != nil {
		return nil, &InvalidInputError{Field: "date", Value: dateText, Err: err}
	}
	return PredictDate(s, county, claimType, d)
}

func PredictDate(s *Store, county, claimType string, d claims.Date) (*Prediction, error) {
	seg, ok := s.Get(county, claimType)
	if !ok {
		return nil, fmt.Errorf("%s: %w", claims.SegmentKey{County: county, ClaimType: claimType}, ErrSegmentNotFound)
	}
	rawCount, rawCost, err := seg.evaluate(d)
	if err != nil {
		return nil, err
	}

	p := &Prediction{
		County:         county,
		ClaimType:      claimType,
		Date:           d,
		PredictedCount: clampCount(rawCount),
		PredictedCost:  math.Max(0, finiteOrZero(rawCost)),
	}
	if p.PredictedCount > 0 {
		p.AvgCostPerClaim = p.PredictedCost / float64(p.PredictedCount)
	}
	return p, nil
}

func clampCount(raw float64) int {
	raw = finiteOrZero(raw)
	if raw <= 0 {
		return 0
	}
	if raw >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(raw)
}

// MaxRangeDays is the longest range the HTTP and CLI front ends accept. It
// also caps the capacity PredictDays reserves up front.
const MaxRangeDays = 366

// PredictRange forecasts days consecutive dates beginning at startText.
// Dates whose prediction fails are left out of the result.
func PredictRange(s *Store, county, claimType, startText string, days int) ([]Prediction, error) {
	start, err := claims.ParseDate(startText)
	if err != nil {
		return nil, &InvalidInputError{Field: "start_date", Value: startText, Err: err}
	}
	if days < 0 {
		return nil, &InvalidInputError{Field: "days", Value: fmt.Sprint(days)}
	}
	return PredictDays(s, county, claimType, start, days), nil
}

func PredictDays(s *Store, county, claimType string, start claims.Date, days int) []Prediction {
	out := make([]Prediction, 0, min(max(days, 0), MaxRangeDays))
	for i := 0; i < days; i++ {
		p, err := PredictDate(s, county, claimType, start.AddDays(i))
		if err != nil {
			continue
		}
		out = append(out, *p)
	}
	return out
}
