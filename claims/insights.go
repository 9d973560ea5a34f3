package claims

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// MinInsightRows is roughly one year of daily coverage; below it seasonal
// patterns are not reported.
const MinInsightRows = 365

// PatternPoint is one group of an aggregation (a month 1-12 or a weekday 0-6).
type PatternPoint struct {
	Key   int
	Value float64
}

// Pattern is a key-ordered mapping. It encodes as a JSON object whose keys
// appear in ascending numeric order.
type Pattern []PatternPoint

func (p Pattern) Get(key int) (float64, bool) {
	for _, pt := range p {
		if pt.Key == key {
			return pt.Value, true
		}
	}
	return 0, false
}

func (p Pattern) Keys() []int {
	keys := make([]int, len(p))
	for i, pt := range p {
		keys[i] = pt.Key
	}
	return keys
}

// Peak returns the point with the largest value; ties go to the lowest key.
func (p Pattern) Peak() (PatternPoint, bool) {
	if len(p) == 0 {
		return PatternPoint{}, false
	}
	best := p[0]
	for _, pt := range p[1:] {
		if pt.Value > best.Value {
			best = pt
		}
	}
	return best, true
}

func (p Pattern) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pt := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		value, err := json.Marshal(pt.Value)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%q:%s", strconv.Itoa(pt.Key), value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Pattern) UnmarshalJSON(b []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Pattern, 0, len(raw))
	for k, v := range raw {
		key, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("pattern key %q: %w", k, err)
		}
		out = append(out, PatternPoint{Key: key, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	*p = out
	return nil
}

// Aggregate holds the mean claim count and mean total cost per group.
type Aggregate struct {
	ClaimCount Pattern `json:"claim_count"`
	TotalCost  Pattern `json:"total_cost"`
}

// Insights are historical averages for one segment, independent of any model.
type Insights struct {
	MonthlyPatterns   Aggregate `json:"monthly_patterns"`
	DayOfWeekPatterns Aggregate `json:"day_of_week_patterns"`
}

// SeasonalInsights aggregates a segment's raw rows by calendar month and by
// weekday. Segments with fewer than MinInsightRows rows yield
// ErrInsufficientHistory.
func SeasonalInsights(h *History, county, claimType string) (*Insights, error) {
	return InsightAggregator{MinRows: MinInsightRows}.Seasonal(h, county, claimType)
}

// InsightAggregator computes seasonal insights with a configurable row floor.
type InsightAggregator struct {
	MinRows int
}

func (a InsightAggregator) Seasonal(h *History, county, claimType string) (*Insights, error) {
	rows := h.Segment(county, claimType)
	minRows := a.MinRows
	if minRows <= 0 {
		minRows = MinInsightRows
	}
	if len(rows) < minRows {
		return nil, fmt.Errorf("%s has %d rows, need %d: %w",
			SegmentKey{County: county, ClaimType: claimType}, len(rows), minRows, ErrInsufficientHistory)
	}

	return &Insights{
		MonthlyPatterns:   aggregateBy(rows, func(r Record) int { return int(r.Date.Month) }),
		DayOfWeekPatterns: aggregateBy(rows, func(r Record) int { return r.Date.Weekday() }),
	}, nil
}

func aggregateBy(rows []Record, keyOf func(Record) int) Aggregate {
	counts := make(map[int][]float64)
	costs := make(map[int][]float64)
	for _, r := range rows {
		k := keyOf(r)
		counts[k] = append(counts[k], float64(r.ClaimCount))
		costs[k] = append(costs[k], r.TotalCost)
	}

	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	agg := Aggregate{
		ClaimCount: make(Pattern, 0, len(keys)),
		TotalCost:  make(Pattern, 0, len(keys)),
	}
	for _, k := range keys {
		agg.ClaimCount = append(agg.ClaimCount, PatternPoint{Key: k, Value: round2(stat.Mean(counts[k], nil))})
		agg.TotalCost = append(agg.TotalCost, PatternPoint{Key: k, Value: round2(stat.Mean(costs[k], nil))})
	}
	return agg
}

// round2 scales by 100 and rounds half to even on the binary product, the
// way numpy.round does. 1.015 scales to 101.49999999999999 and becomes 1.01.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
