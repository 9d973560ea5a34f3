package claims

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	AnomalyCountSpike = "count_spike"
	AnomalyCountDrop  = "count_drop"
	AnomalyCostJump   = "cost_jump"
)

// Anomaly is one day of a segment that stands out from the trailing window.
type Anomaly struct {
	Type        string  `json:"type"`
	Date        Date    `json:"date"`
	ClaimCount  int     `json:"claim_count"`
	WindowMean  float64 `json:"window_mean"`
	WindowStd   float64 `json:"window_std"`
	ZScore      float64 `json:"z_score,omitempty"`
	AvgCost     float64 `json:"avg_cost_per_claim,omitempty"`
	PreviousAvg float64 `json:"previous_avg_cost_per_claim,omitempty"`
	Description string  `json:"description"`
}

// AnomalyDetector flags days whose claim count deviates from the trailing
// Window days by more than ZThreshold standard deviations, and days whose
// average cost per claim moved by more than CostJump (a fraction) from the
// previous row.
type AnomalyDetector struct {
	Window     int
	ZThreshold float64
	CostJump   float64
}

func NewAnomalyDetector() AnomalyDetector {
	return AnomalyDetector{
		Window:     30,
		ZThreshold: 3.0,
		CostJump:   0.5,
	}
}

// Detect scans one segment in date order. A segment with no more rows than
// the window yields ErrInsufficientHistory.
func (d AnomalyDetector) Detect(h *History, county, claimType string) ([]Anomaly, error) {
	d = d.withDefaults()
	rows := h.Segment(county, claimType)
	if len(rows) <= d.Window {
		return nil, fmt.Errorf("%s has %d rows, need more than %d: %w",
			SegmentKey{County: county, ClaimType: claimType}, len(rows), d.Window, ErrInsufficientHistory)
	}

	counts := make([]float64, len(rows))
	for i, r := range rows {
		counts[i] = float64(r.ClaimCount)
	}

	anomalies := []Anomaly{}
	for i := d.Window; i < len(rows); i++ {
		r := rows[i]
		mean, std := stat.MeanStdDev(counts[i-d.Window:i], nil)
		if std > 0 {
			z := (counts[i] - mean) / std
			if math.Abs(z) > d.ZThreshold {
				a := Anomaly{
					Type:        AnomalyCountSpike,
					Date:        r.Date,
					ClaimCount:  r.ClaimCount,
					WindowMean:  round2(mean),
					WindowStd:   round2(std),
					ZScore:      round2(z),
					Description: fmt.Sprintf("claim count %d is %.1f standard deviations above the %d-day mean", r.ClaimCount, z, d.Window),
				}
				if z < 0 {
					a.Type = AnomalyCountDrop
					a.Description = fmt.Sprintf("claim count %d is %.1f standard deviations below the %d-day mean", r.ClaimCount, -z, d.Window)
				}
				anomalies = append(anomalies, a)
			}
		}

		prev := rows[i-1]
		if prev.ClaimCount == 0 || r.ClaimCount == 0 {
			continue
		}
		before := AvgCost(prev.TotalCost, prev.ClaimCount)
		after := AvgCost(r.TotalCost, r.ClaimCount)
		if before > 0 && math.Abs(after-before)/before > d.CostJump {
			anomalies = append(anomalies, Anomaly{
				Type:        AnomalyCostJump,
				Date:        r.Date,
				ClaimCount:  r.ClaimCount,
				WindowMean:  round2(mean),
				WindowStd:   round2(std),
				AvgCost:     round2(after),
				PreviousAvg: round2(before),
				Description: fmt.Sprintf("average cost per claim moved from %.2f to %.2f", before, after),
			})
		}
	}
	return anomalies, nil
}

func (d AnomalyDetector) withDefaults() AnomalyDetector {
	def := NewAnomalyDetector()
	if d.Window < 2 {
		d.Window = def.Window
	}
	if d.ZThreshold <= 0 {
		d.ZThreshold = def.ZThreshold
	}
	if d.CostJump <= 0 {
		d.CostJump = def.CostJump
	}
	return d
}
