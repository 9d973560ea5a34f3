package chat

import (
	"strconv"
	"time"
)

const (
	ChartSeasonalTrends     = "seasonal_trends"
	ChartPredictionTimeline = "prediction_timeline"
)

// Chart is a data series for the client to render.
type Chart struct {
	Kind   string       `json:"kind"`
	Title  string       `json:"title"`
	XLabel string       `json:"x_label"`
	YLabel string       `json:"y_label"`
	Points []ChartPoint `json:"points"`
}

type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// BuildChart prefers the monthly claim counts and falls back to the
// prediction timeline when there is more than one prediction.
func BuildChart(c Context) *Chart {
	claimType := c.DetectedClaimType
	if claimType == "" {
		claimType = "claims"
	}

	if c.Insights != nil && len(c.Insights.MonthlyPatterns.ClaimCount) > 0 {
		chart := &Chart{
			Kind:   ChartSeasonalTrends,
			Title:  "Seasonal Trends - " + DisplayClaimType(claimType),
			XLabel: "Month",
			YLabel: "Claims Count",
		}
		for _, pt := range c.Insights.MonthlyPatterns.ClaimCount {
			chart.Points = append(chart.Points, ChartPoint{
				Label: time.Month(pt.Key).String()[:3],
				Value: pt.Value,
			})
		}
		return chart
	}

	if len(c.Predictions) > 1 {
		chart := &Chart{
			Kind:   ChartPredictionTimeline,
			Title:  "Prediction Timeline - " + c.DetectedCounty + " " + DisplayClaimType(claimType),
			XLabel: "Date",
			YLabel: "Predicted Claims",
		}
		for _, p := range c.Predictions {
			chart.Points = append(chart.Points, ChartPoint{
				Label: strconv.Itoa(int(p.Date.Month)) + "/" + strconv.Itoa(p.Date.Day),
				Value: float64(p.PredictedCount),
			})
		}
		return chart
	}
	return nil
}
