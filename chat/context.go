package chat

import (
	"errors"

	"claimcast/claims"
	"claimcast/ml"
)

// Forecaster is the part of forecast.Service the chat layer needs.
type Forecaster interface {
	// KnownCounties lists the dataset counties in load order.
	KnownCounties() []string
	PredictDays(county, claimType string, start claims.Date, days int) ([]ml.Prediction, error)
	Insights(county, claimType string) (*claims.Insights, error)
	Today() claims.Date
}

// horizon is the number of days predicted for a county and claim type question.
const horizon = 7

// Context is the data gathered for one question.
type Context struct {
	Predictions       []ml.Prediction  `json:"predictions,omitempty"`
	Insights          *claims.Insights `json:"insights,omitempty"`
	DetectedCounty    string           `json:"detected_county,omitempty"`
	DetectedClaimType string           `json:"detected_claim_type,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// BuildContext gathers predictions and insights for a parsed query.
func BuildContext(f Forecaster, q Query) Context {
	c := Context{DetectedClaimType: q.ClaimType}

	if q.Seasonal {
		if q.ClaimType == "" {
			return c
		}
		county := q.County
		if county == "" {
			county = DefaultCounty
		}
		insights, err := insightsFor(f, county, q.ClaimType)
		if err != nil {
			c.Error = err.Error()
			return c
		}
		c.Insights = insights
		c.DetectedCounty = county
		return c
	}

	c.DetectedCounty = q.County
	if q.County == "" || q.ClaimType == "" {
		return c
	}

	preds, err := f.PredictDays(q.County, q.ClaimType, f.Today(), horizon)
	if err != nil {
		c.Error = err.Error()
		return c
	}
	c.Predictions = preds

	insights, err := insightsFor(f, q.County, q.ClaimType)
	if err != nil {
		c.Error = err.Error()
		return c
	}
	c.Insights = insights
	return c
}

// insightsFor treats a short history as "no insights" rather than a failure.
func insightsFor(f Forecaster, county, claimType string) (*claims.Insights, error) {
	insights, err := f.Insights(county, claimType)
	if errors.Is(err, claims.ErrInsufficientHistory) {
		return nil, nil
	}
	return insights, err
}
