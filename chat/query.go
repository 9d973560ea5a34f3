// Package chat answers natural-language questions about claim forecasts.
package chat

import (
	"strings"

	"claimcast/claims"
)

// DefaultCounty is used for seasonal questions that name no county.
const DefaultCounty = "Johnson"

// Query is what was recognised in a user message.
type Query struct {
	Message   string
	County    string
	ClaimType string
	Seasonal  bool
}

// claimTypeKeywords is checked in order; the first match wins.
var claimTypeKeywords = []struct {
	claimType string
	keywords  []string
}{
	{claims.MentalHealth, []string{"mental health", "mental"}},
	{claims.Emergency, []string{"emergency"}},
	{claims.Inpatient, []string{"inpatient"}},
	{claims.Outpatient, []string{"outpatient"}},
	{claims.Pharmacy, []string{"pharmacy", "drug"}},
	{claims.Preventive, []string{"preventive", "prevention"}},
}

// ParseQuery finds a dataset county named in message, a claim type keyword
// and a seasonal intent. counties is searched in order, so when a message
// names several the one earliest in counties wins.
func ParseQuery(message string, counties []string) Query {
	lower := strings.ToLower(message)
	q := Query{Message: message}

	for _, county := range counties {
		if county != "" && strings.Contains(lower, strings.ToLower(county)) {
			q.County = county
			break
		}
	}

	for _, entry := range claimTypeKeywords {
		if containsAny(lower, entry.keywords) {
			q.ClaimType = entry.claimType
			break
		}
	}

	q.Seasonal = containsAny(lower, []string{"seasonal", "trend"})
	return q
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
