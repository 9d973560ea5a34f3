package chat

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"claimcast/claims"
)

var printer = message.NewPrinter(language.English)

// titleCase builds a fresh Caser per call; Casers are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// DisplayClaimType turns "mental_health" into "Mental Health".
func DisplayClaimType(claimType string) string {
	return titleCase(strings.ReplaceAll(claimType, "_", " "))
}

const helpText = "## Kansas Healthcare Claims Predictor\n\n" +
	"I can help you with Kansas healthcare claims predictions.\n\n" +
	"**Available Counties:** Johnson, Sedgwick, Shawnee, Wyandotte, Douglas, and others\n" +
	"**Claim Types:** emergency, pharmacy, mental health, inpatient, outpatient, preventive\n\n" +
	"Please specify a county and claim type for predictions."

// FallbackReply formats a markdown answer from the context alone.
func FallbackReply(c Context) string {
	if c.DetectedCounty == "" || c.DetectedClaimType == "" {
		return helpText
	}
	county := c.DetectedCounty
	claimType := strings.ReplaceAll(c.DetectedClaimType, "_", " ")

	if len(c.Predictions) == 0 {
		return printer.Sprintf("## %s County Analysis\n\nI found information about **%s** claims in **%s County**. "+
			"Please check if the data is available for this combination.", county, claimType, county)
	}

	pred := c.Predictions[0]
	var b strings.Builder
	b.WriteString(printer.Sprintf("## %s County %s Claims Prediction\n\n", county, titleCase(claimType)))
	b.WriteString(printer.Sprintf("**Predicted Volume:** %d claims\n", pred.PredictedCount))
	b.WriteString(printer.Sprintf("**Estimated Cost:** $%.2f\n", pred.PredictedCost))
	b.WriteString(printer.Sprintf("**Average Cost per Claim:** $%.2f\n\n", pred.AvgCostPerClaim))

	if peak, ok := peakMonth(c.Insights); ok {
		b.WriteString(printer.Sprintf("**Seasonal Pattern:** Peak month is %d with %.0f average claims\n", peak.Key, peak.Value))
	}
	return b.String()
}

func peakMonth(insights *claims.Insights) (claims.PatternPoint, bool) {
	if insights == nil {
		return claims.PatternPoint{}, false
	}
	return insights.MonthlyPatterns.ClaimCount.Peak()
}
