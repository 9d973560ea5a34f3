package pipeline

import (
	"context"
	"errors"
	"testing"

	"claimcast/claims"
)

func record(date, county, claimType string, count int, cost, avg float64) claims.Record {
	return claims.Record{
		Date:            claims.MustParseDate(date),
		County:          county,
		ClaimType:       claimType,
		ClaimCount:      count,
		TotalCost:       cost,
		AvgCostPerClaim: avg,
	}
}

func TestNewDataCleaner(t *testing.T) {
	cleaner := NewDataCleaner(nil)
	if cleaner == nil {
		t.Fatal("NewDataCleaner returned nil")
	}
	if len(cleaner.rules) != 4 {
		t.Errorf("expected 4 default rules, got %d", len(cleaner.rules))
	}
}

func TestCountyNameRule(t *testing.T) {
	rule := NewCountyNameRule()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Johnson", want: "Johnson"},
		{in: "  Johnson  County ", want: "Johnson"},
		{in: "Johnson county", want: "Johnson"},
		{in: "Cherokee\tCounty", want: "Cherokee"},
		{in: "County", want: "County"},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		rec := record("2024-01-01", tt.in, claims.Emergency, 1, 10, 10)
		got, err := rule.Apply(&rec)
		if (err != nil) != tt.wantErr {
			t.Errorf("Apply(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got.County != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.in, got.County, tt.want)
		}
	}
}

func TestClaimTypeRule(t *testing.T) {
	rule := NewClaimTypeRule()

	for in, want := range map[string]string{
		"emergency":      claims.Emergency,
		"Mental Health":  claims.MentalHealth,
		"mental-health":  claims.MentalHealth,
		"MENTAL__HEALTH": claims.MentalHealth,
		" Pharmacy ":     claims.Pharmacy,
	} {
		rec := record("2024-01-01", "Ford", in, 1, 10, 10)
		got, err := rule.Apply(&rec)
		if err != nil {
			t.Fatalf("Apply(%q): %v", in, err)
		}
		if got.ClaimType != want {
			t.Errorf("Apply(%q) = %q, want %q", in, got.ClaimType, want)
		}
	}

	rec := record("2024-01-01", "Ford", " - ", 1, 10, 10)
	if _, err := rule.Apply(&rec); err == nil {
		t.Error("expected an error for a blank claim type")
	}
}

func TestAvgCostRule(t *testing.T) {
	rule := NewAvgCostRule()

	tests := []struct {
		name string
		rec  claims.Record
		want float64
	}{
		{"consistent", record("2024-01-01", "Ford", claims.Emergency, 3, 100, 33.33), 33.33},
		{"stale average", record("2024-01-01", "Ford", claims.Emergency, 4, 100, 10), 25},
		{"zero count", record("2024-01-01", "Ford", claims.Emergency, 0, 0, 12), 0},
		{"half cent rounds away from zero", record("2024-01-01", "Ford", claims.Emergency, 2, 2.03, 5), 1.02},
	}
	for _, tt := range tests {
		got, err := rule.Apply(&tt.rec)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got.AvgCostPerClaim != tt.want {
			t.Errorf("%s: avg = %v, want %v", tt.name, got.AvgCostPerClaim, tt.want)
		}
	}
}

func TestCleanRejectsDuplicatesAndCountsCorrections(t *testing.T) {
	cleaner := NewDataCleaner(nil)
	input := []claims.Record{
		record("2024-01-01", "Johnson", claims.Emergency, 10, 500, 50),
		record("2024-01-01", "Johnson County", "Emergency", 12, 600, 50),
		record("2024-01-02", "Johnson", claims.Emergency, 10, 500, 1),
		record("2024-01-01", "Johnson", claims.Pharmacy, 5, 50, 10),
	}
	original := append([]claims.Record(nil), input...)

	cleaned, issues := cleaner.Clean(input)
	if len(cleaned) != 3 {
		t.Fatalf("expected 3 cleaned records, got %d", len(cleaned))
	}
	if len(issues) != 1 || issues[0].Type != "duplicate_detection" {
		t.Fatalf("expected one duplicate issue, got %+v", issues)
	}
	if issues[0].County != "Johnson County" {
		t.Errorf("issue should report the raw county, got %q", issues[0].County)
	}
	if cleaned[1].AvgCostPerClaim != 50 {
		t.Errorf("average not corrected: %v", cleaned[1].AvgCostPerClaim)
	}
	for i := range input {
		if input[i] != original[i] {
			t.Fatalf("input record %d was modified", i)
		}
	}

	stats := cleaner.GetStats()
	if stats.TotalProcessed != 4 || stats.Passed != 3 || stats.Rejected != 1 || stats.Corrected != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Issues["duplicate_detection"] != 1 {
		t.Errorf("issue counter = %d", stats.Issues["duplicate_detection"])
	}

	// Duplicate state does not leak into the next run.
	cleaned, issues = cleaner.Clean(input[:1])
	if len(cleaned) != 1 || len(issues) != 0 {
		t.Errorf("second run: %d cleaned, %d issues", len(cleaned), len(issues))
	}
	if got := cleaner.GetIssues(10); len(got) != 1 {
		t.Errorf("issue history = %d, want 1", len(got))
	}
}

type staticSource struct {
	records []claims.Record
	err     error
}

func (s staticSource) Records(context.Context) ([]claims.Record, error) { return s.records, s.err }
func (s staticSource) String() string                                   { return "static" }

func TestIngesterLoad(t *testing.T) {
	src := staticSource{records: []claims.Record{
		record("2024-01-01", "Johnson County", "Mental Health", 2, 30, 15),
		record("2024-01-01", "Johnson", "mental_health", 2, 30, 15),
		record("2024-01-02", "Ford", claims.Pharmacy, 1, 5, 5),
	}}
	ingester := NewDataIngester(src, nil, nil)

	h, err := ingester.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", h.Len())
	}
	if rows := h.Segment("Johnson", claims.MentalHealth); len(rows) != 1 {
		t.Errorf("normalized segment rows = %d", len(rows))
	}

	stats := ingester.GetStats()
	if stats.Runs != 1 || stats.LastRecords != 3 || stats.LastPassed != 2 || stats.LastRejected != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestIngesterErrors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := NewDataIngester(staticSource{err: boom}, nil, nil).Load(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}

	blank := staticSource{records: []claims.Record{
		record("2024-01-01", "   ", claims.Emergency, 1, 1, 1),
	}}
	if _, err := NewDataIngester(blank, nil, nil).Load(context.Background()); !errors.Is(err, ErrNothingUsable) {
		t.Errorf("expected ErrNothingUsable, got %v", err)
	}

	h, err := NewDataIngester(staticSource{}, nil, nil).Load(context.Background())
	if err != nil || h.Len() != 0 {
		t.Errorf("empty source: %v, %d records", err, h.Len())
	}
}
