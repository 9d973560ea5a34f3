package pipeline

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"claimcast/claims"
)

// CleaningRule fixes or rejects one record. Apply returns the (possibly corrected) record, or an
// error to reject it.
type CleaningRule interface {
	Apply(*claims.Record) (*claims.Record, error)
	Name() string
}

// resetter is implemented by rules that keep state across one Clean call.
type resetter interface {
	Reset()
}

// QualityIssue describes one record a rule rejected.
type QualityIssue struct {
	Type      string      `json:"type"`
	Severity  string      `json:"severity"` // low, medium, high
	Message   string      `json:"message"`
	Date      claims.Date `json:"date"`
	County    string      `json:"county"`
	ClaimType string      `json:"claim_type"`
}

// DataCleaner runs cleaning rules over loaded records.
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	mu     sync.Mutex
	issues []QualityIssue
	stats  CleaningStats
}

// CleaningStats counts the outcome of Clean calls.
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// maxKeptIssues bounds the issue history.
const maxKeptIssues = 1000

// NewDataCleaner returns a cleaner with the default rules: county and claim
// type normalization, average cost correction and duplicate rejection.
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		logger: logger.Named("cleaner"),
		stats:  CleaningStats{Issues: make(map[string]int64)},
	}

	cleaner.AddRule(NewCountyNameRule())
	cleaner.AddRule(NewClaimTypeRule())
	cleaner.AddRule(NewAvgCostRule())
	cleaner.AddRule(NewDuplicateDetectionRule())
	return cleaner
}

// AddRule appends a rule; rules run in the order added.
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean runs every rule over records in order. Rejected records are dropped
// and reported as issues; the input slice is not modified.
func (dc *DataCleaner) Clean(records []claims.Record) ([]claims.Record, []QualityIssue) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for _, rule := range dc.rules {
		if r, ok := rule.(resetter); ok {
			r.Reset()
		}
	}

	cleaned := make([]claims.Record, 0, len(records))
	var issues []QualityIssue
	for i := range records {
		dc.stats.TotalProcessed++
		original := records[i]
		rec := original

		var rejected *QualityIssue
		for _, rule := range dc.rules {
			next, err := rule.Apply(&rec)
			if err != nil {
				rejected = &QualityIssue{
					Type:      rule.Name(),
					Severity:  "high",
					Message:   err.Error(),
					Date:      original.Date,
					County:    original.County,
					ClaimType: original.ClaimType,
				}
				dc.stats.Issues[rule.Name()]++
				break
			}
			if next != nil {
				rec = *next
			}
		}

		if rejected != nil {
			dc.stats.Rejected++
			issues = append(issues, *rejected)
			continue
		}
		if rec != original {
			dc.stats.Corrected++
		}
		dc.stats.Passed++
		cleaned = append(cleaned, rec)
	}

	dc.issues = append(dc.issues, issues...)
	if over := len(dc.issues) - maxKeptIssues; over > 0 {
		dc.issues = append([]QualityIssue(nil), dc.issues[over:]...)
	}
	dc.stats.LastClean = time.Now()
	return cleaned, issues
}

// GetStats returns a copy of the cleaning counters.
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// GetIssues returns up to limit of the most recent issues.
func (dc *DataCleaner) GetIssues(limit int) []QualityIssue {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if limit <= 0 || limit > len(dc.issues) {
		limit = len(dc.issues)
	}
	issues := make([]QualityIssue, limit)
	copy(issues, dc.issues[len(dc.issues)-limit:])
	return issues
}

// CountyNameRule collapses whitespace and drops a trailing "County".
type CountyNameRule struct{}

func NewCountyNameRule() *CountyNameRule { return &CountyNameRule{} }

func (r *CountyNameRule) Name() string { return "county_name" }

func (r *CountyNameRule) Apply(rec *claims.Record) (*claims.Record, error) {
	name := strings.Join(strings.Fields(rec.County), " ")
	if len(name) > len(" county") && strings.EqualFold(name[len(name)-len(" county"):], " county") {
		name = name[:len(name)-len(" county")]
	}
	if name == "" {
		return nil, fmt.Errorf("empty county")
	}
	out := *rec
	out.County = name
	return &out, nil
}

// ClaimTypeRule lowercases claim types and joins words with underscores, so
// "Mental Health" and "mental-health" both become mental_health.
type ClaimTypeRule struct{}

func NewClaimTypeRule() *ClaimTypeRule { return &ClaimTypeRule{} }

func (r *ClaimTypeRule) Name() string { return "claim_type" }

func (r *ClaimTypeRule) Apply(rec *claims.Record) (*claims.Record, error) {
	fields := strings.FieldsFunc(strings.ToLower(rec.ClaimType), func(c rune) bool {
		return c == ' ' || c == '-' || c == '_' || c == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty claim type")
	}
	out := *rec
	out.ClaimType = strings.Join(fields, "_")
	return &out, nil
}

// AvgCostRule recomputes avg_cost_per_claim when it disagrees with
// total_cost / claim_count by more than Tolerance.
type AvgCostRule struct {
	Tolerance float64
}

func NewAvgCostRule() *AvgCostRule {
	return &AvgCostRule{Tolerance: 0.01}
}

func (r *AvgCostRule) Name() string { return "avg_cost" }

func (r *AvgCostRule) Apply(rec *claims.Record) (*claims.Record, error) {
	want := claims.AvgCost(rec.TotalCost, rec.ClaimCount)
	if math.Abs(rec.AvgCostPerClaim-want) <= r.Tolerance {
		return rec, nil
	}
	out := *rec
	out.AvgCostPerClaim = decimal.NewFromFloat(want).Round(2).InexactFloat64()
	return &out, nil
}

// DuplicateDetectionRule rejects repeats; the first row for a date and segment wins.
type DuplicateDetectionRule struct {
	seen map[duplicateKey]struct{}
}

type duplicateKey struct {
	date claims.Date
	key  claims.SegmentKey
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{seen: make(map[duplicateKey]struct{})}
}

func (r *DuplicateDetectionRule) Name() string { return "duplicate_detection" }

func (r *DuplicateDetectionRule) Reset() {
	r.seen = make(map[duplicateKey]struct{})
}

func (r *DuplicateDetectionRule) Apply(rec *claims.Record) (*claims.Record, error) {
	k := duplicateKey{date: rec.Date, key: rec.Key()}
	if _, exists := r.seen[k]; exists {
		return nil, fmt.Errorf("duplicate row for %s on %s", k.key, rec.Date)
	}
	r.seen[k] = struct{}{}
	return rec, nil
}
