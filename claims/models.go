package claims

import (
	"errors"
	"fmt"
)

// ErrInsufficientHistory reports a segment with fewer rows than an operation needs.
var ErrInsufficientHistory = errors.New("insufficient history")

type AreaType string

const (
	AreaUrban AreaType = "urban"
	AreaMixed AreaType = "mixed"
	AreaRural AreaType = "rural"
)

func (a AreaType) Valid() bool {
	switch a {
	case AreaUrban, AreaMixed, AreaRural:
		return true
	}
	return false
}

// Claim type categories produced by the dataset generator.
const (
	Emergency    = "emergency"
	Inpatient    = "inpatient"
	Outpatient   = "outpatient"
	Pharmacy     = "pharmacy"
	MentalHealth = "mental_health"
	Preventive   = "preventive"
)

// KnownClaimTypes lists the categories in the order the generator emits them.
func KnownClaimTypes() []string {
	return []string{Emergency, Inpatient, Outpatient, Pharmacy, MentalHealth, Preventive}
}

// Record is one historical row for a (date, county, claim type) triple.
type Record struct {
	Date            Date     `json:"date"`
	County          string   `json:"county"`
	AreaType        AreaType `json:"area_type"`
	Metro           string   `json:"metro,omitempty"`
	Population      int      `json:"population"`
	ClaimType       string   `json:"claim_type"`
	ClaimCount      int      `json:"claim_count"`
	TotalCost       float64  `json:"total_cost"`
	AvgCostPerClaim float64  `json:"avg_cost_per_claim"`
}

// AvgCost derives the per-claim average the way the dataset does.
func AvgCost(totalCost float64, claimCount int) float64 {
	n := claimCount
	if n < 1 {
		n = 1
	}
	return totalCost / float64(n)
}

func (r Record) Key() SegmentKey {
	return SegmentKey{County: r.County, ClaimType: r.ClaimType}
}

func (r Record) validate() error {
	if r.County == "" {
		return errors.New("county is empty")
	}
	if r.ClaimType == "" {
		return errors.New("claim_type is empty")
	}
	if r.AreaType != "" && !r.AreaType.Valid() {
		return fmt.Errorf("unknown area_type %q", r.AreaType)
	}
	if r.ClaimCount < 0 {
		return fmt.Errorf("negative claim_count %d", r.ClaimCount)
	}
	if r.TotalCost < 0 {
		return fmt.Errorf("negative total_cost %.2f", r.TotalCost)
	}
	return nil
}

// SegmentKey identifies one (county, claim type) unit of training.
type SegmentKey struct {
	County    string `json:"county"`
	ClaimType string `json:"claim_type"`
}

func (k SegmentKey) String() string {
	return k.County + "_" + k.ClaimType
}
