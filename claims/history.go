package claims

import (
	"sort"
)

// History is the read-only historical claims table. It is built once and
// never mutated, so it may be shared between goroutines without locking.
type History struct {
	records    []Record
	bySegment  map[SegmentKey][]Record
	byCounty   map[string][]Record
	counties   []string
	loadOrder  []string
	claimTypes []string
}

// NewHistory indexes records by segment and county. The input slice is copied.
func NewHistory(records []Record) *History {
	h := &History{
		records:   append([]Record(nil), records...),
		bySegment: make(map[SegmentKey][]Record),
		byCounty:  make(map[string][]Record),
	}

	seenTypes := make(map[string]bool)
	for _, r := range h.records {
		h.bySegment[r.Key()] = append(h.bySegment[r.Key()], r)
		if _, ok := h.byCounty[r.County]; !ok {
			h.counties = append(h.counties, r.County)
		}
		h.byCounty[r.County] = append(h.byCounty[r.County], r)
		if !seenTypes[r.ClaimType] {
			seenTypes[r.ClaimType] = true
			h.claimTypes = append(h.claimTypes, r.ClaimType)
		}
	}
	for _, rows := range h.bySegment {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Date.Before(rows[j].Date)
		})
	}
	h.loadOrder = append([]string(nil), h.counties...)
	sort.Strings(h.counties)
	sort.Strings(h.claimTypes)
	return h
}

func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.records)
}

// Counties returns the distinct counties present, sorted.
func (h *History) Counties() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.counties...)
}

// CountiesInLoadOrder returns the distinct counties in the order they first
// appear in the loaded records.
func (h *History) CountiesInLoadOrder() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.loadOrder...)
}

// ClaimTypes returns the distinct claim types present, sorted.
func (h *History) ClaimTypes() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.claimTypes...)
}

// Segment returns the rows of one (county, claim type) key sorted by date.
// The returned slice must not be modified.
func (h *History) Segment(county, claimType string) []Record {
	if h == nil {
		return nil
	}
	return h.bySegment[SegmentKey{County: county, ClaimType: claimType}]
}

// County returns every row of a county in load order.
// The returned slice must not be modified.
func (h *History) County(county string) []Record {
	if h == nil {
		return nil
	}
	return h.byCounty[county]
}

func (h *History) HasCounty(county string) bool {
	if h == nil {
		return false
	}
	_, ok := h.byCounty[county]
	return ok
}

// DateRange returns the first and last day covered.
func (h *History) DateRange() (first, last Date, ok bool) {
	if h.Len() == 0 {
		return Date{}, Date{}, false
	}
	first, last = h.records[0].Date, h.records[0].Date
	for _, r := range h.records[1:] {
		if r.Date.Before(first) {
			first = r.Date
		}
		if last.Before(r.Date) {
			last = r.Date
		}
	}
	return first, last, true
}
