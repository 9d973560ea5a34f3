package ml

import (
	"fmt"
	"math"

	"claimcast/claims"
)

// Feature column names, in the order models are fitted.
const (
	ColYear      = "year"
	ColMonth     = "month"
	ColDayOfYear = "day_of_year"
	ColWeekday   = "weekday"
	ColIsWeekend = "is_weekend"
	ColMonthSin  = "month_sin"
	ColMonthCos  = "month_cos"
	ColDaySin    = "day_sin"
	ColDayCos    = "day_cos"
)

// FeatureVector encodes a calendar date for the regressors. The sine/cosine
// pairs place month and day of year on a circle so December sits next to
// January.
type FeatureVector struct {
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	DayOfYear int     `json:"day_of_year"`
	Weekday   int     `json:"weekday"`
	IsWeekend int     `json:"is_weekend"`
	MonthSin  float64 `json:"month_sin"`
	MonthCos  float64 `json:"month_cos"`
	DaySin    float64 `json:"day_sin"`
	DayCos    float64 `json:"day_cos"`
}

// DeriveFeatures maps any calendar date to its feature vector.
func DeriveFeatures(d claims.Date) FeatureVector {
	month := int(d.Month)
	doy := d.YearDay()
	weekday := d.Weekday()

	isWeekend := 0
	if weekday >= 5 {
		isWeekend = 1
	}

	return FeatureVector{
		Year:      d.Year,
		Month:     month,
		DayOfYear: doy,
		Weekday:   weekday,
		IsWeekend: isWeekend,
		MonthSin:  math.Sin(2 * math.Pi * float64(month) / 12),
		MonthCos:  math.Cos(2 * math.Pi * float64(month) / 12),
		DaySin:    math.Sin(2 * math.Pi * float64(doy) / 365),
		DayCos:    math.Cos(2 * math.Pi * float64(doy) / 365),
	}
}

func FeatureNames() []string {
	return []string{
		ColYear,
		ColMonth,
		ColDayOfYear,
		ColWeekday,
		ColIsWeekend,
		ColMonthSin,
		ColMonthCos,
		ColDaySin,
		ColDayCos,
	}
}

// Vector returns the values in FeatureNames order.
func (f FeatureVector) Vector() []float64 {
	return []float64{
		float64(f.Year),
		float64(f.Month),
		float64(f.DayOfYear),
		float64(f.Weekday),
		float64(f.IsWeekend),
		f.MonthSin,
		f.MonthCos,
		f.DaySin,
		f.DayCos,
	}
}

// Columns returns the values in the requested column order.
func (f FeatureVector) Columns(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		v, ok := f.value(name)
		if !ok {
			return nil, fmt.Errorf("unknown feature column %q: %w", name, ErrFeatureMismatch)
		}
		out[i] = v
	}
	return out, nil
}

func (f FeatureVector) value(name string) (float64, bool) {
	switch name {
	case ColYear:
		return float64(f.Year), true
	case ColMonth:
		return float64(f.Month), true
	case ColDayOfYear:
		return float64(f.DayOfYear), true
	case ColWeekday:
		return float64(f.Weekday), true
	case ColIsWeekend:
		return float64(f.IsWeekend), true
	case ColMonthSin:
		return f.MonthSin, true
	case ColMonthCos:
		return f.MonthCos, true
	case ColDaySin:
		return f.DaySin, true
	case ColDayCos:
		return f.DayCos, true
	}
	return 0, false
}
