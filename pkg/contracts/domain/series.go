package domain

import (
	"fmt"
	"strings"
	"time"
)

// ValueKind tells the transform engine which change columns apply to a series.
type ValueKind string

const (
	// ValueKindLevel is a stock or count quantity (payrolls, index levels).
	ValueKindLevel ValueKind = "level"
	// ValueKindRate is a percentage quantity where changes are point differences.
	ValueKindRate ValueKind = "rate"
)

// ParseValueKind normalizes s and returns the matching kind.
func ParseValueKind(s string) (ValueKind, error) {
	switch ValueKind(strings.ToLower(strings.TrimSpace(s))) {
	case ValueKindLevel:
		return ValueKindLevel, nil
	case ValueKindRate:
		return ValueKindRate, nil
	default:
		return "", fmt.Errorf("unknown value kind %q (want level or rate)", s)
	}
}

// SeriesSpec is one catalog entry.
type SeriesSpec struct {
	ID    string    `json:"series_id" yaml:"series_id" validate:"required"`
	Label string    `json:"label" yaml:"label" validate:"required"`
	Kind  ValueKind `json:"value_type,omitempty" yaml:"value_type,omitempty" validate:"omitempty,oneof=level rate"`
}

// ObservationRecord is a single monthly value in long form.
type ObservationRecord struct {
	SeriesID  string    `json:"series_id"`
	Label     string    `json:"label"`
	Kind      ValueKind `json:"value_type"`
	PeriodEnd time.Time `json:"period_end"`
	Value     float64   `json:"value"`
}

// MonthEnd returns the last calendar day of year/month at midnight UTC.
func MonthEnd(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}

// ParseMonth parses a YYYY-MM (or YYYY-MM-DD) string and returns the last
// day of that month.
func ParseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthEnd(t.Year(), t.Month()), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid month %q (want YYYY-MM)", s)
}
