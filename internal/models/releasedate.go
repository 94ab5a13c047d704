package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DatePrecision indicates how much of a release date the catalog reported.
type DatePrecision int

const (
	PrecisionDay DatePrecision = iota
	PrecisionMonth
	PrecisionYear
)

func (p DatePrecision) String() string {
	switch p {
	case PrecisionDay:
		return "day"
	case PrecisionMonth:
		return "month"
	case PrecisionYear:
		return "year"
	default:
		return ""
	}
}

// ReleaseDate is a calendar date with day, month, or year precision.
//
// The catalog reports partial-precision dates for older or sparsely tagged
// releases ("2024-03", "1997"). Resolve maps those onto a concrete day for
// window tests; see [ReleaseDate.Resolve] for the fallback policy.
type ReleaseDate struct {
	Raw       string        `json:"raw"`
	Precision DatePrecision `json:"precision"`

	t time.Time // start of the period, UTC midnight
}

// ParseReleaseDate parses a catalog release date string in one of the forms
// "2006-01-02", "2006-01", or "2006".
func ParseReleaseDate(raw string) (ReleaseDate, error) {
	layouts := []struct {
		layout    string
		precision DatePrecision
	}{
		{"2006-01-02", PrecisionDay},
		{"2006-01", PrecisionMonth},
		{"2006", PrecisionYear},
	}

	for _, l := range layouts {
		if len(raw) != len(l.layout) {
			continue
		}
		t, err := time.ParseInLocation(l.layout, raw, time.UTC)
		if err != nil {
			continue
		}
		return ReleaseDate{Raw: raw, Precision: l.precision, t: t}, nil
	}

	return ReleaseDate{}, fmt.Errorf("unrecognized release date %q", raw)
}

// Resolve returns the concrete day used for window tests.
//
// With monthEnd set, month precision resolves to the last day of the month and
// year precision to December 31, which keeps a release that could plausibly
// still be in the window. Otherwise the start of the period is used. Day
// precision is returned as-is either way.
func (d ReleaseDate) Resolve(monthEnd bool) time.Time {
	if d.Precision == PrecisionDay || !monthEnd {
		return d.t
	}

	switch d.Precision {
	case PrecisionMonth:
		return d.t.AddDate(0, 1, -1)
	case PrecisionYear:
		return time.Date(d.t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		return d.t
	}
}

// InWindow reports whether the resolved date falls within [asOf-window, asOf],
// inclusive at both bounds.
func (d ReleaseDate) InWindow(asOf time.Time, window time.Duration, monthEnd bool) bool {
	day := d.Resolve(monthEnd)
	start := asOf.Add(-window)
	return !day.Before(start) && !day.After(asOf)
}

// IsZero reports whether the date was never parsed.
func (d ReleaseDate) IsZero() bool {
	return d.Raw == "" && d.t.IsZero()
}

func (d ReleaseDate) String() string {
	return d.Raw
}

// MarshalJSON encodes the date as its raw catalog string.
func (d ReleaseDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Raw)
}

// UnmarshalJSON decodes from the raw catalog string form.
func (d *ReleaseDate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*d = ReleaseDate{}
		return nil
	}
	parsed, err := ParseReleaseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
