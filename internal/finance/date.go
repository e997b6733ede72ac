package finance

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the ISO-8601 day layout used for display and storage.
const DateFormat = "2006-01-02"

// readLayouts are accepted when parsing stored times. Rows written by
// pandas carry a zero clock ("2019-05-31 00:00:00.000000").
var readLayouts = []string{
	DateFormat,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-1-2",
}

// NewDate returns midnight UTC of the given day.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// IsDate reports whether t is midnight UTC.
func IsDate(t time.Time) bool {
	return t.Location() == time.UTC && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// ParseDate parses a stored time value into a calendar date.
// Values with a non-zero clock are rejected.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range readLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t = t.UTC()
		if !IsDate(t) {
			return time.Time{}, fmt.Errorf("%w: time %q has an intraday component", ErrInvalidSeries, s)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse time %q", ErrInvalidSeries, s)
}
