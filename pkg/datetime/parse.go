// Package datetime provides trading-date utility functions.
package datetime

import (
	"fmt"
	"time"

	"github.com/iwvelando/end-of-trade/pkg/constants"
)

const (
	// DateLayout is the format of trading dates in URLs, config and output.
	DateLayout = constants.DateLayout
)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses a YYYY-MM-DD trading date as midnight UTC.
func ParseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}
	return t, nil
}

// FromParts builds a trading date, rejecting values time.Date would normalize
// (e.g. February 30).
func FromParts(year int, month time.Month, day int) (time.Time, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date parameters %04d-%02d-%02d", year, int(month), day)
	}
	return t, nil
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateAfterDate returns true if the calendar date of first is strictly after
// the calendar date of second.
func DateAfterDate(first, second time.Time) bool {
	return Day(first).After(Day(second))
}

// MonthBounds returns the first and last calendar dates of a month.
func MonthBounds(year int, month time.Month) (time.Time, time.Time, error) {
	if month < time.January || month > time.December {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %d", int(month))
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last, nil
}

// AdjacentMonths returns the months before and after the given one.
func AdjacentMonths(year int, month time.Month) (prevYear int, prev time.Month, nextYear int, next time.Month) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	p := first.AddDate(0, -1, 0)
	n := first.AddDate(0, 1, 0)
	return p.Year(), p.Month(), n.Year(), n.Month()
}
