// Package testutil provides common fixtures and helpers for testing.
package testutil

import (
	"time"

	"github.com/iwvelando/end-of-trade/pkg/denomination"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/shopspring/decimal"
)

// Money parses a decimal literal and panics on error.
func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// MoneyPtr is Money returning a pointer, for optional record fields.
func MoneyPtr(s string) *decimal.Decimal {
	d := Money(s)
	return &d
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// Counts builds a normalized inventory from string keys and panics if any
// key or count is invalid.
func Counts(counts map[string]int64) inventory.Inventory {
	inv, err := inventory.FromStrings(counts)
	if err != nil {
		panic(err)
	}
	return inv
}

// WellStockedDrawer returns a drawer worth 1494.00 whose small
// denominations alone total 494.00.
func WellStockedDrawer() inventory.Inventory {
	return Counts(map[string]int64{
		"5c": 10, "10c": 15, "20c": 10, "50c": 20,
		"$1": 50, "$2": 40, "$5": 30, "$10": 10,
		"$20": 5, "$50": 10, "$100": 5,
	})
}

// ShortDrawer holds every denomination but is worth only 444.00.
func ShortDrawer() inventory.Inventory {
	return Counts(map[string]int64{
		"5c": 20, "10c": 10, "20c": 10, "50c": 10,
		"$1": 10, "$2": 10, "$5": 5, "$10": 4,
		"$20": 7, "$50": 2, "$100": 1,
	})
}

// SingleNote returns an inventory of count items of key.
func SingleNote(key denomination.Key, count int64) inventory.Inventory {
	inv := inventory.Empty()
	inv[key] = count
	return inv
}

// Date returns midnight UTC on the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
