// Package inventory converts between physical item counts and monetary value
// for a set of currency denominations.
package inventory

import (
	"sort"

	"github.com/iwvelando/end-of-trade/pkg/denomination"
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// MaxCount is the largest count accepted for a single denomination. The
// total of an inventory within this bound, or of two merged, fits in int64
// cents.
const MaxCount int64 = 1_000_000_000_000

// Inventory maps a denomination to the number of items available. Absent
// denominations count as zero.
type Inventory map[denomination.Key]int64

// Empty returns an inventory with every catalog denomination set to zero.
func Empty() Inventory {
	inv := make(Inventory, len(denomination.Keys()))
	for _, key := range denomination.Keys() {
		inv[key] = 0
	}
	return inv
}

// Validate checks every key against the catalog and rejects negative counts
// and counts above MaxCount.
// Keys are checked in sorted order so the reported failure is stable.
func (inv Inventory) Validate() error {
	keys := make([]string, 0, len(inv))
	for key := range inv {
		keys = append(keys, string(key))
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := denomination.Key(k)
		if _, err := denomination.Lookup(key); err != nil {
			return err
		}
		if inv[key] < 0 {
			return domainerr.Newf(domainerr.CodeNegativeCount, k, "negative count for denomination %s: %d", k, inv[key])
		}
		if inv[key] > MaxCount {
			return domainerr.Newf(domainerr.CodeInvalidInput, k, "count for denomination %s exceeds %d: %d", k, MaxCount, inv[key])
		}
	}
	return nil
}

// Count returns the count held for key, zero when absent.
func (inv Inventory) Count(key denomination.Key) int64 {
	return inv[key]
}

// Cents returns the value of the inventory in minor units. The inventory
// must already be valid.
func (inv Inventory) Cents() int64 {
	var total int64
	for _, d := range denomination.All() {
		total += inv[d.Key] * d.Cents
	}
	return total
}

// Clone returns a copy with every catalog key present.
func (inv Inventory) Clone() Inventory {
	out := Empty()
	for key, count := range inv {
		out[key] = count
	}
	return out
}

// Normalize returns a copy restricted to catalog keys, all present.
func (inv Inventory) Normalize() Inventory {
	out := Empty()
	for _, key := range denomination.Keys() {
		out[key] = inv[key]
	}
	return out
}

// IsEmpty reports whether every count is zero.
func (inv Inventory) IsEmpty() bool {
	for _, count := range inv {
		if count != 0 {
			return false
		}
	}
	return true
}

// Merge returns the per-denomination sum of a and b.
func Merge(a, b Inventory) Inventory {
	out := Empty()
	for _, key := range denomination.Keys() {
		out[key] = a[key] + b[key]
	}
	return out
}

// TotalValue returns the monetary value of inv rounded to two decimals.
func TotalValue(inv Inventory) (decimal.Decimal, error) {
	if err := inv.Validate(); err != nil {
		return decimal.Zero, err
	}
	return mathutil.FromCents(inv.Cents()), nil
}

// CountFromValue returns the number of items of key that make up value.
func CountFromValue(key denomination.Key, value decimal.Decimal) (int64, error) {
	d, err := denomination.Lookup(key)
	if err != nil {
		return 0, err
	}
	if value.IsNegative() {
		return 0, domainerr.Newf(domainerr.CodeNegativeCount, string(key), "value cannot be negative: %s", value.StringFixed(2))
	}
	count := value.Div(d.FaceValue()).Round(0)
	if count.GreaterThan(decimal.NewFromInt(MaxCount)) {
		return 0, domainerr.Newf(domainerr.CodeInvalidInput, string(key), "value %s exceeds %d items", value.StringFixed(2), MaxCount)
	}
	return count.IntPart(), nil
}

// ValueFromCount returns the value of count items of key.
func ValueFromCount(key denomination.Key, count int64) (decimal.Decimal, error) {
	d, err := denomination.Lookup(key)
	if err != nil {
		return decimal.Zero, err
	}
	if count < 0 {
		return decimal.Zero, domainerr.Newf(domainerr.CodeNegativeCount, string(key), "count cannot be negative: %d", count)
	}
	if count > MaxCount {
		return decimal.Zero, domainerr.Newf(domainerr.CodeInvalidInput, string(key), "count exceeds %d: %d", MaxCount, count)
	}
	return mathutil.FromCents(count * d.Cents), nil
}

// FromValues builds an inventory from a denomination to value map, the form
// in which float sheets are often recorded.
func FromValues(values map[denomination.Key]decimal.Decimal) (Inventory, error) {
	inv := Empty()
	for key, value := range values {
		count, err := CountFromValue(key, value)
		if err != nil {
			return nil, err
		}
		inv[key] = count
	}
	return inv, nil
}

// Values converts inv into a denomination to value map over every catalog key.
func Values(inv Inventory) (map[denomination.Key]decimal.Decimal, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	out := make(map[denomination.Key]decimal.Decimal, len(denomination.Keys()))
	for _, key := range denomination.Keys() {
		value, err := ValueFromCount(key, inv[key])
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

// FromStrings converts loosely typed keys, e.g. from decoded JSON or YAML,
// into an inventory. The result is validated.
func FromStrings(counts map[string]int64) (Inventory, error) {
	inv := make(Inventory, len(counts))
	for k, v := range counts {
		inv[denomination.Key(k)] = v
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv.Normalize(), nil
}
