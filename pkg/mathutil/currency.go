// Package mathutil provides money arithmetic helpers on fixed-point decimals.
package mathutil

import (
	"fmt"
	"strings"

	"github.com/iwvelando/end-of-trade/pkg/constants"
	"github.com/shopspring/decimal"
)

var (
	centsPerDollar = decimal.NewFromInt(constants.CentsPerDollar)
	tolerance      = decimal.RequireFromString(constants.CurrencyTolerance)
)

// Round rounds a value to two decimals, i.e. to represent real currency.
func Round(val decimal.Decimal) decimal.Decimal {
	return val.Round(constants.DecimalPlaces)
}

// Parse converts a textual amount into a rounded decimal.
func Parse(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Round(d), nil
}

// ToCents converts a money value into minor units, rounding half away from zero.
func ToCents(val decimal.Decimal) int64 {
	return val.Mul(centsPerDollar).Round(0).IntPart()
}

// FromCents converts minor units into a money value.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -constants.DecimalPlaces)
}

// IsWholeCents reports whether val has no digits below the cent.
func IsWholeCents(val decimal.Decimal) bool {
	return val.Equal(Round(val))
}

// IsZero checks if a value is effectively zero (within one cent)
func IsZero(val decimal.Decimal) bool {
	return val.Abs().LessThanOrEqual(tolerance)
}

// IsPositive checks if a value is positive (greater than tolerance)
func IsPositive(val decimal.Decimal) bool {
	return val.GreaterThan(tolerance)
}

// IsNegative checks if a value is negative (less than negative tolerance)
func IsNegative(val decimal.Decimal) bool {
	return val.LessThan(tolerance.Neg())
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tol decimal.Decimal) bool {
	return val1.Sub(val2).Abs().LessThanOrEqual(tol)
}

// Sum adds every value and rounds the result.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round(total)
}

// Min returns the minimum of two int64 values
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
