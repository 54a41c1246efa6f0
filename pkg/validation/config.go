// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FloatValidator checks configured float targets for values that are legal
// but probably a mistake.
type FloatValidator struct {
	TillTarget      decimal.Decimal
	SafeTarget      decimal.Decimal
	VarianceWarning decimal.Decimal
}

// ValidateTargetCents warns when a target is not a whole number of five
// cent units, the smallest denomination, so no allocation can hit it exactly.
func ValidateTargetCents(name string, target decimal.Decimal) string {
	cents := target.Shift(2)
	if !cents.IsInteger() || !cents.Mod(decimal.NewFromInt(5)).IsZero() {
		return fmt.Sprintf("%s %s is not a multiple of 0.05 and can never be met exactly", name, target.StringFixed(2))
	}
	return ""
}

// ValidateAll validates the float configuration and returns warnings
func (fv *FloatValidator) ValidateAll() []string {
	var warnings []string

	for _, target := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"Till target", fv.TillTarget},
		{"Safe target", fv.SafeTarget},
	} {
		if warning := ValidateTargetCents(target.name, target.value); warning != "" {
			warnings = append(warnings, warning)
		}
	}

	if fv.SafeTarget.LessThan(fv.TillTarget) {
		warnings = append(warnings, fmt.Sprintf("Safe target %s is below till target %s",
			fv.SafeTarget.StringFixed(2), fv.TillTarget.StringFixed(2)))
	}

	if fv.VarianceWarning.IsZero() {
		warnings = append(warnings, "Variance warning threshold is 0; high-variance warnings are disabled")
	}

	return warnings
}
