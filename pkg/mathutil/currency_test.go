package mathutil

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Round up at midpoint", "1.235", "1.24"},
		{"Round down below midpoint", "1.234", "1.23"},
		{"No rounding needed", "1.23", "1.23"},
		{"Large number", "12345.678", "12345.68"},
		{"Negative number round up", "-1.235", "-1.24"},
		{"Negative number round down", "-1.234", "-1.23"},
		{"Zero", "0", "0"},
		{"Very small positive", "0.001", "0"},
		{"Exactly one cent", "0.01", "0.01"},
		{"Nearly two cents", "0.019", "0.02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Round(d(tt.input))
			if !result.Equal(d(tt.expected)) {
				t.Errorf("Round(%s) = %s, expected %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"Plain amount", "500.00", "500", false},
		{"Surrounding whitespace", "  12.5 ", "12.5", false},
		{"Rounds to cents", "0.125", "0.13", false},
		{"Negative", "-3.10", "-3.1", false},
		{"Empty", "", "", true},
		{"Not a number", "ten", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Parse(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if !result.Equal(d(tt.expected)) {
				t.Errorf("Parse(%q) = %s, expected %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCentsConversion(t *testing.T) {
	tests := []struct {
		value string
		cents int64
	}{
		{"0", 0},
		{"0.05", 5},
		{"1", 100},
		{"494.00", 49400},
		{"0.125", 13},
		{"-2.50", -250},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := ToCents(d(tt.value)); got != tt.cents {
				t.Errorf("ToCents(%s) = %d, expected %d", tt.value, got, tt.cents)
			}
		})
	}

	if got := FromCents(49400).StringFixed(2); got != "494.00" {
		t.Errorf("FromCents(49400) = %s, expected 494.00", got)
	}
	if got := FromCents(-5).StringFixed(2); got != "-0.05" {
		t.Errorf("FromCents(-5) = %s, expected -0.05", got)
	}
}

func TestIsWholeCents(t *testing.T) {
	tests := []struct {
		value string
		whole bool
	}{
		{"0", true},
		{"500", true},
		{"10.50", true},
		{"10.500000", true},
		{"-2.05", true},
		{"0.001", false},
		{"500.004", false},
		{"10.005", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := IsWholeCents(d(tt.value)); got != tt.whole {
				t.Errorf("IsWholeCents(%s) = %v, expected %v", tt.value, got, tt.whole)
			}
		})
	}
}

func TestIsZero(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Exactly zero", "0", true},
		{"Very small positive", "0.001", true},
		{"Very small negative", "-0.001", true},
		{"Just above tolerance", "0.02", false},
		{"Just below negative tolerance", "-0.02", false},
		{"Exactly tolerance", "0.01", true},
		{"Exactly negative tolerance", "-0.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsZero(d(tt.input)); result != tt.expected {
				t.Errorf("IsZero(%s) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsPositiveNegative(t *testing.T) {
	tests := []struct {
		input    string
		positive bool
		negative bool
	}{
		{"0", false, false},
		{"0.01", false, false},
		{"0.02", true, false},
		{"-0.01", false, false},
		{"-0.02", false, true},
		{"1500", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsPositive(d(tt.input)); got != tt.positive {
				t.Errorf("IsPositive(%s) = %v, expected %v", tt.input, got, tt.positive)
			}
			if got := IsNegative(d(tt.input)); got != tt.negative {
				t.Errorf("IsNegative(%s) = %v, expected %v", tt.input, got, tt.negative)
			}
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		tol      string
		expected bool
	}{
		{"Equal", "10", "10", "0.01", true},
		{"At tolerance", "10.01", "10", "0.01", true},
		{"Beyond tolerance", "10.02", "10", "0.01", false},
		{"Order independent", "10", "10.02", "0.05", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinTolerance(d(tt.a), d(tt.b), d(tt.tol)); got != tt.expected {
				t.Errorf("WithinTolerance(%s, %s, %s) = %v, expected %v", tt.a, tt.b, tt.tol, got, tt.expected)
			}
		})
	}
}

func TestSum(t *testing.T) {
	if got := Sum(); !got.IsZero() {
		t.Errorf("Sum() = %s, expected 0", got)
	}
	got := Sum(d("0.10"), d("0.20"), d("0.30"))
	if got.StringFixed(2) != "0.60" {
		t.Errorf("Sum = %s, expected 0.60", got)
	}
	got = Sum(d("0.004"), d("0.004"))
	if got.StringFixed(2) != "0.01" {
		t.Errorf("Sum of sub-cent values = %s, expected 0.01", got)
	}
}

func TestMin(t *testing.T) {
	tests := []struct {
		a, b, expected int64
	}{
		{1, 2, 1},
		{2, 1, 1},
		{-5, 3, -5},
		{7, 7, 7},
	}

	for _, tt := range tests {
		if got := Min(tt.a, tt.b); got != tt.expected {
			t.Errorf("Min(%d, %d) = %d, expected %d", tt.a, tt.b, got, tt.expected)
		}
	}
}
