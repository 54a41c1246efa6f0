package main

import (
	"fmt"
	"os"

	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// loadCountSheet reads a YAML count sheet of the form
//
//	"$20": 25
//	"5c": 40
//
// into a validated inventory.
func loadCountSheet(path string) (inventory.Inventory, error) {
	if path == "" {
		return nil, fmt.Errorf("count sheet path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read count sheet %s: %w", path, err)
	}

	var counts map[string]int64
	if err := yaml.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("failed to parse count sheet %s: %w", path, err)
	}

	inv, err := inventory.FromStrings(counts)
	if err != nil {
		return nil, fmt.Errorf("invalid count sheet %s: %w", path, err)
	}
	return inv, nil
}

// targetOrDefault parses raw when set and falls back to def otherwise.
func targetOrDefault(raw string, def decimal.Decimal) (decimal.Decimal, error) {
	if raw == "" {
		return def, nil
	}
	target, err := mathutil.Parse(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid target: %w", err)
	}
	return target, nil
}
