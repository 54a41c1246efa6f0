// Package optimization summarizes redistribution results for display.
package optimization

import (
	"github.com/iwvelando/end-of-trade/pkg/denomination"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Direction is which way a denomination moves between the pools.
type Direction string

const (
	SafeToTill Direction = "safe_to_till"
	TillToSafe Direction = "till_to_safe"
)

// Movement is one denomination moved between safe and till.
type Movement struct {
	Denomination denomination.Key `json:"denomination"`
	Count        int64            `json:"count"`
	Value        decimal.Decimal  `json:"value"`
	Direction    Direction        `json:"direction"`
}

// Summary captures the result of a single redistribution.
type Summary struct {
	Strategy  string          `json:"strategy"`
	Exact     bool            `json:"exact"`
	Movements []Movement      `json:"movements"`
	ToTill    decimal.Decimal `json:"toTill"`
	ToSafe    decimal.Decimal `json:"toSafe"`
	Notes     []string        `json:"notes,omitempty"`
}

// Summarize lists the non-zero signed movements in catalog order. Positive
// counts move safe to till.
func Summarize(strategy string, exact bool, movements inventory.Inventory) Summary {
	s := Summary{Strategy: strategy, Exact: exact}

	var toTill, toSafe int64
	for _, d := range denomination.All() {
		count := movements[d.Key]
		if count == 0 {
			continue
		}
		m := Movement{Denomination: d.Key, Direction: SafeToTill, Count: count}
		if count < 0 {
			m.Direction = TillToSafe
			m.Count = -count
		}
		m.Value = mathutil.FromCents(m.Count * d.Cents)
		if m.Direction == SafeToTill {
			toTill += m.Count * d.Cents
		} else {
			toSafe += m.Count * d.Cents
		}
		s.Movements = append(s.Movements, m)
	}
	s.ToTill = mathutil.FromCents(toTill)
	s.ToSafe = mathutil.FromCents(toSafe)

	if len(s.Movements) == 0 {
		s.Notes = append(s.Notes, "no movements needed")
	}
	if !exact {
		s.Notes = append(s.Notes, "no exact till composition available; best effort transfer applied")
	}
	return s
}
