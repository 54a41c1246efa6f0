// Package solver assembles a float of an exact target value from an available
// inventory, preferring small denominations and avoiding large notes.
package solver

import (
	"github.com/iwvelando/end-of-trade/pkg/denomination"
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Pass names the greedy walk that produced an allocation.
type Pass string

const (
	// PassSmallChange walks small denominations ascending, then the large
	// notes ascending.
	PassSmallChange Pass = "small_change"
	// PassNoteReserve reserves the fewest large notes the small denominations
	// cannot cover, then fills the rest from the largest small denomination down.
	PassNoteReserve Pass = "note_reserve"
)

// Result is an exact allocation together with the pass that found it.
type Result struct {
	Allocation inventory.Inventory
	Pass       Pass
}

// Solve returns an allocation drawn from available whose value equals target
// exactly. It fails with InsufficientFunds when available is worth less than
// target and with NoExactAllocation when neither greedy pass lands on target.
func Solve(available inventory.Inventory, target decimal.Decimal) (inventory.Inventory, error) {
	res, err := SolveDetailed(available, target)
	if err != nil {
		return nil, err
	}
	return res.Allocation, nil
}

// SolveDetailed is Solve that also reports which pass succeeded.
func SolveDetailed(available inventory.Inventory, target decimal.Decimal) (Result, error) {
	if !target.IsPositive() {
		return Result{}, domainerr.New(domainerr.CodeInvalidInput, "target", "target value must be positive")
	}
	if !mathutil.IsWholeCents(target) {
		return Result{}, domainerr.Newf(domainerr.CodeInvalidInput, "target", "target value must be a whole number of cents: %s", target)
	}
	if err := available.Validate(); err != nil {
		return Result{}, domainerr.Wrap(domainerr.CodeInvalidInput, "available", err)
	}

	targetCents := mathutil.ToCents(target)
	if available.Cents() < targetCents {
		return Result{}, domainerr.Newf(domainerr.CodeInsufficientFunds, "available",
			"insufficient funds: available %s, required %s",
			mathutil.FromCents(available.Cents()).StringFixed(2), mathutil.FromCents(targetCents).StringFixed(2))
	}

	if alloc, ok := smallChange(available, targetCents); ok {
		return Result{Allocation: alloc, Pass: PassSmallChange}, nil
	}
	if alloc, ok := noteReserve(available, targetCents); ok {
		return Result{Allocation: alloc, Pass: PassNoteReserve}, nil
	}

	return Result{}, domainerr.Newf(domainerr.CodeNoExactAllocation, "target",
		"no exact allocation of %s from available denominations", mathutil.FromCents(targetCents).StringFixed(2))
}

// smallChange is the primary walk: small denominations ascending, then each
// large note ascending, each drawing as many items as fit in what remains.
func smallChange(available inventory.Inventory, targetCents int64) (inventory.Inventory, bool) {
	alloc := inventory.Empty()
	remaining := targetCents
	remaining = draw(alloc, available, denomination.Small(), remaining)
	if remaining > 0 {
		remaining = draw(alloc, available, denomination.Large(), remaining)
	}
	return alloc, remaining == 0
}

// noteReserve takes large notes only for the part of the target the small
// denominations cannot cover in total, then fills the remainder from the
// largest small denomination down.
func noteReserve(available inventory.Inventory, targetCents int64) (inventory.Inventory, bool) {
	alloc := inventory.Empty()

	small := denomination.Small()
	var smallCents int64
	for _, d := range small {
		smallCents += available[d.Key] * d.Cents
	}

	remaining := targetCents
	shortfall := targetCents - smallCents
	for _, d := range denomination.Large() {
		if shortfall <= 0 {
			break
		}
		need := (shortfall + d.Cents - 1) / d.Cents
		use := mathutil.Min(need, available[d.Key])
		if use*d.Cents > remaining {
			use = remaining / d.Cents
		}
		if use <= 0 {
			continue
		}
		alloc[d.Key] = use
		remaining -= use * d.Cents
		shortfall -= use * d.Cents
	}

	descending := make([]denomination.Denomination, len(small))
	for i, d := range small {
		descending[len(small)-1-i] = d
	}
	remaining = draw(alloc, available, descending, remaining)
	return alloc, remaining == 0
}

// draw takes min(remaining/face, available) of each denomination in order and
// returns what is left of remaining.
func draw(alloc, available inventory.Inventory, order []denomination.Denomination, remaining int64) int64 {
	for _, d := range order {
		if remaining <= 0 {
			break
		}
		left := available[d.Key] - alloc[d.Key]
		if left <= 0 {
			continue
		}
		use := mathutil.Min(remaining/d.Cents, left)
		if use > 0 {
			alloc[d.Key] += use
			remaining -= use * d.Cents
		}
	}
	return remaining
}
