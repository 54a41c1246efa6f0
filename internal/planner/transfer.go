package planner

import (
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Action advises what to do with the safe after counting it.
type Action string

const (
	// ActionDeposit means the safe holds more than its target; bank the surplus.
	ActionDeposit Action = "deposit"
	// ActionWithdraw means the safe is short of its target; top it up.
	ActionWithdraw Action = "withdraw"
	// ActionNone means the safe is exactly on target.
	ActionNone Action = "none"
)

// Transfer compares a counted safe against its target.
type Transfer struct {
	CurrentTotal decimal.Decimal
	TargetValue  decimal.Decimal
	// Difference is CurrentTotal minus TargetValue.
	Difference decimal.Decimal
	Action     Action
	Amount     decimal.Decimal
}

// SafeTransfer reports how far the safe is from target and which way money
// must move to restore it.
func SafeTransfer(safe inventory.Inventory, target decimal.Decimal) (Transfer, error) {
	if !target.IsPositive() {
		return Transfer{}, domainerr.New(domainerr.CodeInvalidInput, "target_value", "target value must be positive")
	}
	if !mathutil.IsWholeCents(target) {
		return Transfer{}, domainerr.Newf(domainerr.CodeInvalidInput, "target_value", "target value must be a whole number of cents: %s", target)
	}
	total, err := inventory.TotalValue(safe)
	if err != nil {
		return Transfer{}, domainerr.Wrap(domainerr.CodeInvalidInput, "safe_float", err)
	}

	diff := mathutil.Round(total.Sub(target))
	action := ActionNone
	switch {
	case diff.IsPositive():
		action = ActionDeposit
	case diff.IsNegative():
		action = ActionWithdraw
	}

	return Transfer{
		CurrentTotal: total,
		TargetValue:  mathutil.Round(target),
		Difference:   diff,
		Action:       action,
		Amount:       diff.Abs(),
	}, nil
}
