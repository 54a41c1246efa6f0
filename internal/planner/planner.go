// Package planner redistributes denominations between the safe reserve and the
// till working float so both approach their targets.
package planner

import (
	"fmt"

	"github.com/iwvelando/end-of-trade/internal/solver"
	"github.com/iwvelando/end-of-trade/pkg/denomination"
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Strategy records how the till composition in a Plan was reached.
type Strategy string

const (
	// StrategyExact means the till holds an exact solver allocation.
	StrategyExact Strategy = "exact"
	// StrategyBestEffort means the solver found no exact allocation and
	// denominations were moved ascending until the till reached its target
	// or the safe ran out; tillVariance may be non-zero.
	StrategyBestEffort Strategy = "best_effort"
)

// Plan is the outcome of a redistribution.
type Plan struct {
	SafeAdjusted inventory.Inventory `json:"safe_adjusted"`
	TillAdjusted inventory.Inventory `json:"till_adjusted"`
	// Movements are signed counts: positive moves safe to till, negative
	// moves till to safe.
	Movements    inventory.Inventory `json:"movements"`
	SafeTotal    decimal.Decimal     `json:"safe_total"`
	TillTotal    decimal.Decimal     `json:"till_total"`
	SafeVariance decimal.Decimal     `json:"safe_variance"`
	TillVariance decimal.Decimal     `json:"till_variance"`
	Strategy     Strategy            `json:"strategy"`
	Exact        bool                `json:"exact"`
	SolverPass   solver.Pass         `json:"solver_pass,omitempty"`
}

// Planner computes redistribution plans.
type Planner struct {
	logger *zap.Logger
}

// New constructs a Planner. A nil logger is replaced with a no-op logger.
func New(logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{logger: logger}
}

// Redistribute moves denominations between safe and till so the till holds
// tillTarget exactly when the solver can allocate it from the combined
// inventory, and as close to it as an ascending transfer allows otherwise.
// Value is conserved: safe plus till is worth the same before and after.
func (p *Planner) Redistribute(safe, till inventory.Inventory, safeTarget, tillTarget decimal.Decimal) (Plan, error) {
	if !safeTarget.IsPositive() {
		return Plan{}, domainerr.New(domainerr.CodeInvalidInput, "safe_target", "safe target must be positive")
	}
	if !tillTarget.IsPositive() {
		return Plan{}, domainerr.New(domainerr.CodeInvalidInput, "till_target", "till target must be positive")
	}
	if !mathutil.IsWholeCents(safeTarget) {
		return Plan{}, domainerr.Newf(domainerr.CodeInvalidInput, "safe_target", "safe target must be a whole number of cents: %s", safeTarget)
	}
	if !mathutil.IsWholeCents(tillTarget) {
		return Plan{}, domainerr.Newf(domainerr.CodeInvalidInput, "till_target", "till target must be a whole number of cents: %s", tillTarget)
	}
	if err := safe.Validate(); err != nil {
		return Plan{}, domainerr.Wrap(domainerr.CodeInvalidInput, "safe_float", err)
	}
	if err := till.Validate(); err != nil {
		return Plan{}, domainerr.Wrap(domainerr.CodeInvalidInput, "till_float", err)
	}

	safeBefore := safe.Normalize()
	tillBefore := till.Normalize()
	combinedCents := safeBefore.Cents() + tillBefore.Cents()
	requiredCents := mathutil.ToCents(safeTarget) + mathutil.ToCents(tillTarget)
	if combinedCents < requiredCents {
		return Plan{}, domainerr.Newf(domainerr.CodeInsufficientCombinedFunds, "",
			"insufficient total funds: available %s, required %s",
			mathutil.FromCents(combinedCents).StringFixed(2), mathutil.FromCents(requiredCents).StringFixed(2))
	}

	var (
		safeAfter, tillAfter, movements inventory.Inventory
		strategy                        = StrategyBestEffort
		pass                            solver.Pass
	)

	res, err := solver.SolveDetailed(inventory.Merge(safeBefore, tillBefore), tillTarget)
	switch {
	case err == nil:
		var ok bool
		safeAfter, tillAfter, movements, ok = applyAllocation(safeBefore, tillBefore, res.Allocation)
		if ok {
			strategy = StrategyExact
			pass = res.Pass
		} else {
			p.logger.Debug("solved till composition not coverable from safe, using best effort",
				zap.String("op", "planner.Redistribute"),
			)
		}
	case domainerr.CodeOf(err) == domainerr.CodeNoExactAllocation:
		p.logger.Debug("no exact till allocation, using best effort",
			zap.String("op", "planner.Redistribute"),
			zap.String("tillTarget", tillTarget.StringFixed(2)),
		)
	default:
		return Plan{}, err
	}

	if strategy == StrategyBestEffort {
		safeAfter, tillAfter, movements = bestEffort(safeBefore, tillBefore, mathutil.ToCents(tillTarget))
	}

	if safeAfter.Cents()+tillAfter.Cents() != combinedCents {
		return Plan{}, fmt.Errorf("redistribution changed total value from %s to %s",
			mathutil.FromCents(combinedCents).StringFixed(2),
			mathutil.FromCents(safeAfter.Cents()+tillAfter.Cents()).StringFixed(2))
	}

	safeTotal := mathutil.FromCents(safeAfter.Cents())
	tillTotal := mathutil.FromCents(tillAfter.Cents())
	plan := Plan{
		SafeAdjusted: safeAfter,
		TillAdjusted: tillAfter,
		Movements:    movements,
		SafeTotal:    safeTotal,
		TillTotal:    tillTotal,
		SafeVariance: mathutil.Round(safeTotal.Sub(safeTarget)),
		TillVariance: mathutil.Round(tillTotal.Sub(tillTarget)),
		Strategy:     strategy,
		Exact:        strategy == StrategyExact,
		SolverPass:   pass,
	}

	p.logger.Info("float distribution planned",
		zap.String("op", "planner.Redistribute"),
		zap.String("strategy", string(plan.Strategy)),
		zap.String("safeTotal", plan.SafeTotal.StringFixed(2)),
		zap.String("tillTotal", plan.TillTotal.StringFixed(2)),
		zap.String("safeVariance", plan.SafeVariance.StringFixed(2)),
		zap.String("tillVariance", plan.TillVariance.StringFixed(2)),
	)

	return plan, nil
}

// Redistribute is a convenience wrapper around a Planner with a no-op logger.
func Redistribute(safe, till inventory.Inventory, safeTarget, tillTarget decimal.Decimal) (Plan, error) {
	return New(nil).Redistribute(safe, till, safeTarget, tillTarget)
}

// applyAllocation realizes target as the till composition. Positive deltas are
// drawn from safe; if safe cannot cover one the result is discarded.
func applyAllocation(safe, till, target inventory.Inventory) (inventory.Inventory, inventory.Inventory, inventory.Inventory, bool) {
	safeAfter := safe.Clone()
	tillAfter := till.Clone()
	movements := inventory.Empty()

	for _, key := range denomination.Keys() {
		delta := target[key] - till[key]
		if delta > 0 && safeAfter[key] < delta {
			return nil, nil, nil, false
		}
		safeAfter[key] -= delta
		tillAfter[key] += delta
		movements[key] = delta
	}
	return safeAfter, tillAfter, movements, true
}

// bestEffort walks denominations ascending moving items from safe to till
// while they fit in what the till still lacks.
func bestEffort(safe, till inventory.Inventory, tillTargetCents int64) (inventory.Inventory, inventory.Inventory, inventory.Inventory) {
	safeAfter := safe.Clone()
	tillAfter := till.Clone()
	movements := inventory.Empty()

	remaining := tillTargetCents - till.Cents()
	for _, d := range denomination.All() {
		if remaining <= 0 {
			break
		}
		move := mathutil.Min(remaining/d.Cents, safeAfter[d.Key])
		if move <= 0 {
			continue
		}
		safeAfter[d.Key] -= move
		tillAfter[d.Key] += move
		movements[d.Key] = move
		remaining -= move * d.Cents
	}
	return safeAfter, tillAfter, movements
}
