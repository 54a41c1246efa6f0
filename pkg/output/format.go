// Package output provides utilities for formatting and displaying float
// allocations, redistribution plans and safe transfers.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/end-of-trade/internal/planner"
	"github.com/iwvelando/end-of-trade/pkg/denomination"
	"github.com/iwvelando/end-of-trade/pkg/format"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/iwvelando/end-of-trade/pkg/optimization"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func value(d denomination.Denomination, count int64) string {
	return format.Currency(mathutil.FromCents(count * d.Cents))
}

// PrettyAllocation outputs a human-readable table of an allocation.
func PrettyAllocation(w io.Writer, alloc inventory.Inventory) {
	p := message.NewPrinter(language.English)
	fmt.Fprintf(w, "--- Optimal float ---\n")
	fmt.Fprintf(w, "Denomination | Count | Value\n")
	fmt.Fprintf(w, "____________ | _____ | _____\n")
	for _, d := range denomination.All() {
		count := alloc[d.Key]
		if count == 0 {
			continue
		}
		_, _ = p.Fprintf(w, "%-12s | %5d | %s\n", d.Key, count, value(d, count))
	}
	fmt.Fprintf(w, "Total: %s\n", format.Currency(mathutil.FromCents(alloc.Cents())))
}

// CsvAllocation outputs an allocation in comma-separated value format.
func CsvAllocation(w io.Writer, alloc inventory.Inventory) {
	_, _ = io.WriteString(w, AllocationCsvString(alloc))
}

// AllocationCsvString returns the CSV rendering of an allocation covering
// every catalog denomination.
func AllocationCsvString(alloc inventory.Inventory) string {
	var b strings.Builder
	b.WriteString(`"denomination","count","value"` + "\n")
	for _, d := range denomination.All() {
		count := alloc[d.Key]
		fmt.Fprintf(&b, `"%s","%d","%s"`+"\n", d.Key, count, mathutil.FromCents(count*d.Cents).StringFixed(2))
	}
	return b.String()
}

// PrettyPlan outputs a human-readable redistribution plan.
func PrettyPlan(w io.Writer, plan planner.Plan) {
	p := message.NewPrinter(language.English)
	summary := optimization.Summarize(string(plan.Strategy), plan.Exact, plan.Movements)

	fmt.Fprintf(w, "--- Float redistribution (%s) ---\n", plan.Strategy)
	fmt.Fprintf(w, "Denomination | Safe  | Till  | Move\n")
	fmt.Fprintf(w, "____________ | _____ | _____ | ____\n")
	for _, d := range denomination.All() {
		safe, till, move := plan.SafeAdjusted[d.Key], plan.TillAdjusted[d.Key], plan.Movements[d.Key]
		if safe == 0 && till == 0 && move == 0 {
			continue
		}
		_, _ = p.Fprintf(w, "%-12s | %5d | %5d | %s\n", d.Key, safe, till, arrow(move))
	}
	fmt.Fprintf(w, "Safe total: %s (%s)\n", format.Currency(plan.SafeTotal), format.Signed(plan.SafeVariance))
	fmt.Fprintf(w, "Till total: %s (%s)\n", format.Currency(plan.TillTotal), format.Signed(plan.TillVariance))
	fmt.Fprintf(w, "Moved to till: %s, moved to safe: %s\n", format.Currency(summary.ToTill), format.Currency(summary.ToSafe))
	for _, note := range summary.Notes {
		fmt.Fprintf(w, "Note: %s\n", note)
	}
}

func arrow(move int64) string {
	switch {
	case move > 0:
		return fmt.Sprintf("%d to till", move)
	case move < 0:
		return fmt.Sprintf("%d to safe", -move)
	default:
		return "-"
	}
}

// CsvPlan outputs a redistribution plan in comma-separated value format.
func CsvPlan(w io.Writer, plan planner.Plan) {
	_, _ = io.WriteString(w, PlanCsvString(plan))
}

// PlanCsvString returns the CSV rendering of a plan: one row per
// denomination followed by a totals row.
func PlanCsvString(plan planner.Plan) string {
	var b strings.Builder
	b.WriteString(`"denomination","safe","till","movement"` + "\n")
	for _, d := range denomination.All() {
		fmt.Fprintf(&b, `"%s","%d","%d","%d"`+"\n", d.Key, plan.SafeAdjusted[d.Key], plan.TillAdjusted[d.Key], plan.Movements[d.Key])
	}
	fmt.Fprintf(&b, `"total","%s","%s","%s"`+"\n", plan.SafeTotal.StringFixed(2), plan.TillTotal.StringFixed(2), plan.Strategy)
	return b.String()
}

// PrettyTransfer outputs a human-readable safe transfer.
func PrettyTransfer(w io.Writer, t planner.Transfer) {
	fmt.Fprintf(w, "--- Safe float ---\n")
	fmt.Fprintf(w, "Counted: %s\n", format.Currency(t.CurrentTotal))
	fmt.Fprintf(w, "Target:  %s\n", format.Currency(t.TargetValue))
	switch t.Action {
	case planner.ActionDeposit:
		fmt.Fprintf(w, "Deposit %s to bring the safe down to target\n", format.Currency(t.Amount))
	case planner.ActionWithdraw:
		fmt.Fprintf(w, "Withdraw %s to bring the safe up to target\n", format.Currency(t.Amount))
	default:
		fmt.Fprintf(w, "Safe is on target\n")
	}
}

// CsvTransfer outputs a safe transfer in comma-separated value format.
func CsvTransfer(w io.Writer, t planner.Transfer) {
	fmt.Fprintf(w, `"current_total","target_value","difference","action","amount"`+"\n")
	fmt.Fprintf(w, `"%s","%s","%s","%s","%s"`+"\n",
		t.CurrentTotal.StringFixed(2), t.TargetValue.StringFixed(2), t.Difference.StringFixed(2), t.Action, t.Amount.StringFixed(2))
}
