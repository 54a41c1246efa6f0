package takings

import (
	"fmt"
	"time"

	"github.com/iwvelando/end-of-trade/pkg/constants"
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Fields is a partial update to a record. Nil pointers and absent map entries
// leave the stored value untouched.
type Fields struct {
	TillRead       *decimal.Decimal
	Payments       map[PaymentMethod]decimal.Decimal
	PointsRedeemed *decimal.Decimal
	CustomerCount  *int64
	Floats         map[Section]inventory.Inventory
}

// Validate checks every field without applying any of them.
func (f Fields) Validate() error {
	for m := range f.Payments {
		if !validPaymentMethod(m) {
			return domainerr.Newf(domainerr.CodeInvalidInput, string(m), "unknown payment method: %s", m)
		}
	}
	if f.CustomerCount != nil && *f.CustomerCount < 0 {
		return domainerr.New(domainerr.CodeInvalidInput, "customer_count", "customer count cannot be negative")
	}
	for s, inv := range f.Floats {
		if !validSection(s) {
			return domainerr.Newf(domainerr.CodeInvalidInput, string(s), "unknown float section: %s", s)
		}
		if err := inv.Validate(); err != nil {
			return domainerr.Wrap(domainerr.CodeInvalidInput, string(s), err)
		}
	}
	return nil
}

// Policy holds the business thresholds applied at settlement.
type Policy struct {
	// VarianceWarning is the absolute variance above which settlement is
	// flagged. Exceeding it never blocks settlement.
	VarianceWarning decimal.Decimal
}

// DefaultPolicy returns the standard settlement thresholds.
func DefaultPolicy() Policy {
	return Policy{VarianceWarning: decimal.RequireFromString(constants.DefaultVarianceWarning)}
}

// Settlement is the outcome of settling a record.
type Settlement struct {
	Record       SettledRecord
	HighVariance bool
	Warnings     []string
}

// Reconcile applies fields to an open record and recomputes the variance.
// Money amounts are rounded to cents.
func (r OpenRecord) Reconcile(f Fields) (OpenRecord, error) {
	if err := f.Validate(); err != nil {
		return r, err
	}

	t := r.takings.clone()
	if f.TillRead != nil {
		v := mathutil.Round(*f.TillRead)
		t.TillRead = &v
	}
	for m, v := range f.Payments {
		t.Payments[m] = mathutil.Round(v)
	}
	if f.PointsRedeemed != nil {
		v := mathutil.Round(*f.PointsRedeemed)
		t.PointsRedeemed = &v
	}
	if f.CustomerCount != nil {
		v := *f.CustomerCount
		t.CustomerCount = &v
	}
	for s, inv := range f.Floats {
		t.Floats[s] = inv.Normalize()
	}
	t.Variance = CalculateVariance(t)

	return OpenRecord{takings: t}, nil
}

// Settle finalizes the record. Each required float section must have been
// counted with a positive total.
func (r OpenRecord) Settle(policy Policy, at time.Time) (Settlement, error) {
	for _, s := range RequiredSections() {
		if !r.takings.FloatTotal(s).IsPositive() {
			return Settlement{}, domainerr.Newf(domainerr.CodeIncompleteData, string(s),
				"all denomination sections must be completed before settling: %s is empty", s)
		}
	}

	t := r.takings.clone()
	t.Variance = CalculateVariance(t)

	settlement := Settlement{Record: SettledRecord{takings: t, settledAt: at.UTC()}}
	if t.Variance != nil && policy.VarianceWarning.IsPositive() && t.Variance.Abs().GreaterThan(policy.VarianceWarning) {
		settlement.HighVariance = true
		settlement.Warnings = append(settlement.Warnings,
			fmt.Sprintf("variance %s exceeds %s; verify all amounts", t.Variance.StringFixed(2), policy.VarianceWarning.StringFixed(2)))
	}
	return settlement, nil
}

// Reconcile applies fields to rec. Settled records are rejected with
// RecordSettled and left unchanged.
func Reconcile(rec Record, f Fields) (OpenRecord, error) {
	open, ok := rec.(OpenRecord)
	if !ok {
		return OpenRecord{}, settledError(rec)
	}
	return open.Reconcile(f)
}

// Settle finalizes rec. Settling an already settled record fails with
// RecordSettled.
func Settle(rec Record, policy Policy, at time.Time) (Settlement, error) {
	open, ok := rec.(OpenRecord)
	if !ok {
		return Settlement{}, settledError(rec)
	}
	return open.Settle(policy, at)
}

func settledError(rec Record) error {
	return domainerr.Newf(domainerr.CodeRecordSettled, "date",
		"takings for %s are settled and cannot be edited", rec.Date().Format(constants.DateLayout))
}
