// Package takings holds the per-day reconciliation record for end of trade:
// point-of-sale and payment totals, float counts, the computed variance, and
// the one-way settlement lock.
package takings

import (
	"time"

	"github.com/iwvelando/end-of-trade/pkg/constants"
	"github.com/iwvelando/end-of-trade/pkg/datetime"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// PaymentMethod is one of the fixed tender types summed into the variance.
type PaymentMethod string

const (
	EFTPOS         PaymentMethod = "eftpos"
	PortableEFTPOS PaymentMethod = "portable_eftpos"
	Amex           PaymentMethod = "amex"
	Diners         PaymentMethod = "diners"
	AccountCharges PaymentMethod = "account_charges"
	TotalCash      PaymentMethod = "total_cash"
)

// PaymentMethods returns every payment method in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{EFTPOS, PortableEFTPOS, Amex, Diners, AccountCharges, TotalCash}
}

func validPaymentMethod(m PaymentMethod) bool {
	for _, known := range PaymentMethods() {
		if m == known {
			return true
		}
	}
	return false
}

// Section names one of the five float counts taken during the day.
type Section string

const (
	SafeFloatOpen              Section = "safe_float_open"
	SafeFloatClose             Section = "safe_float_close"
	TillFloatOpen              Section = "till_float_open"
	TillFloatCloseBeforeMakeup Section = "till_float_close_before_makeup"
	TillFloatMakeup            Section = "till_float_makeup"
)

// Sections returns every float section in display order.
func Sections() []Section {
	return []Section{SafeFloatOpen, SafeFloatClose, TillFloatOpen, TillFloatCloseBeforeMakeup, TillFloatMakeup}
}

// RequiredSections are the counts that must be non-zero before settlement.
func RequiredSections() []Section {
	return []Section{SafeFloatOpen, SafeFloatClose, TillFloatOpen, TillFloatCloseBeforeMakeup}
}

func validSection(s Section) bool {
	for _, known := range Sections() {
		if s == known {
			return true
		}
	}
	return false
}

// State is the lifecycle position of a record.
type State string

const (
	StateOpen    State = "open"
	StateSettled State = "settled"
)

// Takings is the data held for one trading date. Nil pointers mean the value
// has not been recorded.
type Takings struct {
	Date           time.Time
	TillRead       *decimal.Decimal
	Payments       map[PaymentMethod]decimal.Decimal
	PointsRedeemed *decimal.Decimal
	CustomerCount  *int64
	Floats         map[Section]inventory.Inventory
	Variance       *decimal.Decimal
}

// FloatTotal returns the value of a float section, zero when it has not
// been counted.
func (t Takings) FloatTotal(section Section) decimal.Decimal {
	inv, ok := t.Floats[section]
	if !ok {
		return decimal.Zero
	}
	total, err := inventory.TotalValue(inv)
	if err != nil {
		return decimal.Zero
	}
	return total
}

// PaymentsTotal sums every recorded payment method.
func (t Takings) PaymentsTotal() decimal.Decimal {
	values := make([]decimal.Decimal, 0, len(t.Payments))
	for _, m := range PaymentMethods() {
		if v, ok := t.Payments[m]; ok {
			values = append(values, v)
		}
	}
	return mathutil.Sum(values...)
}

func (t Takings) clone() Takings {
	out := Takings{Date: t.Date}
	if t.TillRead != nil {
		v := *t.TillRead
		out.TillRead = &v
	}
	if t.PointsRedeemed != nil {
		v := *t.PointsRedeemed
		out.PointsRedeemed = &v
	}
	if t.CustomerCount != nil {
		v := *t.CustomerCount
		out.CustomerCount = &v
	}
	if t.Variance != nil {
		v := *t.Variance
		out.Variance = &v
	}
	out.Payments = make(map[PaymentMethod]decimal.Decimal, len(t.Payments))
	for k, v := range t.Payments {
		out.Payments[k] = v
	}
	out.Floats = make(map[Section]inventory.Inventory, len(t.Floats))
	for k, v := range t.Floats {
		out.Floats[k] = v.Clone()
	}
	return out
}

// CalculateVariance returns till read minus the sum of payment totals, with
// absent payments counted as zero. It returns nil when the till read has not
// been recorded; callers must not treat that as zero.
func CalculateVariance(t Takings) *decimal.Decimal {
	if t.TillRead == nil {
		return nil
	}
	v := mathutil.Round(t.TillRead.Sub(t.PaymentsTotal()))
	return &v
}

// Record is a reconciliation record in either lifecycle state. Only
// OpenRecord exposes mutators, so a settled record cannot be changed through
// this package.
type Record interface {
	Date() time.Time
	Takings() Takings
	State() State
	sealed()
}

// OpenRecord is a record that may still be edited.
type OpenRecord struct {
	takings Takings
}

// SettledRecord is a finalized record. It has no mutators.
type SettledRecord struct {
	takings   Takings
	settledAt time.Time
}

// NewRecord returns an empty open record for date.
func NewRecord(date time.Time) OpenRecord {
	return OpenRecord{takings: Takings{
		Date:     datetime.Day(date),
		Payments: make(map[PaymentMethod]decimal.Decimal),
		Floats:   make(map[Section]inventory.Inventory),
	}}
}

// Restore rebuilds a record from persisted data. A non-nil settledAt yields a
// SettledRecord. The variance is recomputed for open records.
func Restore(t Takings, settledAt *time.Time) Record {
	t = t.clone()
	t.Date = datetime.Day(t.Date)
	if settledAt != nil {
		return SettledRecord{takings: t, settledAt: settledAt.UTC()}
	}
	t.Variance = CalculateVariance(t)
	return OpenRecord{takings: t}
}

func (r OpenRecord) Date() time.Time  { return r.takings.Date }
func (r OpenRecord) Takings() Takings { return r.takings.clone() }
func (r OpenRecord) State() State     { return StateOpen }
func (OpenRecord) sealed()            {}
func (r OpenRecord) String() string {
	return "<DailyTakings " + r.takings.Date.Format(constants.DateLayout) + ">"
}

func (r SettledRecord) Date() time.Time  { return r.takings.Date }
func (r SettledRecord) Takings() Takings { return r.takings.clone() }
func (r SettledRecord) State() State     { return StateSettled }
func (SettledRecord) sealed()            {}
func (r SettledRecord) String() string {
	return "<DailyTakings " + r.takings.Date.Format(constants.DateLayout) + " settled>"
}

// SettledAt returns when the record was settled.
func (r SettledRecord) SettledAt() time.Time { return r.settledAt }

// IsSettled reports whether rec is in the settled state.
func IsSettled(rec Record) bool {
	_, ok := rec.(SettledRecord)
	return ok
}
