package takings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/iwvelando/end-of-trade/pkg/constants"
	"github.com/iwvelando/end-of-trade/pkg/datetime"
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger coordinates reconciliation records over a Store. Every
// read-modify-write cycle for a date runs under that date's lock, so two
// callers cannot both pass the open-state check and race to settle.
type Ledger struct {
	store  Store
	logger *zap.Logger
	policy Policy
	now    func() time.Time
	locks  *dateLocks
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPolicy sets the settlement thresholds.
func WithPolicy(p Policy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithClock overrides the time source used for settlement timestamps and
// future-date checks.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger constructs a Ledger over store.
func NewLedger(store Store, logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		store:  store,
		logger: logger,
		policy: DefaultPolicy(),
		now:    time.Now,
		locks:  newDateLocks(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Get returns the record for date, or an empty open record when none has
// been stored yet. The empty record is not persisted until it is edited.
func (l *Ledger) Get(ctx context.Context, date time.Time) (Record, error) {
	date, err := l.checkDate(date)
	if err != nil {
		return nil, err
	}
	return l.load(ctx, date)
}

// Reconcile applies fields to the record for date.
func (l *Ledger) Reconcile(ctx context.Context, date time.Time, f Fields) (OpenRecord, error) {
	date, err := l.checkDate(date)
	if err != nil {
		return OpenRecord{}, err
	}
	unlock := l.locks.lock(dateKey(date))
	defer unlock()

	rec, err := l.load(ctx, date)
	if err != nil {
		return OpenRecord{}, err
	}
	updated, err := Reconcile(rec, f)
	if err != nil {
		l.logRejected("takings.Ledger.Reconcile", date, err)
		return OpenRecord{}, err
	}
	if err := l.store.Save(ctx, updated); err != nil {
		return OpenRecord{}, fmt.Errorf("failed to save takings for %s: %w", dateKey(date), err)
	}

	l.logger.Info("takings saved",
		zap.String("op", "takings.Ledger.Reconcile"),
		zap.String("date", dateKey(date)),
		zap.String("variance", formatVariance(updated.takings.Variance)),
	)
	return updated, nil
}

// Settle finalizes the record for date.
func (l *Ledger) Settle(ctx context.Context, date time.Time) (Settlement, error) {
	return l.ReconcileAndSettle(ctx, date, Fields{})
}

// ReconcileAndSettle applies fields and settles in one serialized step. If
// settlement fails nothing is saved.
func (l *Ledger) ReconcileAndSettle(ctx context.Context, date time.Time, f Fields) (Settlement, error) {
	date, err := l.checkDate(date)
	if err != nil {
		return Settlement{}, err
	}
	unlock := l.locks.lock(dateKey(date))
	defer unlock()

	rec, err := l.load(ctx, date)
	if err != nil {
		return Settlement{}, err
	}
	updated, err := Reconcile(rec, f)
	if err != nil {
		l.logRejected("takings.Ledger.ReconcileAndSettle", date, err)
		return Settlement{}, err
	}
	settlement, err := updated.Settle(l.policy, l.now())
	if err != nil {
		l.logRejected("takings.Ledger.ReconcileAndSettle", date, err)
		return Settlement{}, err
	}
	if err := l.store.Save(ctx, settlement.Record); err != nil {
		return Settlement{}, fmt.Errorf("failed to save settled takings for %s: %w", dateKey(date), err)
	}

	if settlement.HighVariance {
		l.logger.Warn("variance is unusually high; verify all amounts",
			zap.String("op", "takings.Ledger.ReconcileAndSettle"),
			zap.String("date", dateKey(date)),
			zap.String("variance", formatVariance(settlement.Record.takings.Variance)),
			zap.String("threshold", l.policy.VarianceWarning.StringFixed(2)),
		)
	}
	l.logger.Info("takings settled",
		zap.String("op", "takings.Ledger.ReconcileAndSettle"),
		zap.String("date", dateKey(date)),
		zap.Time("settledAt", settlement.Record.SettledAt()),
	)
	return settlement, nil
}

// MonthSummary lists which dates of a month have settled or unsettled records.
type MonthSummary struct {
	Year      int
	Month     time.Month
	Settled   []time.Time
	Unsettled []time.Time
}

// Month summarizes the records stored for a calendar month.
func (l *Ledger) Month(ctx context.Context, year int, month time.Month) (MonthSummary, error) {
	from, to, err := datetime.MonthBounds(year, month)
	if err != nil {
		return MonthSummary{}, domainerr.Wrap(domainerr.CodeInvalidInput, "month", err)
	}
	records, err := l.store.ListRange(ctx, from, to)
	if err != nil {
		return MonthSummary{}, fmt.Errorf("failed to list takings for %04d-%02d: %w", year, int(month), err)
	}

	summary := MonthSummary{Year: year, Month: month}
	for _, rec := range records {
		if IsSettled(rec) {
			summary.Settled = append(summary.Settled, rec.Date())
		} else {
			summary.Unsettled = append(summary.Unsettled, rec.Date())
		}
	}
	sort.Slice(summary.Settled, func(i, j int) bool { return summary.Settled[i].Before(summary.Settled[j]) })
	sort.Slice(summary.Unsettled, func(i, j int) bool { return summary.Unsettled[i].Before(summary.Unsettled[j]) })
	return summary, nil
}

// Policy returns the settlement thresholds in use.
func (l *Ledger) Policy() Policy {
	return l.policy
}

func (l *Ledger) load(ctx context.Context, date time.Time) (Record, error) {
	rec, err := l.store.Load(ctx, date)
	if errors.Is(err, ErrNotFound) {
		return NewRecord(date), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load takings for %s: %w", dateKey(date), err)
	}
	return rec, nil
}

func (l *Ledger) checkDate(date time.Time) (time.Time, error) {
	if date.IsZero() {
		return time.Time{}, domainerr.New(domainerr.CodeInvalidInput, "date", "date is required")
	}
	day := datetime.Day(date)
	if datetime.DateAfterDate(day, l.now()) {
		return time.Time{}, domainerr.Newf(domainerr.CodeInvalidInput, "date",
			"cannot edit takings for future date %s", dateKey(day))
	}
	return day, nil
}

func (l *Ledger) logRejected(op string, date time.Time, err error) {
	l.logger.Warn("takings update rejected",
		zap.String("op", op),
		zap.String("date", dateKey(date)),
		zap.String("code", string(domainerr.CodeOf(err))),
		zap.Error(err),
	)
}

func dateKey(date time.Time) string {
	return date.Format(constants.DateLayout)
}

func formatVariance(v *decimal.Decimal) string {
	if v == nil {
		return "undefined"
	}
	return v.StringFixed(2)
}
