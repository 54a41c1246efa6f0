// Package storetest exercises a takings.Store implementation against the
// behaviour every backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iwvelando/end-of-trade/internal/takings"
	"github.com/iwvelando/end-of-trade/pkg/denomination"
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	"github.com/iwvelando/end-of-trade/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var settledAt = time.Date(2023, time.August, 31, 21, 30, 0, 0, time.UTC)

func openRecord(t *testing.T, date time.Time) takings.OpenRecord {
	t.Helper()
	rec, err := takings.NewRecord(date).Reconcile(takings.Fields{
		TillRead:       testutil.MoneyPtr("2500.00"),
		PointsRedeemed: testutil.MoneyPtr("12.40"),
		CustomerCount:  testutil.Int64Ptr(87),
		Payments: map[takings.PaymentMethod]decimal.Decimal{
			takings.EFTPOS:    testutil.Money("1650.00"),
			takings.TotalCash: testutil.Money("800.00"),
		},
		Floats: map[takings.Section]inventory.Inventory{
			takings.SafeFloatOpen:              testutil.SingleNote(denomination.OneHundred, 15),
			takings.SafeFloatClose:             testutil.SingleNote(denomination.OneHundred, 15),
			takings.TillFloatOpen:              testutil.ShortDrawer(),
			takings.TillFloatCloseBeforeMakeup: testutil.SingleNote(denomination.Twenty, 30),
		},
	})
	require.NoError(t, err)
	return rec
}

// Run executes the shared store checks. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) takings.Store) {
	t.Run("LoadMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Load(context.Background(), testutil.Date(2023, time.August, 1))
		assert.True(t, errors.Is(err, takings.ErrNotFound), "expected ErrNotFound, got %v", err)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		day := testutil.Date(2023, time.August, 31)
		rec := openRecord(t, day)
		require.NoError(t, s.Save(ctx, rec))

		loaded, err := s.Load(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, takings.StateOpen, loaded.State())

		want, got := rec.Takings(), loaded.Takings()
		assert.True(t, got.Date.Equal(day))
		assert.Equal(t, want.TillRead.StringFixed(2), got.TillRead.StringFixed(2))
		assert.Equal(t, want.PointsRedeemed.StringFixed(2), got.PointsRedeemed.StringFixed(2))
		assert.Equal(t, *want.CustomerCount, *got.CustomerCount)
		assert.Equal(t, "50.00", got.Variance.StringFixed(2))
		assert.Equal(t, want.PaymentsTotal().StringFixed(2), got.PaymentsTotal().StringFixed(2))
		for _, section := range takings.Sections() {
			assert.Equal(t, want.FloatTotal(section).StringFixed(2), got.FloatTotal(section).StringFixed(2), string(section))
		}
		_, hasMakeup := got.Floats[takings.TillFloatMakeup]
		assert.False(t, hasMakeup, "uncounted section must stay absent")
	})

	t.Run("SubCentAmountsStoredAsCents", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		day := testutil.Date(2023, time.August, 29)
		rec, err := takings.NewRecord(day).Reconcile(takings.Fields{
			TillRead:       testutil.MoneyPtr("10.005"),
			PointsRedeemed: testutil.MoneyPtr("0.125"),
			Payments: map[takings.PaymentMethod]decimal.Decimal{
				takings.EFTPOS:    testutil.Money("4.004"),
				takings.TotalCash: testutil.Money("2.006"),
			},
		})
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, rec))

		loaded, err := s.Load(ctx, day)
		require.NoError(t, err)
		got := loaded.Takings()
		assert.True(t, got.TillRead.Equal(testutil.Money("10.01")), "till read %s", got.TillRead)
		assert.True(t, got.PointsRedeemed.Equal(testutil.Money("0.13")), "points redeemed %s", got.PointsRedeemed)
		assert.True(t, got.Payments[takings.EFTPOS].Equal(testutil.Money("4.00")), "eftpos %s", got.Payments[takings.EFTPOS])
		assert.True(t, got.Payments[takings.TotalCash].Equal(testutil.Money("2.01")), "total cash %s", got.Payments[takings.TotalCash])
		assert.Equal(t, "4.00", got.Variance.StringFixed(2))
	})

	t.Run("SaveOverwritesOpen", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		day := testutil.Date(2023, time.August, 30)
		rec := openRecord(t, day)
		require.NoError(t, s.Save(ctx, rec))

		updated, err := rec.Reconcile(takings.Fields{TillRead: testutil.MoneyPtr("2600.00")})
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, updated))

		loaded, err := s.Load(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, "150.00", loaded.Takings().Variance.StringFixed(2))
	})

	t.Run("SettledIsImmutable", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		day := testutil.Date(2023, time.August, 29)
		rec := openRecord(t, day)
		settlement, err := rec.Settle(takings.DefaultPolicy(), settledAt)
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, settlement.Record))

		loaded, err := s.Load(ctx, day)
		require.NoError(t, err)
		require.True(t, takings.IsSettled(loaded))
		assert.True(t, loaded.(takings.SettledRecord).SettledAt().Equal(settledAt))

		err = s.Save(ctx, rec)
		assert.True(t, errors.Is(err, domainerr.ErrRecordSettled), "expected RecordSettled, got %v", err)

		again, err := s.Load(ctx, day)
		require.NoError(t, err)
		assert.True(t, takings.IsSettled(again))
	})

	t.Run("ListRange", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, d := range []int{31, 3, 17} {
			require.NoError(t, s.Save(ctx, openRecord(t, testutil.Date(2023, time.August, d))))
		}
		require.NoError(t, s.Save(ctx, openRecord(t, testutil.Date(2023, time.September, 1))))

		recs, err := s.ListRange(ctx, testutil.Date(2023, time.August, 1), testutil.Date(2023, time.August, 31))
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, 3, recs[0].Date().Day())
		assert.Equal(t, 17, recs[1].Date().Day())
		assert.Equal(t, 31, recs[2].Date().Day())
	})

	t.Run("CancelledContext", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Load(ctx, testutil.Date(2023, time.August, 1))
		assert.Error(t, err)
	})
}
