package takings

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when no record exists for a date.
var ErrNotFound = errors.New("takings record not found")

// Store persists reconciliation records keyed by trading date.
//
// Save must refuse to overwrite a record that is already settled in the
// store, returning an error matching domainerr.ErrRecordSettled.
type Store interface {
	Load(ctx context.Context, date time.Time) (Record, error)
	Save(ctx context.Context, rec Record) error
	ListRange(ctx context.Context, from, to time.Time) ([]Record, error)
}
