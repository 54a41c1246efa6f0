// Package memory provides an in-process takings.Store for tests and for
// running without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iwvelando/end-of-trade/internal/takings"
	"github.com/iwvelando/end-of-trade/pkg/constants"
	"github.com/iwvelando/end-of-trade/pkg/datetime"
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
)

// Store keeps records in a map keyed by trading date.
type Store struct {
	mu      sync.RWMutex
	records map[string]takings.Record
}

// New returns an empty store.
func New() *Store {
	return &Store{records: make(map[string]takings.Record)}
}

// Load returns the record for date or takings.ErrNotFound.
func (s *Store) Load(ctx context.Context, date time.Time) (takings.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key(date)]
	if !ok {
		return nil, takings.ErrNotFound
	}
	return rec, nil
}

// Save stores rec, refusing to replace a settled record.
func (s *Store) Save(ctx context.Context, rec takings.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(rec.Date())
	if existing, ok := s.records[k]; ok && takings.IsSettled(existing) {
		return domainerr.Newf(domainerr.CodeRecordSettled, "date", "takings for %s are settled", k)
	}
	s.records[k] = rec
	return nil
}

// ListRange returns records dated from..to inclusive, ordered by date.
func (s *Store) ListRange(ctx context.Context, from, to time.Time) ([]takings.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, hi := key(from), key(to)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []takings.Record
	for k, rec := range s.records {
		if k >= lo && k <= hi {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date().Before(out[j].Date()) })
	return out, nil
}

func key(date time.Time) string {
	return datetime.Day(date).Format(constants.DateLayout)
}
