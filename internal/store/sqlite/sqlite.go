/*
Package sqlite provides a SQLite-backed implementation of takings.Store.

Each trading date is one row of daily_takings. Float sections are stored as
JSON denomination->count maps, money as fixed-point decimal text.

Settled rows are immutable at the SQL level: the upsert only updates rows
whose settled flag is still 0, and Save reports RecordSettled when the
update was suppressed.

Usage:

	store, err := sqlite.New("./end-of-trade.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ledger := takings.NewLedger(store, logger)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/end-of-trade/internal/takings"
	"github.com/iwvelando/end-of-trade/pkg/constants"
	"github.com/iwvelando/end-of-trade/pkg/datetime"
	"github.com/iwvelando/end-of-trade/pkg/denomination"
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
	"github.com/iwvelando/end-of-trade/pkg/inventory"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements takings.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_takings (
		date TEXT PRIMARY KEY,
		till_read TEXT,
		payments_json TEXT NOT NULL DEFAULT '{}',
		points_redeemed TEXT,
		customer_count INTEGER,
		safe_float_open TEXT,
		safe_float_close TEXT,
		till_float_open TEXT,
		till_float_close_before_makeup TEXT,
		till_float_makeup TEXT,
		variance TEXT,
		settled INTEGER NOT NULL DEFAULT 0,
		settled_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_daily_takings_settled
		ON daily_takings(settled, date);
	`
	_, err := s.db.Exec(schema)
	return err
}

const selectColumns = `date, till_read, payments_json, points_redeemed, customer_count,
	safe_float_open, safe_float_close, till_float_open, till_float_close_before_makeup, till_float_makeup,
	variance, settled_at`

// Load returns the record for date or takings.ErrNotFound.
func (s *Store) Load(ctx context.Context, date time.Time) (takings.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM daily_takings WHERE date = ?`, dateKey(date))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, takings.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Save upserts rec. A row that is already settled is never modified.
func (s *Store) Save(ctx context.Context, rec takings.Record) error {
	t := rec.Takings()

	payments := make(map[string]string, len(t.Payments))
	for m, v := range t.Payments {
		payments[string(m)] = v.StringFixed(2)
	}
	paymentsJSON, err := json.Marshal(payments)
	if err != nil {
		return fmt.Errorf("failed to encode payments: %w", err)
	}

	floats := make([]sql.NullString, 0, len(takings.Sections()))
	for _, section := range takings.Sections() {
		encoded, err := encodeInventory(t.Floats, section)
		if err != nil {
			return err
		}
		floats = append(floats, encoded)
	}

	settled := 0
	var settledAt sql.NullString
	if sr, ok := rec.(takings.SettledRecord); ok {
		settled = 1
		settledAt = sql.NullString{String: sr.SettledAt().Format(time.RFC3339Nano), Valid: true}
	}

	var customerCount sql.NullInt64
	if t.CustomerCount != nil {
		customerCount = sql.NullInt64{Int64: *t.CustomerCount, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
	INSERT INTO daily_takings (
		date, till_read, payments_json, points_redeemed, customer_count,
		safe_float_open, safe_float_close, till_float_open, till_float_close_before_makeup, till_float_makeup,
		variance, settled, settled_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(date) DO UPDATE SET
		till_read = excluded.till_read,
		payments_json = excluded.payments_json,
		points_redeemed = excluded.points_redeemed,
		customer_count = excluded.customer_count,
		safe_float_open = excluded.safe_float_open,
		safe_float_close = excluded.safe_float_close,
		till_float_open = excluded.till_float_open,
		till_float_close_before_makeup = excluded.till_float_close_before_makeup,
		till_float_makeup = excluded.till_float_makeup,
		variance = excluded.variance,
		settled = excluded.settled,
		settled_at = excluded.settled_at,
		updated_at = excluded.updated_at
	WHERE daily_takings.settled = 0`,
		dateKey(rec.Date()),
		nullDecimal(t.TillRead),
		string(paymentsJSON),
		nullDecimal(t.PointsRedeemed),
		customerCount,
		floats[0], floats[1], floats[2], floats[3], floats[4],
		nullDecimal(t.Variance),
		settled,
		settledAt,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save takings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domainerr.Newf(domainerr.CodeRecordSettled, "date", "takings for %s are settled", dateKey(rec.Date()))
	}
	return nil
}

// ListRange returns records dated from..to inclusive, ordered by date.
func (s *Store) ListRange(ctx context.Context, from, to time.Time) ([]takings.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM daily_takings WHERE date >= ? AND date <= ? ORDER BY date`,
		dateKey(from), dateKey(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query takings: %w", err)
	}
	defer rows.Close()

	var out []takings.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (takings.Record, error) {
	var (
		date           string
		tillRead       sql.NullString
		paymentsJSON   string
		pointsRedeemed sql.NullString
		customerCount  sql.NullInt64
		floatCols      [5]sql.NullString
		variance       sql.NullString
		settledAt      sql.NullString
	)
	if err := row.Scan(&date, &tillRead, &paymentsJSON, &pointsRedeemed, &customerCount,
		&floatCols[0], &floatCols[1], &floatCols[2], &floatCols[3], &floatCols[4],
		&variance, &settledAt); err != nil {
		return nil, err
	}

	day, err := time.Parse(constants.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}

	t := takings.Takings{
		Date:     day,
		Payments: make(map[takings.PaymentMethod]decimal.Decimal),
		Floats:   make(map[takings.Section]inventory.Inventory),
	}
	if t.TillRead, err = parseNullDecimal(tillRead); err != nil {
		return nil, err
	}
	if t.PointsRedeemed, err = parseNullDecimal(pointsRedeemed); err != nil {
		return nil, err
	}
	if t.Variance, err = parseNullDecimal(variance); err != nil {
		return nil, err
	}
	if customerCount.Valid {
		v := customerCount.Int64
		t.CustomerCount = &v
	}

	var payments map[string]string
	if err := json.Unmarshal([]byte(paymentsJSON), &payments); err != nil {
		return nil, fmt.Errorf("invalid stored payments for %s: %w", date, err)
	}
	for m, raw := range payments {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored payment %s for %s: %w", m, date, err)
		}
		t.Payments[takings.PaymentMethod(m)] = v
	}

	for i, section := range takings.Sections() {
		if !floatCols[i].Valid {
			continue
		}
		var counts map[string]int64
		if err := json.Unmarshal([]byte(floatCols[i].String), &counts); err != nil {
			return nil, fmt.Errorf("invalid stored %s for %s: %w", section, date, err)
		}
		inv, err := inventory.FromStrings(counts)
		if err != nil {
			return nil, fmt.Errorf("invalid stored %s for %s: %w", section, date, err)
		}
		t.Floats[section] = inv
	}

	var at *time.Time
	if settledAt.Valid {
		parsed, err := time.Parse(time.RFC3339Nano, settledAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid settled_at for %s: %w", date, err)
		}
		at = &parsed
	}
	return takings.Restore(t, at), nil
}

func encodeInventory(floats map[takings.Section]inventory.Inventory, section takings.Section) (sql.NullString, error) {
	inv, ok := floats[section]
	if !ok {
		return sql.NullString{}, nil
	}
	counts := make(map[string]int64, len(denomination.Keys()))
	for _, key := range denomination.Keys() {
		counts[string(key)] = inv[key]
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode %s: %w", section, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullDecimal(v *decimal.Decimal) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.StringFixed(2), Valid: true}
}

func parseNullDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", v.String, err)
	}
	return &d, nil
}

func dateKey(date time.Time) string {
	return datetime.Day(date).Format(constants.DateLayout)
}
