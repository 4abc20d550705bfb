package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at      TEXT NOT NULL,
	coin            TEXT NOT NULL,
	venue           TEXT NOT NULL,
	interval        TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	params          TEXT NOT NULL DEFAULT '{}',
	report          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id          INTEGER NOT NULL REFERENCES runs(id),
	seq             INTEGER NOT NULL,
	bar_index       INTEGER NOT NULL,
	timestamp       TEXT NOT NULL,
	action          TEXT NOT NULL,
	price           REAL NOT NULL,
	qty             REAL NOT NULL,
	commission      REAL NOT NULL,
	realized_pnl    REAL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts the run and its trade ledger in one transaction and
// returns the new run ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, trades []domain.TradeRecord) (int64, error) {
	report, err := json.Marshal(run.Report)
	if err != nil {
		return 0, err
	}
	if run.Params == "" {
		run.Params = "{}"
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (created_at, coin, venue, interval, strategy, params, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.CreatedAt.Format(time.RFC3339Nano), run.Coin, run.Venue, run.Interval,
		run.Strategy, run.Params, string(report))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trades (run_id, seq, bar_index, timestamp, action, price, qty, commission, realized_pnl)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for seq, t := range trades {
		var realized any
		if t.RealizedPnL != nil {
			realized = *t.RealizedPnL
		}
		if _, err := stmt.ExecContext(ctx, id, seq, t.Index,
			t.Timestamp.UTC().Format(time.RFC3339Nano), string(t.Action),
			t.Price, t.Qty, t.Commission, realized); err != nil {
			return 0, fmt.Errorf("insert trade %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

// GetRun retrieves a run by ID. A missing run returns sql.ErrNoRows.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, coin, venue, interval, strategy, params, report
		 FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, coin, venue, interval, strategy, params, report
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ListTrades returns the trade ledger of a run in execution order.
func (s *SQLiteStore) ListTrades(ctx context.Context, runID int64) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bar_index, timestamp, action, price, qty, commission, realized_pnl
		 FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var (
			t        domain.TradeRecord
			tsText   string
			action   string
			realized sql.NullFloat64
		)
		if err := rows.Scan(&t.Index, &tsText, &action, &t.Price, &t.Qty, &t.Commission, &realized); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, tsText)
		if err != nil {
			return nil, fmt.Errorf("parse trade timestamp %q: %w", tsText, err)
		}
		t.Timestamp = ts
		t.Action = domain.TradeAction(action)
		if realized.Valid {
			v := realized.Float64
			t.RealizedPnL = &v
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r       Run
		created string
		report  string
	)
	if err := row.Scan(&r.ID, &created, &r.Coin, &r.Venue, &r.Interval, &r.Strategy, &r.Params, &report); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse run created_at %q: %w", created, err)
	}
	r.CreatedAt = ts
	if err := json.Unmarshal([]byte(report), &r.Report); err != nil {
		return nil, fmt.Errorf("decode run report: %w", err)
	}
	return &r, nil
}
