// Package store persists candle data and completed backtest runs. Candles
// live in Parquet files on disk; runs and their trade ledgers live in SQLite.
package store

import (
	"context"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/perf"
)

// BarStore caches OHLCV candle data per venue, interval, and coin.
type BarStore interface {
	// WriteBars persists a batch of bars fetched from the given venue at
	// the given interval, merging with any cached data.
	WriteBars(ctx context.Context, venue domain.Venue, interval string, bars []domain.Bar) error

	// ReadBars returns cached bars for the coin within [start, end).
	ReadBars(ctx context.Context, venue domain.Venue, interval, coin string, start, end time.Time) ([]domain.Bar, error)

	// ListCoins returns all coins with cached data for the venue and
	// interval.
	ListCoins(ctx context.Context, venue domain.Venue, interval string) ([]string, error)
}

// Run is a completed backtest run as persisted.
type Run struct {
	ID        int64       `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Coin      string      `json:"coin"`
	Venue     string      `json:"venue"`
	Interval  string      `json:"interval"`
	Strategy  string      `json:"strategy"`
	Params    string      `json:"params"` // JSON-encoded strategy params
	Report    perf.Report `json:"report"`
}

// RunStore persists completed runs and their trade ledgers.
type RunStore interface {
	// SaveRun inserts the run and its trades, returning the run ID.
	SaveRun(ctx context.Context, run *Run, trades []domain.TradeRecord) (int64, error)

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id int64) (*Run, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// ListTrades returns the trade ledger of a run in execution order.
	ListTrades(ctx context.Context, runID int64) ([]domain.TradeRecord, error)
}
