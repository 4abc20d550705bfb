// Package datasource fetches historical candle data from market data
// providers and normalizes it into domain bars.
package datasource

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
)

// BarSource fetches candles for one coin over a time range. Implementations
// return bars sorted by timestamp with duplicates removed.
type BarSource interface {
	// Bars returns the candles for coin at the given interval between
	// start and end (inclusive start, exclusive end).
	Bars(ctx context.Context, coin, interval string, start, end time.Time) ([]domain.Bar, error)
}

// intervalDurations maps the supported candle intervals to their length.
// The 1M entry approximates a month as 30 days for paging arithmetic.
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
	"1M":  30 * 24 * time.Hour,
}

// IntervalDuration returns the length of one candle at the given interval.
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervalDurations[interval]
	if !ok {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	return d, nil
}

// Intervals returns the supported interval names, shortest first.
func Intervals() []string {
	out := make([]string, 0, len(intervalDurations))
	for k := range intervalDurations {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return intervalDurations[out[i]] < intervalDurations[out[j]]
	})
	return out
}

// Normalize sorts bars by timestamp, drops duplicates (first occurrence
// wins), and rejects candles with non-positive prices or inverted high/low.
func Normalize(bars []domain.Bar) ([]domain.Bar, error) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	out := bars[:0]
	var last time.Time
	for _, b := range bars {
		if !last.IsZero() && !b.Timestamp.After(last) {
			continue
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return nil, fmt.Errorf("non-positive price in candle at %s", b.Timestamp.Format(time.RFC3339))
		}
		if b.High < b.Low {
			return nil, fmt.Errorf("high below low in candle at %s", b.Timestamp.Format(time.RFC3339))
		}
		out = append(out, b)
		last = b.Timestamp
	}
	return out, nil
}
