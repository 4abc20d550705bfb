package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore using Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// barRecord is the Parquet schema for candle data.
type barRecord struct {
	Coin      string  `parquet:"coin"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// WriteBars writes candles to Parquet files organized by coin and year.
// Each coin+year combination produces a separate file at:
//
//	<DataDir>/<venue>/<interval>/<COIN>/<YYYY>.parquet
//
// Existing files are merged; duplicates by timestamp prefer the new data.
func (s *ParquetStore) WriteBars(_ context.Context, venue domain.Venue, interval string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		coin string
		year int
	}
	groups := make(map[key][]barRecord)
	for _, b := range bars {
		k := key{coin: b.Coin, year: b.Timestamp.Year()}
		groups[k] = append(groups[k], barRecord{
			Coin:      b.Coin,
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	for k, records := range groups {
		path := s.barPath(venue, interval, k.coin, k.year)

		// Read existing records to merge.
		existing, _ := readParquetFile[barRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.coin, k.year, err)
		}
	}
	return nil
}

// ReadBars reads cached candles for the given coin and time range.
func (s *ParquetStore) ReadBars(_ context.Context, venue domain.Venue, interval, coin string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		path := s.barPath(venue, interval, coin, year)

		records, err := readParquetFile[barRecord](path)
		if err != nil {
			// No file for this year.
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if !ts.Before(start) && ts.Before(end) {
				bars = append(bars, domain.Bar{
					Coin:      r.Coin,
					Timestamp: ts,
					Open:      r.Open,
					High:      r.High,
					Low:       r.Low,
					Close:     r.Close,
					Volume:    r.Volume,
				})
			}
		}
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

// ListCoins lists all coins with cached data for the venue and interval.
func (s *ParquetStore) ListCoins(_ context.Context, venue domain.Venue, interval string) ([]string, error) {
	dir := filepath.Join(s.DataDir, string(venue), interval)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var coins []string
	for _, e := range entries {
		if e.IsDir() {
			coins = append(coins, e.Name())
		}
	}
	sort.Strings(coins)
	return coins, nil
}

// barPath returns the filesystem path for a candle Parquet file.
// Layout: <dataDir>/<venue>/<interval>/<COIN>/<YYYY>.parquet
func (s *ParquetStore) barPath(venue domain.Venue, interval, coin string, year int) string {
	return filepath.Join(s.DataDir, string(venue), interval, strings.ToUpper(coin), fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates records by (coin, timestamp), preferring new
// records over existing ones. Results are sorted by timestamp.
func mergeBarRecords(existing, incoming []barRecord) []barRecord {
	type key struct {
		coin string
		ts   int64
	}
	seen := make(map[key]barRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Coin, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Coin, r.Timestamp}] = r
	}

	merged := make([]barRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
