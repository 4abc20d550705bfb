// Command backtest runs one or more strategy backtests from the command
// line, printing a performance summary and optionally exporting the trade
// ledger and equity curve as CSV.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/assets"
	"github.com/cktong/crypto-backtest-engine/internal/config"
	"github.com/cktong/crypto-backtest-engine/internal/datasource"
	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/engine"
	"github.com/cktong/crypto-backtest-engine/internal/report"
	"github.com/cktong/crypto-backtest-engine/internal/store"
	"github.com/cktong/crypto-backtest-engine/internal/strategy"
	"github.com/cktong/crypto-backtest-engine/internal/strategy/builtins"
	"github.com/cktong/crypto-backtest-engine/internal/util"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "path to YAML config (optional)")
		coin       = flag.String("coin", "", "coin symbol, e.g. BTC")
		venue      = flag.String("venue", "", "data venue: hyperliquid, alpaca, synthetic")
		interval   = flag.String("interval", "", "candle interval, e.g. 1h, 1d")
		days       = flag.Int("days", 0, "lookback window in days")
		strat      = flag.String("strategy", "", "strategy name (see -list)")
		paramsJSON = flag.String("params", "", "strategy params as JSON, e.g. '{\"fast_period\":10}'")
		capital    = flag.Float64("capital", 0, "initial capital")
		commission = flag.Float64("commission", 0, "commission rate per side")
		fraction   = flag.Float64("fraction", 0, "fraction of equity per entry")
		compare    = flag.String("compare", "", "comma-separated coins to compare, e.g. BTC,ETH,SOL")
		tradesCSV  = flag.String("trades-csv", "", "write the trade ledger to this CSV file")
		equityCSV  = flag.String("equity-csv", "", "write the equity curve to this CSV file")
		save       = flag.Bool("save", false, "persist the run to the SQLite run store")
		noCache    = flag.Bool("no-cache", false, "bypass the local Parquet candle cache")
		list       = flag.Bool("list", false, "list available strategies and exit")
	)
	flag.Parse()

	registry := builtins.NewRegistry()
	if *list {
		for _, name := range registry.List() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg, *coin, *venue, *interval, *days, *strat, *capital, *commission, *fraction)

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	params := cfg.Backtest.Params
	if *paramsJSON != "" {
		params = strategy.Params{}
		if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
			log.Fatalf("invalid -params: %v", err)
		}
	}

	if asset, ok := assets.Lookup(cfg.Backtest.Coin); ok {
		if v := domain.Venue(cfg.Backtest.Venue); v != domain.VenueSynthetic && !asset.TradesOn(v) {
			log.Fatalf("%s is not available on %s", asset.Symbol, v)
		}
		if err := asset.Validate(cfg.Backtest.InitialCapital); err != nil {
			log.Fatalf("invalid run: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loader, err := newBarLoader(cfg, *noCache, logger)
	if err != nil {
		log.Fatalf("setting up data source: %v", err)
	}
	bt := engine.NewBacktester(registry, logger)

	if *compare != "" {
		runComparison(ctx, bt, loader, cfg, strings.Split(*compare, ","), params)
		return
	}

	series, err := loader.load(ctx, cfg.Backtest.Coin)
	if err != nil {
		log.Fatalf("loading bars: %v", err)
	}

	result, err := bt.Run(ctx, requestFor(cfg, params, series))
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	title := fmt.Sprintf("%s %s %s (%d bars)", cfg.Backtest.Coin, cfg.Backtest.Interval, cfg.Backtest.Strategy, len(series))
	if err := report.WriteSummary(os.Stdout, title, result.Report); err != nil {
		log.Fatalf("rendering report: %v", err)
	}

	if *tradesCSV != "" {
		if err := writeFile(*tradesCSV, func(f *os.File) error {
			return report.WriteTradesCSV(f, result.Trades)
		}); err != nil {
			log.Fatalf("writing %s: %v", *tradesCSV, err)
		}
	}
	if *equityCSV != "" {
		if err := writeFile(*equityCSV, func(f *os.File) error {
			return report.WriteEquityCSV(f, result.EquityCurve)
		}); err != nil {
			log.Fatalf("writing %s: %v", *equityCSV, err)
		}
	}

	if *save {
		runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening run store: %v", err)
		}
		defer runs.Close()

		encoded, _ := json.Marshal(params)
		id, err := runs.SaveRun(ctx, &store.Run{
			Coin:     cfg.Backtest.Coin,
			Venue:    cfg.Backtest.Venue,
			Interval: cfg.Backtest.Interval,
			Strategy: cfg.Backtest.Strategy,
			Params:   string(encoded),
			Report:   result.Report,
		}, result.Trades)
		if err != nil {
			log.Fatalf("saving run: %v", err)
		}
		fmt.Printf("saved run %d to %s\n", id, cfg.Storage.SQLitePath)
	}
}

// applyFlags lets CLI flags override the config file.
func applyFlags(cfg *config.Config, coin, venue, interval string, days int, strat string, capital, commission, fraction float64) {
	if coin != "" {
		cfg.Backtest.Coin = strings.ToUpper(coin)
	}
	if venue != "" {
		cfg.Backtest.Venue = venue
	}
	if interval != "" {
		cfg.Backtest.Interval = interval
	}
	if days > 0 {
		cfg.Backtest.Days = days
	}
	if strat != "" {
		cfg.Backtest.Strategy = strat
	}
	if capital > 0 {
		cfg.Backtest.InitialCapital = capital
	}
	if commission > 0 {
		cfg.Backtest.CommissionRate = commission
	}
	if fraction > 0 {
		cfg.Backtest.PositionFraction = fraction
	}
}

func requestFor(cfg *config.Config, params strategy.Params, bars []domain.Bar) engine.Request {
	return engine.Request{
		Strategy:         cfg.Backtest.Strategy,
		Params:           params,
		Bars:             bars,
		InitialCapital:   cfg.Backtest.InitialCapital,
		CommissionRate:   cfg.Backtest.CommissionRate,
		PositionFraction: cfg.Backtest.PositionFraction,
		Annualization:    cfg.Backtest.Annualization,
	}
}

// barLoader resolves candles for a coin, serving from the local Parquet cache
// when it already covers the requested window and topping it up from the
// venue otherwise.
type barLoader struct {
	venue    domain.Venue
	interval string
	days     int
	cache    *store.ParquetStore // nil disables caching
	src      datasource.BarSource
	log      *slog.Logger
}

func newBarLoader(cfg *config.Config, noCache bool, logger *slog.Logger) (*barLoader, error) {
	src, err := sourceFor(cfg, domain.Venue(cfg.Backtest.Venue), logger)
	if err != nil {
		return nil, err
	}

	var cache *store.ParquetStore
	if !noCache && domain.Venue(cfg.Backtest.Venue) != domain.VenueSynthetic {
		cache = store.NewParquetStore(cfg.Storage.DataDir)
	}
	return &barLoader{
		venue:    domain.Venue(cfg.Backtest.Venue),
		interval: cfg.Backtest.Interval,
		days:     cfg.Backtest.Days,
		cache:    cache,
		src:      src,
		log:      logger,
	}, nil
}

func sourceFor(cfg *config.Config, venue domain.Venue, logger *slog.Logger) (datasource.BarSource, error) {
	switch venue {
	case domain.VenueHyperliquid:
		return datasource.NewHyperliquid(datasource.HyperliquidOpts{
			BaseURL:         cfg.Hyperliquid.BaseURL,
			RateLimitPerMin: cfg.Hyperliquid.RateLimitPerMin,
			MaxAttempts:     cfg.Hyperliquid.MaxAttempts,
			Logger:          logger,
		}), nil
	case domain.VenueAlpaca:
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, fmt.Errorf("alpaca venue requires api_key and api_secret")
		}
		return datasource.NewAlpaca(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, logger), nil
	case domain.VenueSynthetic:
		return datasource.NewSynthetic(time.Now().UnixNano()), nil
	default:
		return nil, fmt.Errorf("unknown venue %q", venue)
	}
}

func (l *barLoader) load(ctx context.Context, coin string) ([]domain.Bar, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -l.days)

	if l.cache == nil {
		return l.src.Bars(ctx, coin, l.interval, start, end)
	}

	cached, err := l.cache.ReadBars(ctx, l.venue, l.interval, coin, start, end)
	if err != nil {
		return nil, err
	}

	step, err := datasource.IntervalDuration(l.interval)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 && end.Sub(cached[len(cached)-1].Timestamp) < 2*step {
		l.log.Info("serving bars from cache", "coin", coin, "bars", len(cached))
		return cached, nil
	}

	fetchFrom := start
	if len(cached) > 0 {
		fetchFrom = cached[len(cached)-1].Timestamp.Add(step)
	}
	fresh, err := l.src.Bars(ctx, coin, l.interval, fetchFrom, end)
	if err != nil {
		if len(cached) > 0 {
			l.log.Warn("fetch failed, using stale cache", "coin", coin, "error", err)
			return cached, nil
		}
		return nil, err
	}
	if len(fresh) > 0 {
		if err := l.cache.WriteBars(ctx, l.venue, l.interval, fresh); err != nil {
			l.log.Warn("caching bars", "coin", coin, "error", err)
		}
	}
	merged, err := datasource.Normalize(append(cached, fresh...))
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// runComparison backtests the same strategy over several coins in parallel
// and renders one comparison table.
func runComparison(ctx context.Context, bt *engine.Backtester, loader *barLoader, cfg *config.Config, coins []string, params strategy.Params) {
	type outcome struct {
		row report.ComparisonRow
		err error
	}

	results := make([]outcome, len(coins))
	var wg sync.WaitGroup
	for i, c := range coins {
		wg.Add(1)
		go func(i int, coin string) {
			defer wg.Done()
			coin = strings.ToUpper(strings.TrimSpace(coin))

			series, err := loader.load(ctx, coin)
			if err != nil {
				results[i] = outcome{err: fmt.Errorf("%s: %w", coin, err)}
				return
			}
			res, err := bt.Run(ctx, requestFor(cfg, params, series))
			if err != nil {
				results[i] = outcome{err: fmt.Errorf("%s: %w", coin, err)}
				return
			}
			results[i] = outcome{row: report.ComparisonRow{Asset: coin, Report: res.Report}}
		}(i, c)
	}
	wg.Wait()

	var rows []report.ComparisonRow
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "skipping %v\n", r.err)
			continue
		}
		rows = append(rows, r.row)
	}
	if err := report.WriteComparison(os.Stdout, cfg.Backtest.Strategy, rows); err != nil {
		log.Fatalf("rendering comparison: %v", err)
	}
}
