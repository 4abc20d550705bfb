// Command fetch downloads historical candles from a venue into the local
// Parquet candle store, so later backtests can run without hitting the
// network.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/config"
	"github.com/cktong/crypto-backtest-engine/internal/datasource"
	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/store"
	"github.com/cktong/crypto-backtest-engine/internal/util"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to YAML config (optional)")
		coins    = flag.String("coins", "", "comma-separated coin symbols, e.g. BTC,ETH")
		venue    = flag.String("venue", "", "data venue: hyperliquid or alpaca")
		interval = flag.String("interval", "", "candle interval, e.g. 1h, 1d")
		days     = flag.Int("days", 0, "lookback window in days")
	)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *coins == "" {
		*coins = cfg.Backtest.Coin
	}
	if *venue == "" {
		*venue = cfg.Backtest.Venue
	}
	if *interval == "" {
		*interval = cfg.Backtest.Interval
	}
	if *days <= 0 {
		*days = cfg.Backtest.Days
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	src, err := buildSource(cfg, domain.Venue(*venue), logger)
	if err != nil {
		log.Fatalf("setting up data source: %v", err)
	}
	cache := store.NewParquetStore(cfg.Storage.DataDir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -*days)

	total := 0
	for _, coin := range strings.Split(*coins, ",") {
		coin = strings.ToUpper(strings.TrimSpace(coin))
		if coin == "" {
			continue
		}
		bars, err := src.Bars(ctx, coin, *interval, start, end)
		if err != nil {
			log.Fatalf("fetching %s: %v", coin, err)
		}
		if len(bars) == 0 {
			logger.Warn("no bars returned", "coin", coin, "interval", *interval)
			continue
		}
		if err := cache.WriteBars(ctx, domain.Venue(*venue), *interval, bars); err != nil {
			log.Fatalf("writing %s: %v", coin, err)
		}
		logger.Info("cached bars",
			"coin", coin,
			"interval", *interval,
			"bars", len(bars),
			"from", bars[0].Timestamp.Format(time.RFC3339),
			"to", bars[len(bars)-1].Timestamp.Format(time.RFC3339))
		total += len(bars)
	}

	fmt.Fprintf(os.Stdout, "cached %d bars under %s\n", total, cfg.Storage.DataDir)
}

func buildSource(cfg *config.Config, venue domain.Venue, logger *slog.Logger) (datasource.BarSource, error) {
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
	default:
		return nil, fmt.Errorf("cannot fetch from venue %q", venue)
	}
}
