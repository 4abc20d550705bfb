// Command backtest-server serves the backtest HTTP API: run backtests over
// venue or synthetic data, list strategies and assets, and browse persisted
// runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/config"
	"github.com/cktong/crypto-backtest-engine/internal/datasource"
	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/engine"
	"github.com/cktong/crypto-backtest-engine/internal/httpapi"
	"github.com/cktong/crypto-backtest-engine/internal/store"
	"github.com/cktong/crypto-backtest-engine/internal/strategy/builtins"
	"github.com/cktong/crypto-backtest-engine/internal/util"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("BACKTEST_CONFIG"), "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening run store %s: %v", cfg.Storage.SQLitePath, err)
	}
	defer runs.Close()

	sources := map[domain.Venue]datasource.BarSource{
		domain.VenueHyperliquid: datasource.NewHyperliquid(datasource.HyperliquidOpts{
			BaseURL:         cfg.Hyperliquid.BaseURL,
			RateLimitPerMin: cfg.Hyperliquid.RateLimitPerMin,
			MaxAttempts:     cfg.Hyperliquid.MaxAttempts,
			Logger:          logger,
		}),
		domain.VenueSynthetic: datasource.NewSynthetic(time.Now().UnixNano()),
	}
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != "" {
		sources[domain.VenueAlpaca] = datasource.NewAlpaca(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, logger)
	} else {
		logger.Info("alpaca credentials not set, venue disabled")
	}

	registry := builtins.NewRegistry()
	api := httpapi.NewServer(engine.NewBacktester(registry, logger), registry, sources, runs, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	}()

	logger.Info("backtest server listening", "addr", addr, "strategies", registry.List())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
	logger.Info("backtest server stopped")
}
