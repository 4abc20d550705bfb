package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cktong/crypto-backtest-engine/internal/strategy"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the backtest engine.
type Config struct {
	Storage     Storage     `yaml:"storage"`
	Server      Server      `yaml:"server"`
	Hyperliquid Hyperliquid `yaml:"hyperliquid"`
	Alpaca      Alpaca      `yaml:"alpaca"`
	Logging     Logging     `yaml:"logging"`
	Backtest    Backtest    `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration for the API server.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Hyperliquid configures the public candle endpoint.
type Hyperliquid struct {
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxAttempts     int    `yaml:"max_attempts"`
}

// Alpaca holds credentials for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backtest holds the default run parameters. CLI flags take precedence over
// these values.
type Backtest struct {
	Coin             string          `yaml:"coin"`
	Venue            string          `yaml:"venue"`
	Interval         string          `yaml:"interval"`
	Days             int             `yaml:"days"`
	Strategy         string          `yaml:"strategy"`
	Params           strategy.Params `yaml:"params"`
	InitialCapital   float64         `yaml:"initial_capital"`
	CommissionRate   float64         `yaml:"commission_rate"`
	PositionFraction float64         `yaml:"position_fraction"`
	Annualization    int             `yaml:"annualization"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/backtest.db",
		},
		Server: Server{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Hyperliquid: Hyperliquid{
			BaseURL:         "https://api.hyperliquid.xyz",
			RateLimitPerMin: 60,
			MaxAttempts:     3,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Backtest: Backtest{
			Coin:             "BTC",
			Venue:            "hyperliquid",
			Interval:         "1d",
			Days:             365,
			Strategy:         "sma_crossover",
			InitialCapital:   10_000,
			CommissionRate:   0.001,
			PositionFraction: 0.95,
			Annualization:    252,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault loads the file when path is non-empty, and otherwise returns
// the defaults with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("HYPERLIQUID_URL"); v != "" {
		cfg.Hyperliquid.BaseURL = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
