package httpapi

import (
	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/perf"
	"github.com/cktong/crypto-backtest-engine/internal/store"
	"github.com/cktong/crypto-backtest-engine/internal/strategy"
)

// BacktestRequest is the body of POST /api/backtest.
type BacktestRequest struct {
	Coin     string `json:"coin"`
	Venue    string `json:"venue"`    // hyperliquid | alpaca | synthetic
	Interval string `json:"interval"` // 1m … 1M
	Days     int    `json:"days"`     // lookback window from now

	Strategy string          `json:"strategy"`
	Params   strategy.Params `json:"params,omitempty"`

	InitialCapital   float64 `json:"initial_capital,omitempty"`
	CommissionRate   float64 `json:"commission_rate,omitempty"`
	PositionFraction float64 `json:"position_fraction,omitempty"`
	Annualization    int     `json:"annualization,omitempty"`
}

// BacktestResponse is the result of a run, with the persisted run ID when a
// run store is configured.
type BacktestResponse struct {
	RunID       int64                `json:"run_id,omitempty"`
	Bars        int                  `json:"bars"`
	Report      perf.Report          `json:"report"`
	Trades      []domain.TradeRecord `json:"trades"`
	EquityCurve []domain.EquityPoint `json:"equity_curve"`
}

// StrategiesResponse lists the registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// RunsResponse lists persisted runs.
type RunsResponse struct {
	Runs []store.Run `json:"runs"`
}

// TradesResponse is the trade ledger of one persisted run.
type TradesResponse struct {
	RunID  int64                `json:"run_id"`
	Trades []domain.TradeRecord `json:"trades"`
}
