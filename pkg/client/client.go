// Package client is a Go SDK for the backtest-server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BacktestRequest is the body of POST /api/backtest.
type BacktestRequest struct {
	Coin     string `json:"coin"`
	Venue    string `json:"venue,omitempty"`    // hyperliquid | alpaca | synthetic
	Interval string `json:"interval,omitempty"` // 1m … 1M
	Days     int    `json:"days,omitempty"`

	Strategy string         `json:"strategy"`
	Params   map[string]any `json:"params,omitempty"`

	InitialCapital   float64 `json:"initial_capital,omitempty"`
	CommissionRate   float64 `json:"commission_rate,omitempty"`
	PositionFraction float64 `json:"position_fraction,omitempty"`
	Annualization    int     `json:"annualization,omitempty"`
}

// Report is the performance summary of a run. Percentages are percent, not
// fractions. A null profit_factor means +Inf (no losing trades).
type Report struct {
	InitialCapital  float64  `json:"initial_capital"`
	FinalEquity     float64  `json:"final_equity"`
	TotalPnL        float64  `json:"total_pnl"`
	TotalReturnPct  float64  `json:"total_return_pct"`
	TotalTrades     int      `json:"total_trades"`
	LongTrades      int      `json:"long_trades"`
	ShortTrades     int      `json:"short_trades"`
	WinningTrades   int      `json:"winning_trades"`
	LosingTrades    int      `json:"losing_trades"`
	WinRatePct      float64  `json:"win_rate_pct"`
	ProfitFactor    *float64 `json:"profit_factor"`
	AvgTrade        float64  `json:"avg_trade"`
	AvgWin          float64  `json:"avg_win"`
	AvgLoss         float64  `json:"avg_loss"`
	MaxDrawdownPct  float64  `json:"max_drawdown_pct"`
	SharpeRatio     float64  `json:"sharpe_ratio"`
	TotalCommission float64  `json:"total_commission"`
}

// Trade is one entry in a run's trade ledger.
type Trade struct {
	Index       int       `json:"index"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"` // buy | sell | short | cover
	Price       float64   `json:"price"`
	Qty         float64   `json:"qty"`
	Commission  float64   `json:"commission"`
	RealizedPnL *float64  `json:"realized_pnl,omitempty"`
}

// EquityPoint is one sample of a run's equity curve.
type EquityPoint struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// BacktestResponse is the full result of a run.
type BacktestResponse struct {
	RunID       int64         `json:"run_id,omitempty"`
	Bars        int           `json:"bars"`
	Report      Report        `json:"report"`
	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
}

// Run is a persisted backtest run.
type Run struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Coin      string    `json:"coin"`
	Venue     string    `json:"venue"`
	Interval  string    `json:"interval"`
	Strategy  string    `json:"strategy"`
	Params    string    `json:"params"`
	Report    Report    `json:"report"`
}

// Client talks to a running backtest-server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Health reports whether the server is up.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.get(ctx, "/health", &out)
}

// Strategies returns the registered strategy names.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var out struct {
		Strategies []string `json:"strategies"`
	}
	if err := c.get(ctx, "/api/strategies", &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

// Backtest runs a backtest on the server and returns its full result.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	var out BacktestResponse
	if err := c.post(ctx, "/api/backtest", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Runs lists persisted runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]Run, error) {
	path := "/api/runs"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out struct {
		Runs []Run `json:"runs"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// Run retrieves one persisted run by ID.
func (c *Client) Run(ctx context.Context, runID int64) (*Run, error) {
	var out Run
	if err := c.get(ctx, fmt.Sprintf("/api/runs/%d", runID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunTrades returns the trade ledger of a persisted run.
func (c *Client) RunTrades(ctx context.Context, runID int64) ([]Trade, error) {
	var out struct {
		Trades []Trade `json:"trades"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/runs/%d/trades", runID), &out); err != nil {
		return nil, err
	}
	return out.Trades, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", req.Method, req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
