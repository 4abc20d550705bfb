// Package perf computes summary statistics for a completed backtest run from
// its trade log and equity curve.
package perf

import (
	"encoding/json"
	"math"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
)

// ProfitFactor is a float64 whose JSON encoding maps +Inf to null, since
// JSON has no infinity literal.
type ProfitFactor float64

// MarshalJSON encodes +Inf as null.
func (p ProfitFactor) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(p), 1) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(p))
}

// UnmarshalJSON decodes null back to +Inf.
func (p *ProfitFactor) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = ProfitFactor(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*p = ProfitFactor(f)
	return nil
}

// Report summarizes a single run. Percentages are expressed as percent, not
// fractions (12.5 means 12.5%).
type Report struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturnPct float64 `json:"total_return_pct"`

	TotalTrades   int     `json:"total_trades"`
	LongTrades    int     `json:"long_trades"`
	ShortTrades   int     `json:"short_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRatePct    float64 `json:"win_rate_pct"`

	// ProfitFactor is gross profit over gross loss. It is +Inf when there
	// are winners and no losers, and 0 when there are no closed trades.
	ProfitFactor ProfitFactor `json:"profit_factor"`
	AvgTrade     float64      `json:"avg_trade"`
	AvgWin       float64      `json:"avg_win"`
	AvgLoss      float64      `json:"avg_loss"`

	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	TotalCommission float64 `json:"total_commission"`
}

// Compute builds a Report from the trade log and equity curve of a run. A
// trade here means a closed round trip: an entry matched with its exit.
// annualization is the periods-per-year factor for the Sharpe ratio.
//
// An empty equity curve (a run too short to trade) yields a degenerate
// report with final equity equal to the starting capital.
func Compute(trades []domain.TradeRecord, equity []domain.EquityPoint, initialCapital float64, annualization int) Report {
	r := Report{
		InitialCapital: initialCapital,
		FinalEquity:    initialCapital,
	}

	if len(equity) > 0 {
		r.FinalEquity = equity[len(equity)-1].Equity
	}
	r.TotalPnL = r.FinalEquity - r.InitialCapital
	if r.InitialCapital != 0 {
		r.TotalReturnPct = r.TotalPnL / r.InitialCapital * 100
	}

	var grossProfit, grossLoss, sumRealized float64
	for _, t := range trades {
		r.TotalCommission += t.Commission
		if !t.Action.Closing() || t.RealizedPnL == nil {
			continue
		}
		pnl := *t.RealizedPnL
		r.TotalTrades++
		sumRealized += pnl

		switch t.Action {
		case domain.TradeSell:
			r.LongTrades++
		case domain.TradeCover:
			r.ShortTrades++
		}

		switch {
		case pnl > 0:
			r.WinningTrades++
			grossProfit += pnl
		case pnl < 0:
			r.LosingTrades++
			grossLoss += -pnl
		}
	}

	if r.TotalTrades > 0 {
		r.WinRatePct = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
		r.AvgTrade = sumRealized / float64(r.TotalTrades)
	}
	if r.WinningTrades > 0 {
		r.AvgWin = grossProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AvgLoss = -grossLoss / float64(r.LosingTrades)
	}

	switch {
	case grossLoss > 0:
		r.ProfitFactor = ProfitFactor(grossProfit / grossLoss)
	case grossProfit > 0:
		r.ProfitFactor = ProfitFactor(math.Inf(1))
	}

	r.MaxDrawdownPct = maxDrawdownPct(equity)
	r.SharpeRatio = sharpe(equity, annualization)
	return r
}

// maxDrawdownPct returns the largest peak-to-trough decline of the equity
// curve, as a positive percentage of the peak.
func maxDrawdownPct(equity []domain.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

// sharpe returns the annualized Sharpe ratio of the equity curve's
// bar-to-bar returns, assuming a zero risk-free rate. It is zero when there
// are fewer than two samples or when the returns have no variance.
func sharpe(equity []domain.EquityPoint, annualization int) float64 {
	if len(equity) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			return 0
		}
		returns = append(returns, equity[i].Equity/prev-1)
	}

	var sum float64
	for _, x := range returns {
		sum += x
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, x := range returns {
		d := x - mean
		sq += d * d
	}
	// Sample standard deviation.
	if len(returns) < 2 {
		return 0
	}
	std := math.Sqrt(sq / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(float64(annualization))
}
