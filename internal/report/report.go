// Package report renders backtest results for humans and for export. All
// writers are pure consumers of the run output; nothing here mutates or
// recomputes results.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/perf"
)

// printer groups large numbers (1,234,567.89) for terminal output.
var printer = message.NewPrinter(language.English)

// WriteSummary renders a run report as a readable text block.
func WriteSummary(w io.Writer, title string, r perf.Report) error {
	line := func(format string, args ...any) error {
		_, err := printer.Fprintf(w, format+"\n", args...)
		return err
	}

	if err := line("=== %s ===", title); err != nil {
		return err
	}
	if err := line("Initial capital:   %12.2f", r.InitialCapital); err != nil {
		return err
	}
	if err := line("Final equity:      %12.2f", r.FinalEquity); err != nil {
		return err
	}
	if err := line("Total P&L:         %12.2f (%.2f%%)", r.TotalPnL, r.TotalReturnPct); err != nil {
		return err
	}
	if err := line("Trades:            %6d (%d long / %d short)", r.TotalTrades, r.LongTrades, r.ShortTrades); err != nil {
		return err
	}
	if err := line("Win rate:          %10.2f%% (%d W / %d L)", r.WinRatePct, r.WinningTrades, r.LosingTrades); err != nil {
		return err
	}
	if err := line("Profit factor:     %12s", formatProfitFactor(r.ProfitFactor)); err != nil {
		return err
	}
	if err := line("Avg trade:         %12.2f (win %.2f / loss %.2f)", r.AvgTrade, r.AvgWin, r.AvgLoss); err != nil {
		return err
	}
	if err := line("Max drawdown:      %10.2f%%", r.MaxDrawdownPct); err != nil {
		return err
	}
	if err := line("Sharpe ratio:      %12.2f", r.SharpeRatio); err != nil {
		return err
	}
	return line("Commission paid:   %12.2f", r.TotalCommission)
}

func formatProfitFactor(pf perf.ProfitFactor) string {
	if math.IsInf(float64(pf), 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", float64(pf))
}

// ---------------------------------------------------------------------------
// CSV export
// ---------------------------------------------------------------------------

// WriteTradesCSV writes the trade ledger as CSV with a header row.
func WriteTradesCSV(w io.Writer, trades []domain.TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "timestamp", "action", "price", "qty", "commission", "realized_pnl"}); err != nil {
		return err
	}
	for _, t := range trades {
		realized := ""
		if t.RealizedPnL != nil {
			realized = strconv.FormatFloat(*t.RealizedPnL, 'f', -1, 64)
		}
		row := []string{
			strconv.Itoa(t.Index),
			t.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			string(t.Action),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			strconv.FormatFloat(t.Qty, 'f', -1, 64),
			strconv.FormatFloat(t.Commission, 'f', -1, 64),
			realized,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the equity curve as CSV with a header row.
func WriteEquityCSV(w io.Writer, curve []domain.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "timestamp", "equity"}); err != nil {
		return err
	}
	for _, p := range curve {
		row := []string{
			strconv.Itoa(p.Index),
			p.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			strconv.FormatFloat(p.Equity, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ---------------------------------------------------------------------------
// Multi-asset comparison
// ---------------------------------------------------------------------------

// ComparisonRow is one asset's result in a comparison table.
type ComparisonRow struct {
	Asset  string
	Report perf.Report
}

// WriteComparison renders one line per asset, sorted as given.
func WriteComparison(w io.Writer, strategy string, rows []ComparisonRow) error {
	if _, err := printer.Fprintf(w, "=== Strategy comparison: %s ===\n", strategy); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%-8s %12s %10s %8s %10s %10s %8s\n",
		"ASSET", "FINAL", "RETURN%", "TRADES", "WINRATE%", "MAXDD%", "SHARPE"); err != nil {
		return err
	}
	for _, row := range rows {
		r := row.Report
		if _, err := printer.Fprintf(w, "%-8s %12.2f %10.2f %8d %10.2f %10.2f %8.2f\n",
			row.Asset, r.FinalEquity, r.TotalReturnPct, r.TotalTrades,
			r.WinRatePct, r.MaxDrawdownPct, r.SharpeRatio); err != nil {
			return err
		}
	}
	return nil
}
