// Package engine runs rule-based strategies bar by bar over historical data,
// keeping the cash and position ledger and producing the trade log, equity
// curve, and performance report for each run.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/perf"
	"github.com/cktong/crypto-backtest-engine/internal/strategy"
)

// Defaults applied when the corresponding Request field is zero.
const (
	DefaultInitialCapital   = 10_000.0
	DefaultCommissionRate   = 0.001
	DefaultPositionFraction = 0.95
	DefaultAnnualization    = 252
)

// Request describes a single backtest run.
type Request struct {
	// Strategy is a name registered with the backtester's registry.
	Strategy string
	// Params are the strategy parameters. Unknown keys are an error.
	Params strategy.Params
	// Bars is the price series, oldest first, with strictly increasing
	// timestamps.
	Bars []domain.Bar

	// InitialCapital is the starting cash. Defaults to 10000.
	InitialCapital float64
	// CommissionRate is charged per side on the traded notional.
	// Defaults to 0.001 (10 bps).
	CommissionRate float64
	// PositionFraction is the fraction of equity committed per entry.
	// Defaults to 0.95.
	PositionFraction float64
	// Annualization is the periods-per-year factor used for the Sharpe
	// ratio. Defaults to 252.
	Annualization int
}

// Result holds everything a run produces.
type Result struct {
	Report      perf.Report          `json:"report"`
	Trades      []domain.TradeRecord `json:"trades"`
	EquityCurve []domain.EquityPoint `json:"equity_curve"`
}

// Backtester executes Requests against a strategy registry. It is safe for
// concurrent use; each run gets its own strategy instance and ledger.
type Backtester struct {
	registry *strategy.Registry
	log      *slog.Logger
}

// NewBacktester creates a Backtester using the given registry. A nil logger
// falls back to slog.Default.
func NewBacktester(registry *strategy.Registry, log *slog.Logger) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	return &Backtester{registry: registry, log: log}
}

// Run validates the request, replays the bars through the strategy, and
// computes the performance report.
//
// Decisions are made on each bar's close and filled at that same close. On a
// reversal the exit executes before the new entry, both at the same bar. Any
// position still open after the last bar is force-closed at the final close
// so the report never carries unrealized PnL.
func (bt *Backtester) Run(ctx context.Context, req Request) (*Result, error) {
	req = withDefaults(req)
	if err := validate(req); err != nil {
		return nil, err
	}

	strat, err := bt.registry.Create(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}
	if err := strat.Init(req.Bars); err != nil {
		return nil, fmt.Errorf("init strategy %s: %w", req.Strategy, err)
	}

	book := NewBook(req.InitialCapital, req.CommissionRate, req.PositionFraction, bt.log)
	bars := req.Bars

	start := strat.WarmUp()
	if start < 0 {
		start = 0
	}

	equity := make([]domain.EquityPoint, 0, max(len(bars)-start, 0))
	for i := start; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := bars[i]
		equity = append(equity, domain.EquityPoint{
			Index:     i,
			Timestamp: bar.Timestamp,
			Equity:    book.Equity(bar.Close),
		})

		switch strat.Decide(i, book.Position().Side) {
		case domain.ActionEnterLong:
			if book.Position().Side == domain.SideShort {
				book.Exit(i, bar.Timestamp, bar.Close)
			}
			book.EnterLong(i, bar.Timestamp, bar.Close)
		case domain.ActionEnterShort:
			if book.Position().Side == domain.SideLong {
				book.Exit(i, bar.Timestamp, bar.Close)
			}
			book.EnterShort(i, bar.Timestamp, bar.Close)
		case domain.ActionExit:
			book.Exit(i, bar.Timestamp, bar.Close)
		}

		// Keep the sample at this bar consistent with the fills that
		// just happened on it.
		equity[len(equity)-1].Equity = book.Equity(bar.Close)
	}

	// Force-close whatever is still open at the final bar.
	if book.Position().Side != domain.SideFlat && len(bars) > 0 {
		last := bars[len(bars)-1]
		book.Exit(len(bars)-1, last.Timestamp, last.Close)
		if len(equity) > 0 {
			equity[len(equity)-1].Equity = book.Equity(last.Close)
		}
	}

	report := perf.Compute(book.Trades(), equity, req.InitialCapital, req.Annualization)
	bt.log.Info("backtest complete",
		"strategy", req.Strategy,
		"bars", len(bars),
		"trades", report.TotalTrades,
		"final_equity", report.FinalEquity,
	)

	return &Result{
		Report:      report,
		Trades:      book.Trades(),
		EquityCurve: equity,
	}, nil
}

// withDefaults fills zero-valued tunables with their defaults.
func withDefaults(req Request) Request {
	if req.InitialCapital == 0 {
		req.InitialCapital = DefaultInitialCapital
	}
	if req.CommissionRate == 0 {
		req.CommissionRate = DefaultCommissionRate
	}
	if req.PositionFraction == 0 {
		req.PositionFraction = DefaultPositionFraction
	}
	if req.Annualization == 0 {
		req.Annualization = DefaultAnnualization
	}
	return req
}

// validate rejects malformed requests before any bar is processed.
func validate(req Request) error {
	if req.Strategy == "" {
		return fmt.Errorf("strategy name is required")
	}
	if len(req.Bars) == 0 {
		return fmt.Errorf("no bars provided")
	}
	if req.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %v", req.InitialCapital)
	}
	if req.CommissionRate < 0 {
		return fmt.Errorf("commission rate must not be negative, got %v", req.CommissionRate)
	}
	if req.PositionFraction <= 0 || req.PositionFraction > 1 {
		return fmt.Errorf("position fraction must be in (0, 1], got %v", req.PositionFraction)
	}
	for i := 1; i < len(req.Bars); i++ {
		if !req.Bars[i].Timestamp.After(req.Bars[i-1].Timestamp) {
			return fmt.Errorf("bar timestamps must be strictly increasing, violated at index %d", i)
		}
	}
	for i, b := range req.Bars {
		if b.Close <= 0 || b.High < b.Low {
			return fmt.Errorf("malformed bar at index %d: close=%v high=%v low=%v", i, b.Close, b.High, b.Low)
		}
	}
	return nil
}
