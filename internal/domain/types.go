// Package domain defines the core value types shared across the backtest
// engine: price bars, positions, executed trades, and equity points.
package domain

import "time"

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is a single OHLCV candle for one asset at one timestamp.
type Bar struct {
	Coin      string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Venue identifies where bar data came from.
type Venue string

const (
	VenueHyperliquid Venue = "hyperliquid"
	VenueAlpaca      Venue = "alpaca"
	VenueSynthetic   Venue = "synthetic"
)

// ---------------------------------------------------------------------------
// Positions and actions
// ---------------------------------------------------------------------------

// Side is the direction of the single open position.
type Side string

const (
	SideFlat  Side = "flat"
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Sign returns +1 for long, -1 for short, 0 for flat. Used when marking a
// position to market.
func (s Side) Sign() float64 {
	switch s {
	case SideLong:
		return 1
	case SideShort:
		return -1
	default:
		return 0
	}
}

// Action is a strategy's decision for one bar.
type Action string

const (
	ActionHold       Action = "hold"
	ActionEnterLong  Action = "enter_long"
	ActionEnterShort Action = "enter_short"
	ActionExit       Action = "exit"
)

// Position is the single open position owned by the ledger. Qty is zero iff
// Side is flat.
type Position struct {
	Side       Side
	Qty        float64
	EntryPrice float64
	EntryIndex int
}

// ---------------------------------------------------------------------------
// Trade ledger and equity curve
// ---------------------------------------------------------------------------

// TradeAction is the executed side of a single fill.
type TradeAction string

const (
	TradeBuy   TradeAction = "buy"
	TradeSell  TradeAction = "sell"
	TradeShort TradeAction = "short"
	TradeCover TradeAction = "cover"
)

// Closing reports whether the action closes a position.
func (a TradeAction) Closing() bool {
	return a == TradeSell || a == TradeCover
}

// TradeRecord is one executed fill. Records are appended to the trade ledger
// in execution order and never mutated. RealizedPnL is set only on closing
// actions and is net of both entry and exit commission.
type TradeRecord struct {
	Index       int         `json:"index"`
	Timestamp   time.Time   `json:"timestamp"`
	Action      TradeAction `json:"action"`
	Price       float64     `json:"price"`
	Qty         float64     `json:"qty"`
	Commission  float64     `json:"commission"`
	RealizedPnL *float64    `json:"realized_pnl,omitempty"`
}

// EquityPoint is one mark-to-market sample of account value, recorded every
// bar of a run.
type EquityPoint struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}
