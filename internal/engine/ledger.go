package engine

import (
	"log/slog"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
)

// Book tracks cash, the open position, and the trade log for a single
// backtest run.
//
// Short accounting convention: opening a short credits the sale proceeds to
// cash, and covering debits the buy-back cost. With that convention the
// identity
//
//	equity = cash + qty * close * side.Sign()
//
// holds exactly at every bar, for longs and shorts alike.
type Book struct {
	cash           float64
	initialCapital float64
	commissionRate float64
	fraction       float64

	pos             domain.Position
	entryCommission float64

	trades []domain.TradeRecord
	log    *slog.Logger
}

// NewBook creates a Book with the given starting cash, per-side commission
// rate, and position sizing fraction.
func NewBook(initialCapital, commissionRate, fraction float64, log *slog.Logger) *Book {
	if log == nil {
		log = slog.Default()
	}
	return &Book{
		cash:           initialCapital,
		initialCapital: initialCapital,
		commissionRate: commissionRate,
		fraction:       fraction,
		pos:            domain.Position{Side: domain.SideFlat},
		log:            log,
	}
}

// Position returns the currently open position. Side is SideFlat when no
// position is open.
func (b *Book) Position() domain.Position { return b.pos }

// Cash returns the current cash balance.
func (b *Book) Cash() float64 { return b.cash }

// Trades returns the trade log in execution order.
func (b *Book) Trades() []domain.TradeRecord { return b.trades }

// Equity returns cash plus the open position marked at the given close.
func (b *Book) Equity(close float64) float64 {
	return b.cash + b.pos.Qty*close*float64(b.pos.Side.Sign())
}

// EnterLong opens a long position at price, sizing it so that the notional
// is the configured fraction of current equity. It is a logged no-op when a
// position is already open or when cash cannot cover the sized notional plus
// commission.
func (b *Book) EnterLong(i int, ts time.Time, price float64) bool {
	if b.pos.Side != domain.SideFlat {
		b.log.Debug("entry skipped, position already open", "index", i, "side", b.pos.Side)
		return false
	}
	qty, commission, ok := b.size(price)
	if !ok || qty*price+commission > b.cash {
		b.log.Debug("entry skipped, insufficient cash", "index", i, "price", price, "cash", b.cash)
		return false
	}

	b.cash -= qty*price + commission
	b.pos = domain.Position{Side: domain.SideLong, Qty: qty, EntryPrice: price, EntryIndex: i}
	b.entryCommission = commission
	b.trades = append(b.trades, domain.TradeRecord{
		Index:      i,
		Timestamp:  ts,
		Action:     domain.TradeBuy,
		Price:      price,
		Qty:        qty,
		Commission: commission,
	})
	return true
}

// EnterShort opens a short position at price, crediting the sale proceeds to
// cash. Sizing and skip conditions match EnterLong.
func (b *Book) EnterShort(i int, ts time.Time, price float64) bool {
	if b.pos.Side != domain.SideFlat {
		b.log.Debug("entry skipped, position already open", "index", i, "side", b.pos.Side)
		return false
	}
	qty, commission, ok := b.size(price)
	if !ok {
		b.log.Debug("entry skipped, invalid size", "index", i, "price", price, "cash", b.cash)
		return false
	}

	b.cash += qty*price - commission
	b.pos = domain.Position{Side: domain.SideShort, Qty: qty, EntryPrice: price, EntryIndex: i}
	b.entryCommission = commission
	b.trades = append(b.trades, domain.TradeRecord{
		Index:      i,
		Timestamp:  ts,
		Action:     domain.TradeShort,
		Price:      price,
		Qty:        qty,
		Commission: commission,
	})
	return true
}

// Exit closes the open position at price and records the realized PnL, net
// of both the entry and exit commissions. It is a logged no-op when flat.
func (b *Book) Exit(i int, ts time.Time, price float64) bool {
	if b.pos.Side == domain.SideFlat {
		b.log.Debug("exit skipped, no open position", "index", i)
		return false
	}

	qty := b.pos.Qty
	commission := qty * price * b.commissionRate

	var action domain.TradeAction
	var gross float64
	switch b.pos.Side {
	case domain.SideLong:
		action = domain.TradeSell
		gross = (price - b.pos.EntryPrice) * qty
		b.cash += qty*price - commission
	case domain.SideShort:
		action = domain.TradeCover
		gross = (b.pos.EntryPrice - price) * qty
		b.cash -= qty*price + commission
	}

	realized := gross - b.entryCommission - commission
	b.trades = append(b.trades, domain.TradeRecord{
		Index:       i,
		Timestamp:   ts,
		Action:      action,
		Price:       price,
		Qty:         qty,
		Commission:  commission,
		RealizedPnL: &realized,
	})

	b.pos = domain.Position{Side: domain.SideFlat}
	b.entryCommission = 0
	return true
}

// size computes the quantity whose notional is fraction of current equity at
// price, plus the entry commission on that notional. ok is false when the
// price or the resulting quantity is not positive.
func (b *Book) size(price float64) (qty, commission float64, ok bool) {
	if price <= 0 {
		return 0, 0, false
	}
	notional := b.Equity(price) * b.fraction
	qty = notional / price
	if qty <= 0 {
		return 0, 0, false
	}
	return qty, notional * b.commissionRate, true
}
