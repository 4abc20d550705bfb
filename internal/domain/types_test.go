package domain

import (
	"testing"
	"time"
)

func TestSideSign(t *testing.T) {
	if got := SideLong.Sign(); got != 1 {
		t.Errorf("SideLong.Sign() = %v, want 1", got)
	}
	if got := SideShort.Sign(); got != -1 {
		t.Errorf("SideShort.Sign() = %v, want -1", got)
	}
	if got := SideFlat.Sign(); got != 0 {
		t.Errorf("SideFlat.Sign() = %v, want 0", got)
	}
}

func TestTradeActionClosing(t *testing.T) {
	cases := []struct {
		action TradeAction
		want   bool
	}{
		{TradeBuy, false},
		{TradeShort, false},
		{TradeSell, true},
		{TradeCover, true},
	}
	for _, c := range cases {
		if got := c.action.Closing(); got != c.want {
			t.Errorf("%s.Closing() = %v, want %v", c.action, got, c.want)
		}
	}
}

func TestZeroValues(t *testing.T) {
	// A zero-value Bar must be usable as a sentinel.
	bar := Bar{}
	if bar.Coin != "" || !bar.Timestamp.IsZero() {
		t.Error("zero-value Bar should have empty Coin and zero Timestamp")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 || bar.Volume != 0 {
		t.Error("zero-value Bar should have zero OHLCV")
	}

	pos := Position{Side: SideFlat}
	if pos.Qty != 0 {
		t.Error("flat Position must have Qty == 0")
	}

	// TradeRecord with nil RealizedPnL marks an opening fill.
	rec := TradeRecord{
		Index:     3,
		Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Action:    TradeBuy,
		Price:     100,
		Qty:       2,
	}
	if rec.RealizedPnL != nil {
		t.Error("opening TradeRecord should have nil RealizedPnL")
	}
}
