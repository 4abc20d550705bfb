package builtins

import (
	"math"
	"testing"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/strategy"
)

func barsFromCloses(closes []float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.Bar{
			Coin:      "BTC",
			Timestamp: base.AddDate(0, 0, i),
			Open:      c, High: c * 1.01, Low: c * 0.99, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

func risingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closes
}

func TestRegistryHasAllBuiltins(t *testing.T) {
	r := NewRegistry()
	want := []string{
		"bollinger_bands",
		"dual_momentum",
		"macd_momentum",
		"rsi_mean_reversion",
		"sma_crossover",
	}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("List returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSMACrossEntersOnRisingSeries(t *testing.T) {
	s, err := NewSMACross(strategy.Params{"fast_period": 5, "slow_period": 20})
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	bars := barsFromCloses(risingCloses(100))
	if err := s.Init(bars); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if got := s.WarmUp(); got != 19 {
		t.Errorf("WarmUp() = %d, want 19", got)
	}

	// On a strictly rising series the fast SMA is already above the slow
	// SMA at the first defined bar: exactly one entry there, then holds.
	entries := 0
	side := domain.SideFlat
	for i := s.WarmUp(); i < len(bars); i++ {
		act := s.Decide(i, side)
		if act == domain.ActionEnterLong {
			entries++
			side = domain.SideLong
		}
	}
	if entries != 1 {
		t.Errorf("entries = %d, want exactly 1", entries)
	}
}

func TestSMACrossRejectsBadPeriods(t *testing.T) {
	if _, err := NewSMACross(strategy.Params{"fast_period": 50, "slow_period": 20}); err == nil {
		t.Error("fast >= slow should be rejected")
	}
	if _, err := NewSMACross(strategy.Params{"fast_period": 0}); err == nil {
		t.Error("zero period should be rejected")
	}
}

func TestSMACrossRejectsUnknownParams(t *testing.T) {
	_, err := NewSMACross(strategy.Params{"fats_period": 5})
	if err == nil {
		t.Fatal("misspelled parameter should be rejected, not ignored")
	}
}

func TestSMACrossShortRequiresFlag(t *testing.T) {
	// Rising then falling series to force a downward crossing.
	closes := risingCloses(60)
	for i := 40; i < 60; i++ {
		closes[i] = closes[39] - 5*float64(i-39)
	}
	bars := barsFromCloses(closes)

	longOnly, _ := NewSMACross(strategy.Params{"fast_period": 5, "slow_period": 20})
	shorting, _ := NewSMACross(strategy.Params{"fast_period": 5, "slow_period": 20, "allow_short": true})
	longOnly.Init(bars)
	shorting.Init(bars)

	sawExit, sawShort := false, false
	for i := longOnly.WarmUp(); i < len(bars); i++ {
		if longOnly.Decide(i, domain.SideLong) == domain.ActionExit {
			sawExit = true
		}
		if shorting.Decide(i, domain.SideLong) == domain.ActionEnterShort {
			sawShort = true
		}
	}
	if !sawExit {
		t.Error("long-only variant should exit on the downward crossing")
	}
	if !sawShort {
		t.Error("shorting variant should reverse on the downward crossing")
	}
}

func TestRSIReversionRoundTrip(t *testing.T) {
	// Decline deep enough to push RSI under 30, then a recovery through 50.
	closes := make([]float64, 0, 60)
	price := 100.0
	for i := 0; i < 30; i++ {
		price -= 2
		closes = append(closes, price)
	}
	for i := 0; i < 30; i++ {
		price += 2
		closes = append(closes, price)
	}
	bars := barsFromCloses(closes)

	s, err := NewRSIReversion(strategy.Params{"period": 14, "oversold": 30, "overbought": 70})
	if err != nil {
		t.Fatalf("NewRSIReversion: %v", err)
	}
	s.Init(bars)

	entryAt, exitAt := -1, -1
	side := domain.SideFlat
	for i := s.WarmUp(); i < len(bars); i++ {
		switch s.Decide(i, side) {
		case domain.ActionEnterLong:
			if entryAt == -1 {
				entryAt = i
			}
			side = domain.SideLong
		case domain.ActionExit:
			if side == domain.SideLong && exitAt == -1 {
				exitAt = i
			}
			side = domain.SideFlat
		}
	}

	if entryAt == -1 {
		t.Fatal("expected a long entry during the decline")
	}
	if exitAt == -1 || exitAt <= entryAt {
		t.Fatalf("expected an exit after the entry, got entry=%d exit=%d", entryAt, exitAt)
	}
}

func TestRSIReversionRejectsBadThresholds(t *testing.T) {
	if _, err := NewRSIReversion(strategy.Params{"oversold": 70, "overbought": 30}); err == nil {
		t.Error("oversold >= overbought should be rejected")
	}
	if _, err := NewRSIReversion(strategy.Params{"overbought": 120}); err == nil {
		t.Error("overbought >= 100 should be rejected")
	}
}

func TestMACDMomentumSignalsOnTrendFlip(t *testing.T) {
	// Long rise then sharp fall produces a MACD line crossing under its
	// signal line.
	closes := risingCloses(80)
	for i := 60; i < 80; i++ {
		closes[i] = closes[59] - 3*float64(i-59)
	}
	bars := barsFromCloses(closes)

	s, err := NewMACDMomentum(strategy.Params{})
	if err != nil {
		t.Fatalf("NewMACDMomentum: %v", err)
	}
	s.Init(bars)

	sawEntry, sawExit := false, false
	for i := s.WarmUp(); i < len(bars); i++ {
		switch s.Decide(i, domain.SideFlat) {
		case domain.ActionEnterLong:
			sawEntry = true
		}
		if s.Decide(i, domain.SideLong) == domain.ActionExit {
			sawExit = true
		}
	}
	if !sawEntry {
		t.Error("expected a long entry while trending up")
	}
	if !sawExit {
		t.Error("expected an exit after the trend flips")
	}
}

func TestBollingerEntersBelowLowerBand(t *testing.T) {
	// Stable range then a sharp drop through the lower band.
	closes := make([]float64, 40)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 102
		}
	}
	closes[30] = 80
	bars := barsFromCloses(closes)

	s, err := NewBollingerBands(strategy.Params{"period": 20, "num_std": 2})
	if err != nil {
		t.Fatalf("NewBollingerBands: %v", err)
	}
	s.Init(bars)

	if got := s.Decide(30, domain.SideFlat); got != domain.ActionEnterLong {
		t.Errorf("Decide at the break bar = %v, want enter_long", got)
	}
	// While the close stays below the middle band there is no exit.
	if got := s.Decide(30, domain.SideLong); got != domain.ActionHold {
		t.Errorf("Decide(long) at the break bar = %v, want hold", got)
	}
}

func TestDualMomentumRequiresAgreement(t *testing.T) {
	bars := barsFromCloses(risingCloses(80))

	s, err := NewDualMomentum(strategy.Params{"fast_period": 10, "slow_period": 30})
	if err != nil {
		t.Fatalf("NewDualMomentum: %v", err)
	}
	s.Init(bars)

	// Rising series: trend up and RSI pinned at 100 → both filters agree.
	if got := s.Decide(s.WarmUp(), domain.SideFlat); got != domain.ActionEnterLong {
		t.Errorf("Decide on agreeing filters = %v, want enter_long", got)
	}
	// Already long and filters still agree: hold.
	if got := s.Decide(40, domain.SideLong); got != domain.ActionHold {
		t.Errorf("Decide(long) on agreeing filters = %v, want hold", got)
	}
}

func TestDecisionsAreHoldDuringWarmup(t *testing.T) {
	bars := barsFromCloses(risingCloses(60))
	r := NewRegistry()

	for _, name := range r.List() {
		s, err := r.Create(name, nil)
		if err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
		if err := s.Init(bars); err != nil {
			t.Fatalf("Init(%s): %v", name, err)
		}
		for i := 0; i < s.WarmUp() && i < len(bars); i++ {
			if got := s.Decide(i, domain.SideFlat); got != domain.ActionHold {
				t.Errorf("%s.Decide(%d) during warm-up = %v, want hold", name, i, got)
			}
		}
	}
}

func TestDecisionsAreDeterministic(t *testing.T) {
	closes := make([]float64, 120)
	price := 100.0
	for i := range closes {
		// Deterministic oscillation with drift.
		price += 3 * math.Sin(float64(i)/5)
		closes[i] = price
	}
	bars := barsFromCloses(closes)
	r := NewRegistry()

	for _, name := range r.List() {
		first, _ := r.Create(name, strategy.Params{"allow_short": true})
		second, _ := r.Create(name, strategy.Params{"allow_short": true})
		first.Init(bars)
		second.Init(bars)

		for i := 0; i < len(bars); i++ {
			for _, side := range []domain.Side{domain.SideFlat, domain.SideLong, domain.SideShort} {
				a, b := first.Decide(i, side), second.Decide(i, side)
				if a != b {
					t.Fatalf("%s.Decide(%d, %s) differs between identical instances: %v vs %v", name, i, side, a, b)
				}
			}
		}
	}
}
