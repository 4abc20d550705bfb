package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func constantBars(n int, price float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = domain.Bar{
			Coin:      "BTC",
			Timestamp: base.AddDate(0, 0, i),
			Open:      price, High: price, Low: price, Close: price,
			Volume: 1000,
		}
	}
	return bars
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	s := SMA(values, 3)

	if s.Defined(0) || s.Defined(1) {
		t.Error("SMA(3) should be undefined for the first two indices")
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(s[i+2], w) {
			t.Errorf("SMA[%d] = %v, want %v", i+2, s[i+2], w)
		}
	}
}

func TestSMAInsufficientData(t *testing.T) {
	s := SMA([]float64{1, 2}, 5)
	for i := range s {
		if s.Defined(i) {
			t.Errorf("SMA over short input should be undefined at %d", i)
		}
	}
}

func TestEMASeededWithFirstValue(t *testing.T) {
	values := []float64{10, 20, 30}
	s := EMA(values, 2) // alpha = 2/3

	if !almostEqual(s[0], 10) {
		t.Errorf("EMA[0] = %v, want seed 10", s[0])
	}
	want1 := 2.0/3*20 + 1.0/3*10
	if !almostEqual(s[1], want1) {
		t.Errorf("EMA[1] = %v, want %v", s[1], want1)
	}
	want2 := 2.0/3*30 + 1.0/3*want1
	if !almostEqual(s[2], want2) {
		t.Errorf("EMA[2] = %v, want %v", s[2], want2)
	}
}

func TestRSIAllGainsIs100(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	s := RSI(values, 14)

	if s.Defined(13) {
		t.Error("RSI(14) should be undefined before index 14")
	}
	for i := 14; i < len(values); i++ {
		if !almostEqual(s[i], 100) {
			t.Errorf("RSI[%d] = %v, want 100 on an all-gain series", i, s[i])
		}
	}
}

func TestRSIMidpointOnAlternatingSeries(t *testing.T) {
	// Equal alternating gains and losses give avgGain == avgLoss → RSI 50.
	values := make([]float64, 30)
	for i := range values {
		if i%2 == 0 {
			values[i] = 100
		} else {
			values[i] = 101
		}
	}
	s := RSI(values, 14)
	if !s.Defined(14) {
		t.Fatal("RSI should be defined at index 14")
	}
	if !almostEqual(s[14], 50) {
		t.Errorf("RSI[14] = %v, want 50", s[14])
	}
	// Wilder smoothing drifts off the exact midpoint after the seed but
	// stays close to it while the series keeps alternating.
	for i := 15; i < len(values); i++ {
		if !s.Defined(i) {
			t.Fatalf("RSI undefined at %d", i)
		}
		if s[i] < 48 || s[i] > 52 {
			t.Errorf("RSI[%d] = %v, want near 50", i, s[i])
		}
	}
}

func TestMACDOnConstantSeries(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 42
	}
	line, signal, hist := MACD(values, 12, 26, 9)

	for i := range values {
		if !line.Defined(i) || !signal.Defined(i) || !hist.Defined(i) {
			t.Fatalf("MACD series undefined at %d on constant input", i)
		}
		if !almostEqual(line[i], 0) || !almostEqual(signal[i], 0) || !almostEqual(hist[i], 0) {
			t.Errorf("MACD at %d = (%v, %v, %v), want all zero", i, line[i], signal[i], hist[i])
		}
	}
}

func TestBollingerCollapsesOnConstantSeries(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 100
	}
	middle, upper, lower := Bollinger(values, 20, 2)

	if !middle.Defined(19) {
		t.Fatal("Bollinger middle should be defined at index 19")
	}
	if !almostEqual(upper[19], 100) || !almostEqual(lower[19], 100) {
		t.Errorf("bands on constant series = (%v, %v), want both 100", upper[19], lower[19])
	}
}

func TestStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	s := StdDev(values, 8)
	if !almostEqual(s[7], 2) {
		t.Errorf("StdDev[7] = %v, want 2", s[7])
	}
}

func TestATRConstantBars(t *testing.T) {
	bars := constantBars(20, 100)
	// Give every bar a fixed 2-point range.
	for i := range bars {
		bars[i].High = 101
		bars[i].Low = 99
	}
	s := ATR(bars, 14)
	if s.Defined(12) {
		t.Error("ATR(14) should be undefined before index 13")
	}
	for i := 13; i < len(bars); i++ {
		if !almostEqual(s[i], 2) {
			t.Errorf("ATR[%d] = %v, want 2", i, s[i])
		}
	}
}

func TestCrossoverHelpers(t *testing.T) {
	nan := math.NaN()
	a := Series{nan, 1, 3, 3, 1}
	b := Series{nan, 2, 2, 2, 2}

	if CrossAbove(a, b, 1) {
		t.Error("CrossAbove at 1: a below b, want false")
	}
	if !CrossAbove(a, b, 2) {
		t.Error("CrossAbove at 2: a crossed 1→3 over 2, want true")
	}
	if CrossAbove(a, b, 3) {
		t.Error("CrossAbove at 3: a stayed above, want false (no re-trigger)")
	}
	if !CrossBelow(a, b, 4) {
		t.Error("CrossBelow at 4: a crossed 3→1 under 2, want true")
	}
}

func TestCrossAboveAtWarmupBoundary(t *testing.T) {
	nan := math.NaN()
	// First defined bar already above: counts as a crossing exactly once.
	a := Series{nan, nan, 5, 6}
	b := Series{nan, nan, 2, 2}

	if !CrossAbove(a, b, 2) {
		t.Error("CrossAbove at first defined bar with a > b, want true")
	}
	if CrossAbove(a, b, 3) {
		t.Error("CrossAbove must not re-trigger while a stays above b")
	}
}

func TestLevelCrossings(t *testing.T) {
	s := Series{60, 40, 25, 35, 55}

	if !CrossBelowLevel(s, 30, 2) {
		t.Error("CrossBelowLevel: 40→25 across 30, want true")
	}
	if CrossBelowLevel(s, 30, 3) {
		t.Error("CrossBelowLevel at 3: series rising, want false")
	}
	if !CrossAboveLevel(s, 50, 4) {
		t.Error("CrossAboveLevel: 35→55 across 50, want true")
	}
}

func TestIndicatorsAreIdempotent(t *testing.T) {
	values := []float64{5, 9, 2, 7, 4, 8, 6, 3, 10, 1, 5, 9, 2, 7, 4, 8, 6, 3, 10, 1}

	first := RSI(values, 5)
	second := RSI(values, 5)
	for i := range first {
		fDef, sDef := first.Defined(i), second.Defined(i)
		if fDef != sDef {
			t.Fatalf("definedness differs at %d between runs", i)
		}
		if fDef && first[i] != second[i] {
			t.Errorf("RSI differs at %d between runs: %v vs %v", i, first[i], second[i])
		}
	}
}
