// Package indicator computes derived series from price data: moving
// averages, oscillators, bands, and a volatility measure. All functions are
// pure: the same input always produces the same output, and inputs are never
// mutated.
//
// Every function returns a Series of the same length as its input. Indices
// inside an indicator's warm-up window hold NaN; use Series.Defined before
// reading a value.
package indicator

import (
	"math"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
)

// Series is an indicator output aligned index-for-index with the input bars.
// NaN marks an undefined value.
type Series []float64

// Defined reports whether the series holds a defined value at i.
func (s Series) Defined(i int) bool {
	return i >= 0 && i < len(s) && !math.IsNaN(s[i])
}

// undefined allocates a Series of length n filled with NaN.
func undefined(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// Closes extracts the closing prices of bars.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// ---------------------------------------------------------------------------
// Moving averages
// ---------------------------------------------------------------------------

// SMA returns the arithmetic mean of the trailing period values. Undefined
// for the first period-1 indices.
func SMA(values []float64, period int) Series {
	out := undefined(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponentially weighted mean with alpha = 2/(period+1),
// seeded with the first value. Defined from index 0.
func EMA(values []float64, period int) Series {
	out := undefined(len(values))
	if period <= 0 || len(values) == 0 {
		return out
	}

	alpha := 2.0 / (float64(period) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// emaSeries applies EMA smoothing to a series that may itself start with an
// undefined prefix, seeding at the first defined value.
func emaSeries(values Series, period int) Series {
	out := undefined(len(values))
	if period <= 0 {
		return out
	}

	alpha := 2.0 / (float64(period) + 1)
	seeded := false
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if !seeded {
			out[i] = v
			seeded = true
			continue
		}
		out[i] = alpha*v + (1-alpha)*out[i-1]
	}
	return out
}

// ---------------------------------------------------------------------------
// Oscillators
// ---------------------------------------------------------------------------

// RSI returns Wilder's relative strength index. The first defined value is
// at index period (it needs period deltas). When the average loss is zero
// the RSI is 100 by definition.
func RSI(values []float64, period int) Series {
	out := undefined(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	// Wilder smoothing for the remainder.
	n := float64(period)
	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*(n-1) + g) / n
		avgLoss = (avgLoss*(n-1) + l) / n
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line (fast EMA minus slow EMA), its signal line
// (EMA of the MACD line), and the histogram (line minus signal).
func MACD(values []float64, fast, slow, signal int) (line, signalLine, histogram Series) {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	line = undefined(len(values))
	for i := range values {
		if fastEMA.Defined(i) && slowEMA.Defined(i) {
			line[i] = fastEMA[i] - slowEMA[i]
		}
	}

	signalLine = emaSeries(line, signal)

	histogram = undefined(len(values))
	for i := range values {
		if line.Defined(i) && signalLine.Defined(i) {
			histogram[i] = line[i] - signalLine[i]
		}
	}
	return line, signalLine, histogram
}

// ---------------------------------------------------------------------------
// Bands and volatility
// ---------------------------------------------------------------------------

// Bollinger returns the middle band (SMA), and the upper/lower bands at
// numStd rolling standard deviations around it. With zero rolling stddev
// (constant prices) the bands collapse onto the middle band.
func Bollinger(values []float64, period int, numStd float64) (middle, upper, lower Series) {
	middle = SMA(values, period)
	std := StdDev(values, period)

	upper = undefined(len(values))
	lower = undefined(len(values))
	for i := range values {
		if middle.Defined(i) && std.Defined(i) {
			upper[i] = middle[i] + numStd*std[i]
			lower[i] = middle[i] - numStd*std[i]
		}
	}
	return middle, upper, lower
}

// StdDev returns the rolling population standard deviation over the trailing
// period values. Undefined for the first period-1 indices.
func StdDev(values []float64, period int) Series {
	out := undefined(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(period)

		var sq float64
		for _, v := range window {
			d := v - mean
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(period))
	}
	return out
}

// ATR returns the Wilder-smoothed average true range. The true range of bar
// i is max(high-low, |high-prevClose|, |low-prevClose|); the first bar uses
// high-low. Defined from index period-1.
func ATR(bars []domain.Bar, period int) Series {
	out := undefined(len(bars))
	if period <= 0 || len(bars) < period {
		return out
	}

	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period-1] = atr

	n := float64(period)
	for i := period; i < len(bars); i++ {
		atr = (atr*(n-1) + tr[i]) / n
		out[i] = atr
	}
	return out
}

// ---------------------------------------------------------------------------
// Crossover helpers
// ---------------------------------------------------------------------------

// CrossAbove reports whether a crosses from at-or-below b to strictly above
// b between i-1 and i. When the previous values are undefined (the first
// fully-defined bar after warm-up) an already-above state counts as a
// crossing, so a trend in place before the indicators warm up still fires
// exactly once.
func CrossAbove(a, b Series, i int) bool {
	if !a.Defined(i) || !b.Defined(i) || a[i] <= b[i] {
		return false
	}
	if !a.Defined(i-1) || !b.Defined(i-1) {
		return true
	}
	return a[i-1] <= b[i-1]
}

// CrossBelow reports whether a crosses from at-or-above b to strictly below
// b between i-1 and i, with the same warm-up boundary rule as CrossAbove.
func CrossBelow(a, b Series, i int) bool {
	if !a.Defined(i) || !b.Defined(i) || a[i] >= b[i] {
		return false
	}
	if !a.Defined(i-1) || !b.Defined(i-1) {
		return true
	}
	return a[i-1] >= b[i-1]
}

// CrossAboveLevel reports whether s crosses from at-or-below level to
// strictly above level between i-1 and i.
func CrossAboveLevel(s Series, level float64, i int) bool {
	if !s.Defined(i) || s[i] <= level {
		return false
	}
	if !s.Defined(i - 1) {
		return true
	}
	return s[i-1] <= level
}

// CrossBelowLevel reports whether s crosses from at-or-above level to
// strictly below level between i-1 and i.
func CrossBelowLevel(s Series, level float64, i int) bool {
	if !s.Defined(i) || s[i] >= level {
		return false
	}
	if !s.Defined(i - 1) {
		return true
	}
	return s[i-1] >= level
}
