package builtins

import (
	"fmt"
	"math"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/indicator"
	"github.com/cktong/crypto-backtest-engine/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MACDMomentum)(nil)

// MACDMomentum trades crossings of the MACD line over its signal line: long
// when the line crosses above the signal, short (when enabled) on the
// reverse crossing.
type MACDMomentum struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
	allowShort   bool

	line   indicator.Series
	signal indicator.Series
}

// NewMACDMomentum builds a MACDMomentum from parameters:
//
//	fast_period (int, default 12), slow_period (int, default 26),
//	signal_period (int, default 9), allow_short (bool, default false)
func NewMACDMomentum(p strategy.Params) (strategy.Strategy, error) {
	if err := p.Unknown("fast_period", "slow_period", "signal_period", "allow_short"); err != nil {
		return nil, err
	}
	fast, err := p.Int("fast_period", 12)
	if err != nil {
		return nil, err
	}
	slow, err := p.Int("slow_period", 26)
	if err != nil {
		return nil, err
	}
	signal, err := p.Int("signal_period", 9)
	if err != nil {
		return nil, err
	}
	allowShort, err := p.Bool("allow_short", false)
	if err != nil {
		return nil, err
	}

	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, fmt.Errorf("macd periods must be positive, got %d/%d/%d", fast, slow, signal)
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast_period (%d) must be less than slow_period (%d)", fast, slow)
	}

	return &MACDMomentum{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
		allowShort:   allowShort,
	}, nil
}

// Name returns "macd_momentum".
func (s *MACDMomentum) Name() string { return "macd_momentum" }

// Init precomputes the MACD line and signal line. Values before the warm-up
// index are masked out so that a trend already in place when the indicator
// becomes usable is picked up as a crossing on the first decidable bar.
func (s *MACDMomentum) Init(bars []domain.Bar) error {
	s.line, s.signal, _ = indicator.MACD(indicator.Closes(bars), s.fastPeriod, s.slowPeriod, s.signalPeriod)
	for i := 0; i < s.WarmUp() && i < len(bars); i++ {
		s.line[i] = math.NaN()
		s.signal[i] = math.NaN()
	}
	return nil
}

// WarmUp returns the index from which both EMAs have seen a full slow
// period. The EMAs are defined from index 0, but their values are not
// meaningful before the slow window has filled.
func (s *MACDMomentum) WarmUp() int { return s.slowPeriod + s.signalPeriod - 1 }

// Decide signals on crossings of the MACD line over the signal line.
func (s *MACDMomentum) Decide(i int, side domain.Side) domain.Action {
	if i < s.WarmUp() || !s.line.Defined(i) || !s.signal.Defined(i) {
		return domain.ActionHold
	}

	switch {
	case indicator.CrossAbove(s.line, s.signal, i):
		if side != domain.SideLong {
			return domain.ActionEnterLong
		}
	case indicator.CrossBelow(s.line, s.signal, i):
		if side == domain.SideLong {
			if s.allowShort {
				return domain.ActionEnterShort
			}
			return domain.ActionExit
		}
		if side == domain.SideFlat && s.allowShort {
			return domain.ActionEnterShort
		}
	}
	return domain.ActionHold
}
