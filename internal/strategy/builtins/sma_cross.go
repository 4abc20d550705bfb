// Package builtins provides the built-in strategy implementations that ship
// with the engine, one file per variant.
package builtins

import (
	"fmt"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/indicator"
	"github.com/cktong/crypto-backtest-engine/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross trades simple moving average crossovers: long when the fast SMA
// crosses above the slow SMA, short (when enabled) on the reverse crossing.
// An opposing crossover always exits the current side first.
type SMACross struct {
	fastPeriod int
	slowPeriod int
	allowShort bool

	fast indicator.Series
	slow indicator.Series
}

// NewSMACross builds an SMACross from parameters:
//
//	fast_period (int, default 20), slow_period (int, default 50),
//	allow_short (bool, default false)
func NewSMACross(p strategy.Params) (strategy.Strategy, error) {
	if err := p.Unknown("fast_period", "slow_period", "allow_short"); err != nil {
		return nil, err
	}
	fast, err := p.Int("fast_period", 20)
	if err != nil {
		return nil, err
	}
	slow, err := p.Int("slow_period", 50)
	if err != nil {
		return nil, err
	}
	allowShort, err := p.Bool("allow_short", false)
	if err != nil {
		return nil, err
	}

	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("sma periods must be positive, got fast=%d slow=%d", fast, slow)
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast_period (%d) must be less than slow_period (%d)", fast, slow)
	}

	return &SMACross{fastPeriod: fast, slowPeriod: slow, allowShort: allowShort}, nil
}

// Name returns "sma_crossover".
func (s *SMACross) Name() string { return "sma_crossover" }

// Init precomputes the fast and slow SMA series.
func (s *SMACross) Init(bars []domain.Bar) error {
	closes := indicator.Closes(bars)
	s.fast = indicator.SMA(closes, s.fastPeriod)
	s.slow = indicator.SMA(closes, s.slowPeriod)
	return nil
}

// WarmUp returns the first index where the slow SMA is defined.
func (s *SMACross) WarmUp() int { return s.slowPeriod - 1 }

// Decide signals on crossings of the fast SMA over the slow SMA.
func (s *SMACross) Decide(i int, side domain.Side) domain.Action {
	if !s.fast.Defined(i) || !s.slow.Defined(i) {
		return domain.ActionHold
	}

	switch {
	case indicator.CrossAbove(s.fast, s.slow, i):
		if side != domain.SideLong {
			return domain.ActionEnterLong
		}
	case indicator.CrossBelow(s.fast, s.slow, i):
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
