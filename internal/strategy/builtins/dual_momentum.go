package builtins

import (
	"fmt"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/indicator"
	"github.com/cktong/crypto-backtest-engine/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*DualMomentum)(nil)

// DualMomentum requires agreement between a trend filter (fast SMA relative
// to slow SMA) and a momentum filter (RSI relative to the midline) before
// entering, and exits as soon as either filter reverses.
type DualMomentum struct {
	fastPeriod int
	slowPeriod int
	rsiPeriod  int
	allowShort bool

	fast indicator.Series
	slow indicator.Series
	rsi  indicator.Series
}

// NewDualMomentum builds a DualMomentum from parameters:
//
//	fast_period (int, default 20), slow_period (int, default 50),
//	rsi_period (int, default 14), allow_short (bool, default false)
func NewDualMomentum(p strategy.Params) (strategy.Strategy, error) {
	if err := p.Unknown("fast_period", "slow_period", "rsi_period", "allow_short"); err != nil {
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
	rsiPeriod, err := p.Int("rsi_period", 14)
	if err != nil {
		return nil, err
	}
	allowShort, err := p.Bool("allow_short", false)
	if err != nil {
		return nil, err
	}

	if fast <= 0 || slow <= 0 || rsiPeriod <= 0 {
		return nil, fmt.Errorf("periods must be positive, got %d/%d/%d", fast, slow, rsiPeriod)
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast_period (%d) must be less than slow_period (%d)", fast, slow)
	}

	return &DualMomentum{
		fastPeriod: fast,
		slowPeriod: slow,
		rsiPeriod:  rsiPeriod,
		allowShort: allowShort,
	}, nil
}

// Name returns "dual_momentum".
func (s *DualMomentum) Name() string { return "dual_momentum" }

// Init precomputes both SMAs and the RSI.
func (s *DualMomentum) Init(bars []domain.Bar) error {
	closes := indicator.Closes(bars)
	s.fast = indicator.SMA(closes, s.fastPeriod)
	s.slow = indicator.SMA(closes, s.slowPeriod)
	s.rsi = indicator.RSI(closes, s.rsiPeriod)
	return nil
}

// WarmUp returns the first index where both filters are defined.
func (s *DualMomentum) WarmUp() int {
	if s.slowPeriod-1 > s.rsiPeriod {
		return s.slowPeriod - 1
	}
	return s.rsiPeriod
}

// Decide enters when both filters agree and exits when either reverses.
func (s *DualMomentum) Decide(i int, side domain.Side) domain.Action {
	if !s.fast.Defined(i) || !s.slow.Defined(i) || !s.rsi.Defined(i) {
		return domain.ActionHold
	}

	trendUp := s.fast[i] > s.slow[i]
	momUp := s.rsi[i] > 50

	switch side {
	case domain.SideFlat:
		if trendUp && momUp {
			return domain.ActionEnterLong
		}
		if s.allowShort && !trendUp && !momUp {
			return domain.ActionEnterShort
		}
	case domain.SideLong:
		if !trendUp || !momUp {
			return domain.ActionExit
		}
	case domain.SideShort:
		if trendUp || momUp {
			return domain.ActionExit
		}
	}
	return domain.ActionHold
}
