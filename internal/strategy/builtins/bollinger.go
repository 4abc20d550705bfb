package builtins

import (
	"fmt"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/indicator"
	"github.com/cktong/crypto-backtest-engine/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*BollingerBands)(nil)

// BollingerBands fades band breaks: long when the close crosses below the
// lower band, short (when enabled) when it crosses above the upper band,
// exiting when the close crosses back through the middle band.
type BollingerBands struct {
	period     int
	numStd     float64
	allowShort bool

	closes indicator.Series
	middle indicator.Series
	upper  indicator.Series
	lower  indicator.Series
}

// NewBollingerBands builds a BollingerBands from parameters:
//
//	period (int, default 20), num_std (float, default 2),
//	allow_short (bool, default false)
func NewBollingerBands(p strategy.Params) (strategy.Strategy, error) {
	if err := p.Unknown("period", "num_std", "allow_short"); err != nil {
		return nil, err
	}
	period, err := p.Int("period", 20)
	if err != nil {
		return nil, err
	}
	numStd, err := p.Float("num_std", 2)
	if err != nil {
		return nil, err
	}
	allowShort, err := p.Bool("allow_short", false)
	if err != nil {
		return nil, err
	}

	if period <= 1 {
		return nil, fmt.Errorf("period must be greater than 1, got %d", period)
	}
	if numStd <= 0 {
		return nil, fmt.Errorf("num_std must be positive, got %v", numStd)
	}

	return &BollingerBands{period: period, numStd: numStd, allowShort: allowShort}, nil
}

// Name returns "bollinger_bands".
func (s *BollingerBands) Name() string { return "bollinger_bands" }

// Init precomputes the bands over the closing prices.
func (s *BollingerBands) Init(bars []domain.Bar) error {
	s.closes = indicator.Series(indicator.Closes(bars))
	s.middle, s.upper, s.lower = indicator.Bollinger(s.closes, s.period, s.numStd)
	return nil
}

// WarmUp returns the first index where the bands are defined.
func (s *BollingerBands) WarmUp() int { return s.period - 1 }

// Decide fades band breaks and exits at the middle band.
func (s *BollingerBands) Decide(i int, side domain.Side) domain.Action {
	if !s.middle.Defined(i) {
		return domain.ActionHold
	}

	switch side {
	case domain.SideFlat:
		if indicator.CrossBelow(s.closes, s.lower, i) {
			return domain.ActionEnterLong
		}
		if s.allowShort && indicator.CrossAbove(s.closes, s.upper, i) {
			return domain.ActionEnterShort
		}
	case domain.SideLong:
		if indicator.CrossAbove(s.closes, s.middle, i) {
			return domain.ActionExit
		}
	case domain.SideShort:
		if indicator.CrossBelow(s.closes, s.middle, i) {
			return domain.ActionExit
		}
	}
	return domain.ActionHold
}
