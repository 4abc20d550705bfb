package builtins

import (
	"fmt"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/indicator"
	"github.com/cktong/crypto-backtest-engine/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*RSIReversion)(nil)

// RSIReversion is a mean-reversion strategy on Wilder's RSI: it buys the
// crossing into oversold territory and sells the recovery through the
// midline. All thresholds are strict crossings, so a reading that stays
// beyond a threshold does not re-trigger every bar.
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64
	allowShort bool

	rsi indicator.Series
}

// NewRSIReversion builds an RSIReversion from parameters:
//
//	period (int, default 14), oversold (float, default 30),
//	overbought (float, default 70), allow_short (bool, default false)
func NewRSIReversion(p strategy.Params) (strategy.Strategy, error) {
	if err := p.Unknown("period", "oversold", "overbought", "allow_short"); err != nil {
		return nil, err
	}
	period, err := p.Int("period", 14)
	if err != nil {
		return nil, err
	}
	oversold, err := p.Float("oversold", 30)
	if err != nil {
		return nil, err
	}
	overbought, err := p.Float("overbought", 70)
	if err != nil {
		return nil, err
	}
	allowShort, err := p.Bool("allow_short", false)
	if err != nil {
		return nil, err
	}

	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return nil, fmt.Errorf("thresholds must satisfy 0 < oversold < overbought < 100, got %v/%v", oversold, overbought)
	}

	return &RSIReversion{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
		allowShort: allowShort,
	}, nil
}

// Name returns "rsi_mean_reversion".
func (s *RSIReversion) Name() string { return "rsi_mean_reversion" }

// Init precomputes the RSI series.
func (s *RSIReversion) Init(bars []domain.Bar) error {
	s.rsi = indicator.RSI(indicator.Closes(bars), s.period)
	return nil
}

// WarmUp returns the first index where the RSI is defined.
func (s *RSIReversion) WarmUp() int { return s.period }

// Decide enters against the extreme and exits on reversion to the midline.
func (s *RSIReversion) Decide(i int, side domain.Side) domain.Action {
	if !s.rsi.Defined(i) {
		return domain.ActionHold
	}

	switch side {
	case domain.SideFlat:
		if indicator.CrossBelowLevel(s.rsi, s.oversold, i) {
			return domain.ActionEnterLong
		}
		if s.allowShort && indicator.CrossAboveLevel(s.rsi, s.overbought, i) {
			return domain.ActionEnterShort
		}
	case domain.SideLong:
		if indicator.CrossAboveLevel(s.rsi, 50, i) || indicator.CrossAboveLevel(s.rsi, s.overbought, i) {
			return domain.ActionExit
		}
	case domain.SideShort:
		if indicator.CrossBelowLevel(s.rsi, 50, i) || indicator.CrossBelowLevel(s.rsi, s.oversold, i) {
			return domain.ActionExit
		}
	}
	return domain.ActionHold
}
