package builtins

import "github.com/cktong/crypto-backtest-engine/internal/strategy"

// Register adds every built-in strategy factory to the registry.
func Register(r *strategy.Registry) {
	r.Register("sma_crossover", NewSMACross)
	r.Register("rsi_mean_reversion", NewRSIReversion)
	r.Register("macd_momentum", NewMACDMomentum)
	r.Register("bollinger_bands", NewBollingerBands)
	r.Register("dual_momentum", NewDualMomentum)
}

// NewRegistry returns a registry pre-populated with all built-ins.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
