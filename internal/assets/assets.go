// Package assets holds the static configuration table for the supported
// crypto assets: display names, venues, and per-asset trading defaults.
package assets

import (
	"fmt"
	"sort"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
)

// Asset describes one tradable coin and its backtest defaults.
type Asset struct {
	Symbol            string         `json:"symbol"`
	Name              string         `json:"name"`
	Category          string         `json:"category"`
	Venues            []domain.Venue `json:"venues"`
	DefaultCommission float64        `json:"default_commission"`
	MinInvestment     float64        `json:"min_investment"`
}

// table is keyed by upper-case symbol.
var table = map[string]Asset{
	"BTC": {
		Symbol: "BTC", Name: "Bitcoin", Category: "layer1",
		Venues:            []domain.Venue{domain.VenueHyperliquid, domain.VenueAlpaca},
		DefaultCommission: 0.001, MinInvestment: 100,
	},
	"ETH": {
		Symbol: "ETH", Name: "Ethereum", Category: "layer1",
		Venues:            []domain.Venue{domain.VenueHyperliquid, domain.VenueAlpaca},
		DefaultCommission: 0.001, MinInvestment: 50,
	},
	"SOL": {
		Symbol: "SOL", Name: "Solana", Category: "layer1",
		Venues:            []domain.Venue{domain.VenueHyperliquid, domain.VenueAlpaca},
		DefaultCommission: 0.001, MinInvestment: 20,
	},
	"AVAX": {
		Symbol: "AVAX", Name: "Avalanche", Category: "layer1",
		Venues:            []domain.Venue{domain.VenueHyperliquid, domain.VenueAlpaca},
		DefaultCommission: 0.001, MinInvestment: 30,
	},
	"MATIC": {
		Symbol: "MATIC", Name: "Polygon", Category: "layer2",
		Venues:            []domain.Venue{domain.VenueHyperliquid},
		DefaultCommission: 0.001, MinInvestment: 10,
	},
	"OP": {
		Symbol: "OP", Name: "Optimism", Category: "layer2",
		Venues:            []domain.Venue{domain.VenueHyperliquid},
		DefaultCommission: 0.001, MinInvestment: 20,
	},
	"ARB": {
		Symbol: "ARB", Name: "Arbitrum", Category: "layer2",
		Venues:            []domain.Venue{domain.VenueHyperliquid},
		DefaultCommission: 0.001, MinInvestment: 20,
	},
	"HYPE": {
		Symbol: "HYPE", Name: "Hyperliquid", Category: "exchange_token",
		Venues:            []domain.Venue{domain.VenueHyperliquid},
		DefaultCommission: 0.001, MinInvestment: 10,
	},
}

// Lookup returns the asset for symbol. Unknown symbols return ok=false; the
// caller falls back to engine defaults rather than failing.
func Lookup(symbol string) (Asset, bool) {
	a, ok := table[symbol]
	return a, ok
}

// All returns every configured asset, sorted by symbol.
func All() []Asset {
	out := make([]Asset, 0, len(table))
	for _, a := range table {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols returns the sorted list of supported symbols.
func Symbols() []string {
	out := make([]string, 0, len(table))
	for s := range table {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the assets in a category, sorted by symbol.
func ByCategory(category string) []Asset {
	var out []Asset
	for _, a := range All() {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

// TradesOn reports whether the asset is available on the given venue.
func (a Asset) TradesOn(v domain.Venue) bool {
	for _, venue := range a.Venues {
		if venue == v {
			return true
		}
	}
	return false
}

// Validate checks that an investment meets the asset's minimum.
func (a Asset) Validate(investment float64) error {
	if investment < a.MinInvestment {
		return fmt.Errorf("%s requires at least %.2f, got %.2f", a.Symbol, a.MinInvestment, investment)
	}
	return nil
}
