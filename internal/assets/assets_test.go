package assets

import (
	"testing"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
)

func TestLookup(t *testing.T) {
	btc, ok := Lookup("BTC")
	if !ok {
		t.Fatal("BTC not found")
	}
	if btc.Name != "Bitcoin" || btc.Category != "layer1" {
		t.Errorf("unexpected BTC entry: %+v", btc)
	}
	if !btc.TradesOn(domain.VenueHyperliquid) {
		t.Error("BTC should trade on hyperliquid")
	}

	if _, ok := Lookup("DOGE"); ok {
		t.Error("unknown symbol should not be found")
	}
}

func TestAllSorted(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("no assets configured")
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Symbol >= all[i].Symbol {
			t.Errorf("All not sorted: %s before %s", all[i-1].Symbol, all[i].Symbol)
		}
	}
}

func TestByCategory(t *testing.T) {
	for _, a := range ByCategory("layer2") {
		if a.Category != "layer2" {
			t.Errorf("%s has category %s", a.Symbol, a.Category)
		}
	}
	if len(ByCategory("layer2")) == 0 {
		t.Error("expected layer2 assets")
	}
}

func TestValidateMinInvestment(t *testing.T) {
	btc, _ := Lookup("BTC")
	if err := btc.Validate(50); err == nil {
		t.Error("investment below minimum should be rejected")
	}
	if err := btc.Validate(100); err != nil {
		t.Errorf("investment at minimum rejected: %v", err)
	}
}
