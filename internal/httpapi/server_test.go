package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/cktong/crypto-backtest-engine/internal/datasource"
	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/engine"
	"github.com/cktong/crypto-backtest-engine/internal/store"
	"github.com/cktong/crypto-backtest-engine/internal/strategy/builtins"
)

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	registry := builtins.NewRegistry()
	sources := map[domain.Venue]datasource.BarSource{
		domain.VenueSynthetic: datasource.NewSynthetic(42),
	}

	var runs store.RunStore
	if withStore {
		s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		runs = s
	}

	return NewServer(engine.NewBacktester(registry, nil), registry, sources, runs, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %s: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, false).Handler()
	rec := doJSON(t, h, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestStrategies(t *testing.T) {
	h := newTestServer(t, false).Handler()
	var resp StrategiesResponse
	rec := doJSON(t, h, http.MethodGet, "/api/strategies", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(resp.Strategies) != 5 {
		t.Errorf("got %d strategies, want 5: %v", len(resp.Strategies), resp.Strategies)
	}
}

func TestAssets(t *testing.T) {
	h := newTestServer(t, false).Handler()
	var resp []map[string]any
	rec := doJSON(t, h, http.MethodGet, "/api/assets", nil, &resp)
	if rec.Code != http.StatusOK || len(resp) == 0 {
		t.Errorf("status = %d, %d assets", rec.Code, len(resp))
	}
}

func TestAssetsByCategory(t *testing.T) {
	h := newTestServer(t, false).Handler()
	var resp []map[string]any
	rec := doJSON(t, h, http.MethodGet, "/api/assets?category=layer2", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(resp) == 0 {
		t.Fatal("no layer2 assets returned")
	}
	for _, a := range resp {
		if a["category"] != "layer2" {
			t.Errorf("asset %v outside requested category", a["symbol"])
		}
	}
}

func TestBacktestRejectsVenueMismatch(t *testing.T) {
	registry := builtins.NewRegistry()
	// MATIC only trades on hyperliquid, so an alpaca request must be
	// rejected before any bars are fetched.
	sources := map[domain.Venue]datasource.BarSource{
		domain.VenueAlpaca: datasource.NewSynthetic(1),
	}
	srv := NewServer(engine.NewBacktester(registry, nil), registry, sources, nil, nil)

	req := BacktestRequest{Coin: "MATIC", Strategy: "sma_crossover", Venue: "alpaca"}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/backtest", req, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBacktestEndToEnd(t *testing.T) {
	srv := newTestServer(t, true)
	h := srv.Handler()

	req := BacktestRequest{
		Coin:     "BTC",
		Venue:    string(domain.VenueSynthetic),
		Interval: "1d",
		Days:     200,
		Strategy: "sma_crossover",
	}
	var resp BacktestResponse
	rec := doJSON(t, h, http.MethodPost, "/api/backtest", req, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Bars != 200 {
		t.Errorf("bars = %d, want 200", resp.Bars)
	}
	if resp.Report.InitialCapital != 10_000 {
		t.Errorf("initial capital = %v, want default 10000", resp.Report.InitialCapital)
	}
	if resp.RunID <= 0 {
		t.Fatalf("run not persisted, id = %d", resp.RunID)
	}

	// The persisted run is browsable.
	var runs RunsResponse
	if rec := doJSON(t, h, http.MethodGet, "/api/runs", nil, &runs); rec.Code != http.StatusOK {
		t.Fatalf("list runs status = %d", rec.Code)
	}
	if len(runs.Runs) != 1 || runs.Runs[0].Coin != "BTC" {
		t.Errorf("runs = %+v", runs.Runs)
	}

	var trades TradesResponse
	path := fmt.Sprintf("/api/runs/%d/trades", resp.RunID)
	if rec := doJSON(t, h, http.MethodGet, path, nil, &trades); rec.Code != http.StatusOK {
		t.Fatalf("list trades status = %d", rec.Code)
	}
	if len(trades.Trades) != len(resp.Trades) {
		t.Errorf("persisted %d trades, response had %d", len(trades.Trades), len(resp.Trades))
	}
}

func TestBacktestValidation(t *testing.T) {
	h := newTestServer(t, false).Handler()

	cases := []struct {
		name string
		req  BacktestRequest
		want int
	}{
		{"missing coin", BacktestRequest{Strategy: "sma_crossover", Venue: "synthetic"}, http.StatusBadRequest},
		{"unknown venue", BacktestRequest{Coin: "BTC", Strategy: "sma_crossover", Venue: "binance"}, http.StatusBadRequest},
		{"unknown strategy", BacktestRequest{Coin: "BTC", Strategy: "bogus", Venue: "synthetic"}, http.StatusBadRequest},
		{"below minimum investment", BacktestRequest{Coin: "BTC", Strategy: "sma_crossover", Venue: "synthetic", InitialCapital: 50}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := doJSON(t, h, http.MethodPost, "/api/backtest", tc.req, nil)
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestRunsWithoutStore(t *testing.T) {
	h := newTestServer(t, false).Handler()
	if rec := doJSON(t, h, http.MethodGet, "/api/runs", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when persistence is off", rec.Code)
	}
}

func TestRunNotFound(t *testing.T) {
	h := newTestServer(t, true).Handler()
	if rec := doJSON(t, h, http.MethodGet, "/api/runs/999", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/runs/abc", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-numeric id", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, false).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/backtest", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
