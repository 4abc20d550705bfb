// Package httpapi exposes the backtest engine over a small REST API: run
// backtests, list strategies and assets, and browse persisted runs.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/assets"
	"github.com/cktong/crypto-backtest-engine/internal/datasource"
	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/engine"
	"github.com/cktong/crypto-backtest-engine/internal/store"
	"github.com/cktong/crypto-backtest-engine/internal/strategy"
)

// Server serves the backtest HTTP API.
type Server struct {
	backtester *engine.Backtester
	registry   *strategy.Registry
	sources    map[domain.Venue]datasource.BarSource
	runs       store.RunStore // nil disables persistence
	log        *slog.Logger
}

// NewServer creates a Server. runs may be nil, in which case results are not
// persisted and the runs endpoints return 404.
func NewServer(
	bt *engine.Backtester,
	registry *strategy.Registry,
	sources map[domain.Venue]datasource.BarSource,
	runs store.RunStore,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		backtester: bt,
		registry:   registry,
		sources:    sources,
		runs:       runs,
		log:        log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("GET /api/assets", s.handleAssets)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/runs/{id}/trades", s.handleRunTrades)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StrategiesResponse{Strategies: s.registry.List()})
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	if category := r.URL.Query().Get("category"); category != "" {
		writeJSON(w, assets.ByCategory(category))
		return
	}
	writeJSON(w, assets.All())
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Coin == "" || req.Strategy == "" {
		writeError(w, http.StatusBadRequest, "coin and strategy are required")
		return
	}
	if req.Venue == "" {
		req.Venue = string(domain.VenueHyperliquid)
	}
	if req.Interval == "" {
		req.Interval = "1d"
	}
	if req.Days <= 0 {
		req.Days = 365
	}

	source, ok := s.sources[domain.Venue(req.Venue)]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown venue %q", req.Venue))
		return
	}

	// Known coins are checked against the asset table; unknown coins fall
	// through to engine defaults.
	if asset, ok := assets.Lookup(req.Coin); ok {
		venue := domain.Venue(req.Venue)
		if venue != domain.VenueSynthetic && !asset.TradesOn(venue) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is not available on %s", asset.Symbol, venue))
			return
		}
		capital := req.InitialCapital
		if capital == 0 {
			capital = engine.DefaultInitialCapital
		}
		if err := asset.Validate(capital); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -req.Days)
	bars, err := source.Bars(r.Context(), req.Coin, req.Interval, start, end)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("fetching bars: %v", err))
		return
	}
	if len(bars) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no bars for %s %s", req.Coin, req.Interval))
		return
	}

	result, err := s.backtester.Run(r.Context(), engine.Request{
		Strategy:         req.Strategy,
		Params:           req.Params,
		Bars:             bars,
		InitialCapital:   req.InitialCapital,
		CommissionRate:   req.CommissionRate,
		PositionFraction: req.PositionFraction,
		Annualization:    req.Annualization,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, strategy.ErrUnknown) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	resp := BacktestResponse{
		Bars:        len(bars),
		Report:      result.Report,
		Trades:      result.Trades,
		EquityCurve: result.EquityCurve,
	}

	if s.runs != nil {
		params, _ := json.Marshal(req.Params)
		id, err := s.runs.SaveRun(r.Context(), &store.Run{
			Coin:     req.Coin,
			Venue:    req.Venue,
			Interval: req.Interval,
			Strategy: req.Strategy,
			Params:   string(params),
			Report:   result.Report,
		}, result.Trades)
		if err != nil {
			s.log.Error("persisting run", "error", err)
		} else {
			resp.RunID = id
		}
	}

	writeJSON(w, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run persistence not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, RunsResponse{Runs: runs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run %d not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleRunTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	trades, err := s.runs.ListTrades(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, TradesResponse{RunID: id, Trades: trades})
}

// runID parses the {id} path value, handling the unconfigured-store and
// bad-input responses.
func (s *Server) runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run persistence not configured")
		return 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return 0, false
	}
	return id, true
}
