package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
	"github.com/cktong/crypto-backtest-engine/internal/util"
)

// maxCandlesPerRequest is the server-side cap on a single candleSnapshot
// response. Longer ranges are fetched in windows of this many candles.
const maxCandlesPerRequest = 5000

// Compile-time interface check.
var _ BarSource = (*Hyperliquid)(nil)

// Hyperliquid fetches candles from the public Hyperliquid info endpoint.
type Hyperliquid struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *util.RateLimiter
	maxAttempts int
	log         *slog.Logger
}

// HyperliquidOpts configures a Hyperliquid source. Zero values fall back to
// the public endpoint, 60 requests per minute, and 3 attempts per request.
type HyperliquidOpts struct {
	BaseURL         string
	RateLimitPerMin int
	MaxAttempts     int
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// NewHyperliquid creates a Hyperliquid source.
func NewHyperliquid(opts HyperliquidOpts) *Hyperliquid {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.hyperliquid.xyz"
	}
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 60
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hyperliquid{
		baseURL:     opts.BaseURL,
		httpClient:  opts.HTTPClient,
		limiter:     util.NewRateLimiter(opts.RateLimitPerMin),
		maxAttempts: opts.MaxAttempts,
		log:         opts.Logger,
	}
}

// candleRequest is the body of a candleSnapshot call.
type candleRequest struct {
	Type string            `json:"type"`
	Req  candleRequestBody `json:"req"`
}

type candleRequestBody struct {
	Coin      string `json:"coin"`
	Interval  string `json:"interval"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// candle is one element of a candleSnapshot response. Prices and volume
// arrive as decimal strings.
type candle struct {
	OpenTime int64  `json:"t"`
	Coin     string `json:"s"`
	Interval string `json:"i"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Trades   int64  `json:"n"`
}

// Bars fetches candles between start and end, paging in windows small enough
// to stay under the per-request candle cap.
func (h *Hyperliquid) Bars(ctx context.Context, coin, interval string, start, end time.Time) ([]domain.Bar, error) {
	step, err := IntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	window := step * maxCandlesPerRequest
	var all []domain.Bar
	for cursor := start; cursor.Before(end); cursor = cursor.Add(window) {
		chunkEnd := cursor.Add(window)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunk, err := h.fetchWindow(ctx, coin, interval, cursor, chunkEnd)
		if err != nil {
			return nil, err
		}
		all = append(all, chunk...)
	}

	bars, err := Normalize(all)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid %s/%s: %w", coin, interval, err)
	}
	h.log.Info("fetched candles", "venue", domain.VenueHyperliquid, "coin", coin, "interval", interval, "count", len(bars))
	return bars, nil
}

// fetchWindow requests a single candleSnapshot window with rate limiting and
// retries.
func (h *Hyperliquid) fetchWindow(ctx context.Context, coin, interval string, start, end time.Time) ([]domain.Bar, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(candleRequest{
		Type: "candleSnapshot",
		Req: candleRequestBody{
			Coin:      coin,
			Interval:  interval,
			StartTime: start.UnixMilli(),
			EndTime:   end.UnixMilli(),
		},
	})
	if err != nil {
		return nil, err
	}

	var candles []candle
	err = util.Retry(ctx, h.maxAttempts, time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/info", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("candleSnapshot returned %d: %s", resp.StatusCode, data)
		}

		candles = candles[:0]
		return json.NewDecoder(resp.Body).Decode(&candles)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s candles: %w", coin, interval, err)
	}

	bars := make([]domain.Bar, 0, len(candles))
	for _, c := range candles {
		b, err := c.toBar()
		if err != nil {
			return nil, err
		}
		if b.Coin == "" {
			b.Coin = coin
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func (c candle) toBar() (domain.Bar, error) {
	var (
		bar = domain.Bar{
			Coin:      c.Coin,
			Timestamp: time.UnixMilli(c.OpenTime).UTC(),
		}
		err error
	)
	if bar.Open, err = strconv.ParseFloat(c.Open, 64); err != nil {
		return domain.Bar{}, fmt.Errorf("parse open %q: %w", c.Open, err)
	}
	if bar.High, err = strconv.ParseFloat(c.High, 64); err != nil {
		return domain.Bar{}, fmt.Errorf("parse high %q: %w", c.High, err)
	}
	if bar.Low, err = strconv.ParseFloat(c.Low, 64); err != nil {
		return domain.Bar{}, fmt.Errorf("parse low %q: %w", c.Low, err)
	}
	if bar.Close, err = strconv.ParseFloat(c.Close, 64); err != nil {
		return domain.Bar{}, fmt.Errorf("parse close %q: %w", c.Close, err)
	}
	if bar.Volume, err = strconv.ParseFloat(c.Volume, 64); err != nil {
		return domain.Bar{}, fmt.Errorf("parse volume %q: %w", c.Volume, err)
	}
	return bar, nil
}
