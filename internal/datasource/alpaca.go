package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
)

// Compile-time interface check.
var _ BarSource = (*Alpaca)(nil)

// Alpaca fetches crypto candles via the Alpaca market-data API. Unlike
// Hyperliquid it serves deep history, so it is the fallback for ranges past
// the recent-candle cap.
type Alpaca struct {
	client *marketdata.Client
	log    *slog.Logger
}

// NewAlpaca creates an Alpaca source with the given credentials. dataURL
// overrides the default market-data endpoint when non-empty.
func NewAlpaca(apiKey, apiSecret, dataURL string, log *slog.Logger) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Alpaca{client: marketdata.NewClient(opts), log: log}
}

// Bars fetches crypto candles for coin (paired against USD) between start
// and end.
func (a *Alpaca) Bars(ctx context.Context, coin, interval string, start, end time.Time) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	tf, err := timeFrame(interval)
	if err != nil {
		return nil, err
	}

	symbol := coin + "/USD"
	raw, err := a.client.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
		TimeFrame: tf,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("GetCryptoBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, domain.Bar{
			Coin:      coin,
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	bars, err = Normalize(bars)
	if err != nil {
		return nil, fmt.Errorf("alpaca %s/%s: %w", coin, interval, err)
	}
	a.log.Info("fetched candles", "venue", domain.VenueAlpaca, "coin", coin, "interval", interval, "count", len(bars))
	return bars, nil
}

// timeFrame maps a candle interval onto an Alpaca TimeFrame. Alpaca has no
// multi-day frames, so 3d/1w/1M are unsupported here.
func timeFrame(interval string) (marketdata.TimeFrame, error) {
	switch interval {
	case "1m":
		return marketdata.OneMin, nil
	case "3m":
		return marketdata.NewTimeFrame(3, marketdata.Min), nil
	case "5m":
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case "15m":
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case "30m":
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case "1h":
		return marketdata.OneHour, nil
	case "2h":
		return marketdata.NewTimeFrame(2, marketdata.Hour), nil
	case "4h":
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case "8h":
		return marketdata.NewTimeFrame(8, marketdata.Hour), nil
	case "12h":
		return marketdata.NewTimeFrame(12, marketdata.Hour), nil
	case "1d":
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("interval %q not supported by alpaca", interval)
	}
}
