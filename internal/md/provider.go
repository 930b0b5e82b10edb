package md

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

var ErrNoQuote = errors.New("no quote available")

// Provider downloads historical bars.
type Provider interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time, timeframe string) (Series, error)
}

type barsAPI interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

type quoteAPI interface {
	GetLatestQuote(symbol string, req marketdata.GetLatestQuoteRequest) (*marketdata.Quote, error)
}

func NewClient(apiKey, apiSecret string) *marketdata.Client {
	return marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
}

// AlpacaBars fetches bars from the Alpaca market data API.
type AlpacaBars struct {
	client barsAPI
	feed   marketdata.Feed
}

func NewAlpacaBars(client *marketdata.Client, feed string) *AlpacaBars {
	return &AlpacaBars{client: client, feed: parseFeed(feed)}
}

func (a *AlpacaBars) FetchBars(ctx context.Context, symbol string, start, end time.Time, timeframe string) (Series, error) {
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return Series{}, err
	}
	bars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  tf,
		Adjustment: marketdata.Split,
		Start:      start,
		End:        end,
		Feed:       a.feed,
	})
	if err != nil {
		slog.Error("fetch bars failed", "symbol", symbol, "start", start, "end", end, "error", err)
		return Series{}, fmt.Errorf("fetch bars %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return Series{}, fmt.Errorf("%s %s..%s: %w", symbol, start.Format(time.DateOnly), end.Format(time.DateOnly), ErrNoData)
	}

	series := Series{Symbol: symbol, Bars: make([]Bar, 0, len(bars))}
	for _, b := range bars {
		series.Bars = append(series.Bars, Bar{
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	slog.Debug("bars fetched", "symbol", symbol, "count", len(series.Bars), "timeframe", timeframe)
	return series, nil
}

// Quotes resolves the latest quoted price of a symbol.
type Quotes struct {
	client quoteAPI
	feed   marketdata.Feed
}

func NewQuotes(client *marketdata.Client, feed string) *Quotes {
	return &Quotes{client: client, feed: parseFeed(feed)}
}

// LatestPrice returns the ask price, falling back to the bid when the ask is missing.
func (q *Quotes) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	quote, err := q.client.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{Feed: q.feed})
	if err != nil {
		slog.Error("fetch quote failed", "symbol", symbol, "error", err)
		return 0, fmt.Errorf("latest quote %s: %w", symbol, err)
	}
	if quote == nil {
		return 0, fmt.Errorf("%s: %w", symbol, ErrNoQuote)
	}
	price := quote.AskPrice
	if price <= 0 {
		price = quote.BidPrice
	}
	if price <= 0 {
		return 0, fmt.Errorf("%s: %w", symbol, ErrNoQuote)
	}
	return price, nil
}

func ParseTimeframe(value string) (marketdata.TimeFrame, error) {
	switch strings.ToLower(value) {
	case "", "1d", "1day", "day":
		return marketdata.OneDay, nil
	case "1h", "1hour", "hour":
		return marketdata.OneHour, nil
	case "1m", "1min", "minute":
		return marketdata.OneMin, nil
	case "1w", "1week", "week":
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe: %s", value)
	}
}

func parseFeed(feed string) marketdata.Feed {
	switch feed {
	case "iex":
		return marketdata.IEX
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}
