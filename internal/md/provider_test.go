package md

import (
	"context"
	"errors"
	"testing"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBarsAPI struct {
	bars []marketdata.Bar
	err  error
	req  marketdata.GetBarsRequest
}

func (f *fakeBarsAPI) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.req = req
	return f.bars, f.err
}

type fakeQuoteAPI struct {
	quote *marketdata.Quote
	err   error
}

func (f *fakeQuoteAPI) GetLatestQuote(symbol string, req marketdata.GetLatestQuoteRequest) (*marketdata.Quote, error) {
	return f.quote, f.err
}

func TestAlpacaBarsConvertsBars(t *testing.T) {
	api := &fakeBarsAPI{bars: []marketdata.Bar{
		{Timestamp: start, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Timestamp: start.AddDate(0, 0, 1), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 200},
	}}
	provider := &AlpacaBars{client: api, feed: marketdata.IEX}

	series, err := provider.FetchBars(context.Background(), "AAPL", start, start.AddDate(0, 0, 5), "1Day")
	require.NoError(t, err)
	require.NoError(t, series.Validate())
	assert.Equal(t, "AAPL", series.Symbol)
	assert.Equal(t, []float64{1.5, 2}, series.Closes())
	assert.Equal(t, 200.0, series.Last().Volume)
	assert.Equal(t, marketdata.OneDay, api.req.TimeFrame)
	assert.Equal(t, marketdata.Split, api.req.Adjustment)
	assert.Equal(t, marketdata.IEX, api.req.Feed)
}

func TestAlpacaBarsEmptyIsNoData(t *testing.T) {
	provider := &AlpacaBars{client: &fakeBarsAPI{}, feed: marketdata.IEX}
	_, err := provider.FetchBars(context.Background(), "ZZZZ", start, start.AddDate(0, 0, 5), "1Day")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestAlpacaBarsWrapsErrors(t *testing.T) {
	upstream := errors.New("forbidden")
	provider := &AlpacaBars{client: &fakeBarsAPI{err: upstream}, feed: marketdata.IEX}
	_, err := provider.FetchBars(context.Background(), "AAPL", start, start.AddDate(0, 0, 5), "1Day")
	assert.ErrorIs(t, err, upstream)

	_, err = provider.FetchBars(context.Background(), "AAPL", start, start.AddDate(0, 0, 5), "fortnight")
	assert.Error(t, err)
}

func TestQuotesLatestPrice(t *testing.T) {
	q := &Quotes{client: &fakeQuoteAPI{quote: &marketdata.Quote{AskPrice: 50.25, BidPrice: 50.1}}}
	price, err := q.LatestPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 50.25, price)

	q = &Quotes{client: &fakeQuoteAPI{quote: &marketdata.Quote{BidPrice: 49.9}}}
	price, err = q.LatestPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 49.9, price)

	q = &Quotes{client: &fakeQuoteAPI{quote: &marketdata.Quote{}}}
	_, err = q.LatestPrice(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestParseTimeframe(t *testing.T) {
	for _, in := range []string{"1Day", "1d", ""} {
		tf, err := ParseTimeframe(in)
		require.NoError(t, err)
		assert.Equal(t, marketdata.OneDay, tf)
	}
	tf, err := ParseTimeframe("1Hour")
	require.NoError(t, err)
	assert.Equal(t, marketdata.OneHour, tf)
}

func TestSeriesValidate(t *testing.T) {
	s := SeriesFromCloses("AAPL", start, []float64{1, 2})
	require.NoError(t, s.Validate())

	s.Bars[1].Timestamp = s.Bars[0].Timestamp
	assert.Error(t, s.Validate())

	assert.ErrorIs(t, Series{Symbol: "AAPL"}.Validate(), ErrNoData)
}
