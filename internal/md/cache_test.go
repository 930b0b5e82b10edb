package md

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"signalbot/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

type countingProvider struct {
	calls atomic.Int32
	delay time.Duration
	fail  atomic.Int32 // number of leading calls that fail
	empty bool
}

func (p *countingProvider) FetchBars(ctx context.Context, symbol string, from, to time.Time, timeframe string) (Series, error) {
	n := p.calls.Add(1)
	time.Sleep(p.delay)
	if n <= p.fail.Load() {
		return Series{}, errors.New("upstream unavailable")
	}
	if p.empty {
		return Series{Symbol: symbol}, nil
	}
	return SeriesFromCloses(symbol, from, []float64{1, 2, 3}), nil
}

type mapStore struct {
	mu      sync.Mutex
	entries map[string]Series
	sets    int
}

func (s *mapStore) Get(ctx context.Context, key Key) (Series, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	series, ok := s.entries[key.String()]
	return series, ok, nil
}

func (s *mapStore) Set(ctx context.Context, key Key, series Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key.String()] = series
	s.sets++
	return nil
}

func key(symbol string) Key {
	return Key{Symbol: symbol, Start: start, End: start.AddDate(0, 0, 120), Timeframe: "1Day"}
}

func TestCacheFetchesOnceUnderConcurrency(t *testing.T) {
	provider := &countingProvider{delay: 20 * time.Millisecond}
	m := metrics.New()
	cache := NewCache(provider, nil, m)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			series, err := cache.GetOrFetch(context.Background(), key("AAPL"))
			assert.NoError(t, err)
			assert.Equal(t, 3, series.Len())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BarCacheTotal.WithLabelValues("miss")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.BarCacheTotal.WithLabelValues("hit")))
}

func TestCacheDistinctKeysFetchIndependently(t *testing.T) {
	provider := &countingProvider{}
	cache := NewCache(provider, nil, nil)

	for _, symbol := range []string{"AAPL", "MSFT", "AAPL"} {
		_, err := cache.GetOrFetch(context.Background(), key(symbol))
		require.NoError(t, err)
	}
	other := key("AAPL")
	other.Timeframe = "1Hour"
	_, err := cache.GetOrFetch(context.Background(), other)
	require.NoError(t, err)

	assert.Equal(t, int32(3), provider.calls.Load())
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	provider := &countingProvider{}
	provider.fail.Store(1)
	cache := NewCache(provider, nil, nil)

	_, err := cache.GetOrFetch(context.Background(), key("AAPL"))
	require.Error(t, err)
	assert.Zero(t, cache.Len())

	_, err = cache.GetOrFetch(context.Background(), key("AAPL"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestCacheRejectsEmptySeries(t *testing.T) {
	cache := NewCache(&countingProvider{empty: true}, nil, nil)
	_, err := cache.GetOrFetch(context.Background(), key("AAPL"))
	assert.ErrorIs(t, err, ErrNoData)
	assert.Zero(t, cache.Len())
}

func TestCacheStoreTier(t *testing.T) {
	store := &mapStore{entries: map[string]Series{}}
	stored := SeriesFromCloses("MSFT", start, []float64{4, 5})
	store.entries[key("MSFT").String()] = stored

	provider := &countingProvider{}
	cache := NewCache(provider, store, nil)

	got, err := cache.GetOrFetch(context.Background(), key("MSFT"))
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	assert.Zero(t, provider.calls.Load())

	_, err = cache.GetOrFetch(context.Background(), key("AAPL"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, 1, store.sets)
}

func TestCacheSurvivesUnreachableRedis(t *testing.T) {
	store := NewRedisStore("127.0.0.1:1", "", 0, time.Minute)
	defer store.Close()

	provider := &countingProvider{}
	cache := NewCache(provider, store, nil)

	series, err := cache.GetOrFetch(context.Background(), key("AAPL"))
	require.NoError(t, err)
	assert.Equal(t, 3, series.Len())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, fmt.Sprintf("AAPL|%s|%s|1Day", "2024-01-02T00:00:00Z", "2024-05-01T00:00:00Z"), key("AAPL").String())
}
