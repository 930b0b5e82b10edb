package md

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"signalbot/internal/metrics"
)

// Key identifies one bar download.
type Key struct {
	Symbol    string
	Start     time.Time
	End       time.Time
	Timeframe string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.Symbol, k.Start.UTC().Format(time.RFC3339), k.End.UTC().Format(time.RFC3339), k.Timeframe)
}

// Store is an optional second cache tier shared between processes.
type Store interface {
	Get(ctx context.Context, key Key) (Series, bool, error)
	Set(ctx context.Context, key Key, series Series) error
}

// Cache memoizes downloaded series for the life of the process. Lookups for the
// same key are serialized so a key is downloaded at most once; different keys
// download in parallel.
type Cache struct {
	provider Provider
	store    Store
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	entries map[Key]Series
	locks   map[Key]*sync.Mutex
}

func NewCache(provider Provider, store Store, m *metrics.Metrics) *Cache {
	return &Cache{
		provider: provider,
		store:    store,
		metrics:  m,
		entries:  make(map[Key]Series),
		locks:    make(map[Key]*sync.Mutex),
	}
}

func (c *Cache) GetOrFetch(ctx context.Context, key Key) (Series, error) {
	if series, ok := c.lookup(key); ok {
		c.metrics.CacheLookup("hit")
		return series, nil
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// another worker may have populated the key while we waited
	if series, ok := c.lookup(key); ok {
		c.metrics.CacheLookup("hit")
		return series, nil
	}

	if c.store != nil {
		series, ok, err := c.store.Get(ctx, key)
		if err != nil {
			slog.Warn("bar store read failed", "key", key.String(), "error", err)
		} else if ok {
			c.metrics.CacheLookup("store")
			c.put(key, series)
			return series, nil
		}
	}

	c.metrics.CacheLookup("miss")
	slog.Info("pulling bars", "symbol", key.Symbol, "start", key.Start.Format(time.DateOnly), "end", key.End.Format(time.DateOnly), "timeframe", key.Timeframe)
	series, err := c.provider.FetchBars(ctx, key.Symbol, key.Start, key.End, key.Timeframe)
	if err != nil {
		return Series{}, err
	}
	if err := series.Validate(); err != nil {
		return Series{}, err
	}
	c.put(key, series)

	if c.store != nil {
		if err := c.store.Set(ctx, key, series); err != nil {
			slog.Warn("bar store write failed", "key", key.String(), "error", err)
		}
	}
	return series, nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key Key) (Series, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	series, ok := c.entries[key]
	return series, ok
}

func (c *Cache) put(key Key, series Series) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = series
}

func (c *Cache) keyLock(key Key) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}
