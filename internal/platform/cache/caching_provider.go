package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	candleentity "options_backend/internal/feature/candles/domain/entity"
	"options_backend/internal/feature/market/usecase"
)

// DefaultTTL is how long a provider response stays cached.
const DefaultTTL = 30 * time.Second

// CachingProvider decorates a price Provider with a write-through cache.
// It implements the decorator pattern, transparently adding caching without
// modifying the underlying provider. Failed calls are never cached.
type CachingProvider struct {
	inner     usecase.Provider
	store     Store
	ttl       time.Duration
	namespace string
}

var _ usecase.Provider = (*CachingProvider)(nil)

// NewCachingProvider decorates a Provider with caching.
// If ttl is 0, it defaults to 30 seconds. If namespace is empty, it uses the provider name.
func NewCachingProvider(store Store, ttl time.Duration, inner usecase.Provider, namespace string) *CachingProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if namespace == "" {
		namespace = inner.Name()
	}
	return &CachingProvider{
		inner:     inner,
		store:     store,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Name returns the wrapped provider's name.
func (c *CachingProvider) Name() string { return c.inner.Name() }

// Quote returns the cached price for symbol or fetches and caches it.
func (c *CachingProvider) Quote(ctx context.Context, symbol string) (float64, error) {
	if c.store == nil {
		return c.inner.Quote(ctx, symbol)
	}
	key := c.quoteKey(symbol)

	// 1) Check cache
	var cached float64
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	// 2) Fallback to provider
	p, err := c.inner.Quote(ctx, symbol)
	if err != nil {
		return 0, err
	}

	// 3) Store in cache (best effort)
	c.save(ctx, key, p)
	return p, nil
}

// TimeSeries returns the cached series or fetches and caches it.
func (c *CachingProvider) TimeSeries(ctx context.Context, symbol string, interval time.Duration, count int) ([]candleentity.Candle, error) {
	if c.store == nil {
		return c.inner.TimeSeries(ctx, symbol, interval, count)
	}
	key := c.seriesKey(symbol, interval, count)

	var cached []candleentity.Candle
	if c.load(ctx, key, &cached) {
		return cached, nil
	}

	out, err := c.inner.TimeSeries(ctx, symbol, interval, count)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, out)
	return out, nil
}

// load decodes a cached entry into out. A corrupted entry is deleted and treated as a miss.
func (c *CachingProvider) load(ctx context.Context, key string, out any) bool {
	b, ok := c.store.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, out); err == nil {
		return true
	}
	// Delete corrupted cache entry
	_ = c.store.Del(ctx, key)
	return false
}

func (c *CachingProvider) save(ctx context.Context, key string, v any) {
	if b, err := json.Marshal(v); err == nil {
		_ = c.store.Set(ctx, key, b, c.ttl)
	}
}

// quoteKey generates a cache key for a price quote.
func (c *CachingProvider) quoteKey(symbol string) string {
	return fmt.Sprintf("%s:quote:%s", c.namespace, safe(symbol))
}

// seriesKey generates a cache key for a time series query.
func (c *CachingProvider) seriesKey(symbol string, interval time.Duration, count int) string {
	return fmt.Sprintf("%s:series:%s:%d:%d",
		c.namespace,
		safe(symbol),
		int64(interval/time.Second),
		count,
	)
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	return strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(s)
}
