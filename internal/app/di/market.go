// Package di provides dependency injection factories for creating application components.
package di

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"options_backend/internal/config"
	"options_backend/internal/feature/market/adapters/binance"
	"options_backend/internal/feature/market/adapters/synthetic"
	"options_backend/internal/feature/market/adapters/twelvedata"
	"options_backend/internal/feature/market/usecase"
	"options_backend/internal/platform/cache"
	infrahttp "options_backend/internal/platform/http"
)

// NewCacheStore returns a Redis-backed store when rdb is available and an
// in-process store otherwise.
func NewCacheStore(rdb *redis.Client, maxEntries int) cache.Store {
	if rdb != nil {
		return cache.NewRedisStore(rdb)
	}
	return cache.NewMemoryStore(maxEntries)
}

// NewPriceSource builds the provider chain. Twelve Data is used only when an
// API key is configured; every real provider is wrapped with the cache layer.
func NewPriceSource(cfg config.Config, store cache.Store, logger *slog.Logger) *usecase.PriceSource {
	client := infrahttp.NewHTTPClient(infrahttp.ClientConfig{
		Timeout:             cfg.Market.HTTPTimeout.Duration,
		MaxIdleConnsPerHost: 4,
	})
	ttl := cfg.Market.CacheTTL.Duration

	var providers []usecase.Provider
	if cfg.TwelveData.APIKey != "" {
		td := twelvedata.NewTwelveDataProvider(twelvedata.Config{
			APIKey:        cfg.TwelveData.APIKey,
			BaseURL:       cfg.TwelveData.BaseURL,
			Timeout:       cfg.Market.HTTPTimeout.Duration,
			RatePerMinute: cfg.TwelveData.RatePerMinute,
		}, client)
		providers = append(providers, cache.NewCachingProvider(store, ttl, td, twelvedata.Name))
	} else {
		logger.Warn("twelvedata api key is not set; provider disabled")
	}
	if cfg.Binance.Enabled {
		bn := binance.NewBinanceProvider(binance.Config{BaseURL: cfg.Binance.BaseURL}, client)
		providers = append(providers, cache.NewCachingProvider(store, ttl, bn, binance.Name))
	}

	synth := synthetic.NewGenerator(synthetic.Config{
		Volatility: cfg.Synthetic.Volatility,
		Seed:       cfg.Synthetic.Seed,
	})
	return usecase.NewPriceSource(synth, logger, providers...)
}

// NewMultiplexer creates the per-symbol polling feed on top of source.
func NewMultiplexer(cfg config.Config, source *usecase.PriceSource, logger *slog.Logger) *usecase.Multiplexer {
	return usecase.NewMultiplexer(source, usecase.MultiplexerConfig{
		Period: cfg.Market.PollPeriod.Duration,
		Jitter: cfg.Market.PollJitter.Duration,
	}, logger)
}
