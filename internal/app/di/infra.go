package di

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"options_backend/internal/config"
	"options_backend/internal/platform/db"
	platformredis "options_backend/internal/platform/redis"
)

// NewRedis connects to Redis. It returns nil when Redis is not configured or
// unreachable so callers fall back to in-process stores.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) *redis.Client {
	if cfg.Addr == "" {
		logger.Info("redis address is not set; running with in-memory cache")
		return nil
	}
	rdb, err := platformredis.NewRedisClient(ctx, platformredis.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err != nil {
		logger.Warn("redis unavailable; running with in-memory cache", "error", err)
		return nil
	}
	return rdb
}

// NewDB opens the remote store. It returns nil, nil when no driver is configured.
func NewDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "" {
		return nil, nil
	}
	return db.Open(db.Config{
		Driver:         cfg.Driver,
		User:           cfg.User,
		Password:       cfg.Password,
		Name:           cfg.Name,
		Host:           cfg.Host,
		Port:           cfg.Port,
		SSLMode:        cfg.SSLMode,
		Path:           cfg.Path,
		ConnectTimeout: cfg.ConnectTimeout.Duration,
		Migrate:        cfg.Migrate,
	})
}
