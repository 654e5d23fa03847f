package di

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"options_backend/internal/config"
	ledgerusecase "options_backend/internal/feature/ledger/usecase"
	marketusecase "options_backend/internal/feature/market/usecase"
	tradingadapters "options_backend/internal/feature/trading/adapters"
	tradingusecase "options_backend/internal/feature/trading/usecase"
	s3blob "options_backend/internal/platform/blob/s3"
	"options_backend/internal/platform/clock"
)

// NewManager creates the contract lifecycle manager.
func NewManager(cfg config.TradingConfig, ledger *ledgerusecase.Ledger, feed *marketusecase.Multiplexer, symbols tradingusecase.SymbolCatalog, gdb *gorm.DB, clk clock.Clock, logger *slog.Logger) *tradingusecase.Manager {
	var store tradingusecase.ContractStore
	if gdb != nil {
		store = tradingadapters.NewContractStore(gdb)
	}
	return tradingusecase.NewManager(tradingusecase.Config{
		MinStake:       cfg.MinStake,
		MinDuration:    cfg.MinDuration.Duration,
		MaxDuration:    cfg.MaxDuration.Duration,
		PayoutRate:     cfg.PayoutRate,
		WinProbability: cfg.WinProbability,
		ExitVolatility: cfg.ExitVolatility,
		DecayHorizon:   cfg.DecayHorizon.Duration,
		Seed:           cfg.Seed,
	}, ledger, feed, symbols, store, clk, logger)
}

// NewArchiver creates the resolved-contract archive job. It returns nil when
// no bucket is configured.
func NewArchiver(ctx context.Context, cfg config.S3Config, history tradingusecase.HistoryReader, clk clock.Clock, logger *slog.Logger) (*tradingusecase.Archiver, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	blob, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.Endpoint,
		Region:         cfg.Region,
		Bucket:         cfg.Bucket,
		AccessKey:      cfg.AccessKey,
		SecretKey:      cfg.SecretKey,
		UseSSL:         cfg.UseSSL,
		ForcePathStyle: cfg.ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return tradingusecase.NewArchiver(history, blob, tradingusecase.ArchiveConfig{
		Prefix:   cfg.Prefix,
		Interval: cfg.Interval.Duration,
	}, clk, logger), nil
}
