package di

import (
	"log/slog"

	"gorm.io/gorm"

	"options_backend/internal/config"
	candleadapters "options_backend/internal/feature/candles/adapters"
	candleusecase "options_backend/internal/feature/candles/usecase"
	marketusecase "options_backend/internal/feature/market/usecase"
)

// NewCandles creates the candle usecase fed by the multiplexer. Closed bars
// are persisted only when a database is available.
func NewCandles(cfg config.CandlesConfig, source *marketusecase.PriceSource, feed *marketusecase.Multiplexer, gdb *gorm.DB, logger *slog.Logger) *candleusecase.CandlesUsecase {
	var repo candleusecase.CandleRepository
	if gdb != nil {
		repo = candleadapters.NewCandleRepository(gdb)
	}
	return candleusecase.NewCandlesUsecase(cfg.Interval.Duration, cfg.Capacity, source, feed, repo, logger)
}

// NewIngest creates the backfill usecase. A database is required.
func NewIngest(source *marketusecase.PriceSource, gdb *gorm.DB, parallel int, logger *slog.Logger) *candleusecase.IngestUsecase {
	return candleusecase.NewIngestUsecase(source, candleadapters.NewCandleRepository(gdb), parallel, logger)
}
