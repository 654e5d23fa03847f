package di

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"gorm.io/gorm"

	"options_backend/internal/feature/market/adapters/synthetic"
	symboladapters "options_backend/internal/feature/symbollist/adapters"
	symbolusecase "options_backend/internal/feature/symbollist/usecase"
)

// NewSymbols creates the symbol catalog. With a database the built-in catalog
// is seeded into the symbols table and rows there take precedence.
func NewSymbols(ctx context.Context, gdb *gorm.DB, logger *slog.Logger) *symbolusecase.SymbolUsecase {
	catalog := symbolusecase.Catalog(slices.Collect(maps.Keys(synthetic.DefaultBasePrices())))
	if gdb == nil {
		return symbolusecase.NewSymbolUsecase(nil, catalog)
	}
	repo := symboladapters.NewSymbolRepository(gdb)
	if err := repo.Seed(ctx, catalog); err != nil {
		logger.Warn("failed to seed symbols", "error", err)
	}
	return symbolusecase.NewSymbolUsecase(repo, catalog)
}
