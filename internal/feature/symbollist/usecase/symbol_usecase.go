// Package usecase implements the business logic for symbol-related operations.
package usecase

import (
	"context"

	marketentity "options_backend/internal/feature/market/domain/entity"
	"options_backend/internal/feature/symbollist/domain/entity"
)

// SymbolRepository abstracts the persistence layer for tradable symbols.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type SymbolRepository interface {
	ListActive(ctx context.Context) ([]entity.Symbol, error)
}

// SymbolUsecase provides business logic for symbol operations.
// リポジトリが無い、または空の場合は組み込みのカタログを返します。
type SymbolUsecase struct {
	repo    SymbolRepository
	catalog []entity.Symbol
}

// NewSymbolUsecase creates a new SymbolUsecase. repoはnilでも構いません。
func NewSymbolUsecase(r SymbolRepository, catalog []entity.Symbol) *SymbolUsecase {
	return &SymbolUsecase{repo: r, catalog: catalog}
}

// ListActiveSymbols returns all active symbols ordered by sort key.
func (u *SymbolUsecase) ListActiveSymbols(ctx context.Context) ([]entity.Symbol, error) {
	if u.repo == nil {
		return u.catalog, nil
	}
	symbols, err := u.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return u.catalog, nil
	}
	return symbols, nil
}

// ListActiveCodes はアクティブな銘柄のコードのみを返します。
func (u *SymbolUsecase) ListActiveCodes(ctx context.Context) ([]string, error) {
	symbols, err := u.ListActiveSymbols(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(symbols))
	for _, s := range symbols {
		codes = append(codes, s.Code)
	}
	return codes, nil
}

// IsActive はsymbolが取引可能な銘柄かどうかを返します。symbolは正規化してから比較します。
func (u *SymbolUsecase) IsActive(ctx context.Context, symbol string) (bool, error) {
	code := marketentity.NormalizeSymbol(symbol)
	if code == "" {
		return false, nil
	}
	symbols, err := u.ListActiveSymbols(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range symbols {
		if s.Code == code {
			return true, nil
		}
	}
	return false, nil
}
