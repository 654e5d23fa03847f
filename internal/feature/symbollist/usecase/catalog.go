package usecase

import (
	"slices"
	"strings"

	marketentity "options_backend/internal/feature/market/domain/entity"
	"options_backend/internal/feature/symbollist/domain/entity"
)

var cryptoBases = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "XRP": true, "DOGE": true, "BNB": true,
}

// Catalog はシンボルコードから有効な銘柄一覧を作ります。コード順にSortKeyを振ります。
func Catalog(codes []string) []entity.Symbol {
	normalized := make([]string, 0, len(codes))
	for _, c := range codes {
		if n := marketentity.NormalizeSymbol(c); n != "" {
			normalized = append(normalized, n)
		}
	}
	slices.Sort(normalized)
	normalized = slices.Compact(normalized)

	out := make([]entity.Symbol, 0, len(normalized))
	for i, code := range normalized {
		base, quote, _ := strings.Cut(code, "/")
		market := entity.MarketFX
		if cryptoBases[base] {
			market = entity.MarketCrypto
		}
		name := base + " / " + quote
		if quote == "" {
			name = base
		}
		out = append(out, entity.Symbol{
			Code:     code,
			Name:     name,
			Market:   market,
			IsActive: true,
			SortKey:  i + 1,
		})
	}
	return out
}
