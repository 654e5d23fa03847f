// Package dto はmarketフィーチャーのレスポンスDTOを定義します。
package dto

import (
	"time"

	"options_backend/internal/feature/market/domain/entity"
)

// TickResponse は1件の価格観測のレスポンスDTOです。WebSocket配信でも同じ形を使います。
type TickResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Time   string  `json:"time"` // RFC3339（ミリ秒）
	Seq    uint64  `json:"seq,omitempty"`
	Source string  `json:"source,omitempty"`
}

// FromTick はTickをレスポンスDTOに変換します。
func FromTick(t entity.Tick) TickResponse {
	return TickResponse{
		Symbol: t.Symbol,
		Price:  t.Price,
		Time:   t.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Seq:    t.Seq,
		Source: t.Source,
	}
}

// NowTick は配信中でないシンボルの単発取得結果をTickResponseにします。
func NowTick(symbol string, price float64, now time.Time) TickResponse {
	return FromTick(entity.Tick{Symbol: symbol, Price: price, Time: now})
}
