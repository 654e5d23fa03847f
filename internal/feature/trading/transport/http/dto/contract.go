// Package dto はtradingフィーチャーのHTTPトランスポート層のデータ転送オブジェクトを定義します。
package dto

import (
	"time"

	"options_backend/internal/feature/trading/domain/entity"
)

// OpenTradeRequest は POST /trades のリクエストボディです。
type OpenTradeRequest struct {
	Symbol      string  `json:"symbol" binding:"required"`
	Direction   string  `json:"direction" binding:"required"`
	Stake       float64 `json:"stake" binding:"required"`
	DurationSec int     `json:"duration_sec" binding:"required,gt=0,lte=86400"`
}

// ContractResponse はコントラクトのレスポンスです。判定前は結果系のフィールドを省略します。
type ContractResponse struct {
	ID         string   `json:"id"`
	Symbol     string   `json:"symbol"`
	Direction  string   `json:"direction"`
	Stake      float64  `json:"stake"`
	EntryPrice float64  `json:"entry_price"`
	PayoutRate float64  `json:"payout_rate"`
	OpenedAt   string   `json:"opened_at"`
	ExpiresAt  string   `json:"expires_at"`
	State      string   `json:"state"`
	ExitPrice  *float64 `json:"exit_price,omitempty"`
	Outcome    string   `json:"outcome,omitempty"`
	Payout     *float64 `json:"payout,omitempty"`
	ResolvedAt string   `json:"resolved_at,omitempty"`
}

// TradesResponse は GET /trades のレスポンスです。
type TradesResponse struct {
	Active  []ContractResponse `json:"active"`
	History []ContractResponse `json:"history"`
}

// FromContract はエンティティをレスポンスに変換します。
func FromContract(c entity.Contract) ContractResponse {
	r := ContractResponse{
		ID:         c.ID,
		Symbol:     c.Symbol,
		Direction:  string(c.Direction),
		Stake:      c.Stake,
		EntryPrice: c.EntryPrice,
		PayoutRate: c.PayoutRate,
		OpenedAt:   c.OpenedAt.UTC().Format(time.RFC3339),
		ExpiresAt:  c.ExpiresAt.UTC().Format(time.RFC3339),
		State:      string(c.State),
	}
	if c.Resolved() {
		exit, payout := c.ExitPrice, c.Payout
		r.ExitPrice = &exit
		r.Payout = &payout
		r.Outcome = string(c.Outcome)
		r.ResolvedAt = c.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return r
}

// FromContracts はエンティティのスライスをレスポンスに変換します。
func FromContracts(cs []entity.Contract) []ContractResponse {
	out := make([]ContractResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, FromContract(c))
	}
	return out
}
