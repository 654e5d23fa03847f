// Package dto はledgerフィーチャーのHTTPトランスポート層のデータ転送オブジェクトを定義します。
package dto

import (
	"time"

	"options_backend/internal/feature/ledger/domain/entity"
)

// FundsRequest は/depositと/withdrawのリクエストボディです。
type FundsRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// BalanceResponse は残高のレスポンスです。
type BalanceResponse struct {
	AccountID  string  `json:"account_id"`
	Balance    float64 `json:"balance"`
	SyncStatus string  `json:"sync_status"`
	UpdatedAt  string  `json:"updated_at"`
}

// FromBalance はエンティティをレスポンスに変換します。
func FromBalance(b entity.Balance) BalanceResponse {
	return BalanceResponse{
		AccountID:  b.AccountID,
		Balance:    b.Amount,
		SyncStatus: string(b.SyncStatus),
		UpdatedAt:  b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
