// Package entity はledgerフィーチャーのドメインモデルを定義します。
package entity

import "time"

// SyncStatus はローカル残高とリモート側の同期状態です。
// ローカルが正であり、リモートは結果整合です。
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncPending SyncStatus = "pending"
	SyncFailed  SyncStatus = "failed"
)

// Balance はアカウントの残高スナップショットです。
type Balance struct {
	AccountID  string
	Amount     float64
	SyncStatus SyncStatus
	UpdatedAt  time.Time
}
