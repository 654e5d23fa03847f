// Package entity はtradingフィーチャーのドメインモデルを定義します。
package entity

import "time"

// Direction は予想の方向です。
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid はup/downのいずれかであればtrueを返します。
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// State はコントラクトの状態です。active → resolved の一方向にのみ遷移します。
type State string

const (
	StateActive   State = "active"
	StateResolved State = "resolved"
)

// Outcome は判定結果です。
type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
)

// Contract は時間制限付きのバイナリオプション取引です。
// ExitPrice・Outcome・Payout・ResolvedAt は State が resolved の場合のみ意味を持ちます。
type Contract struct {
	ID         string
	AccountID  string
	Symbol     string
	Direction  Direction
	Stake      float64
	EntryPrice float64
	OpenedAt   time.Time
	ExpiresAt  time.Time
	Duration   time.Duration
	PayoutRate float64
	State      State

	ExitPrice  float64
	Outcome    Outcome
	Payout     float64
	ResolvedAt time.Time
}

// Resolved は判定済みであればtrueを返します。
func (c Contract) Resolved() bool {
	return c.State == StateResolved
}

// Expired はnow時点で満期に達していればtrueを返します。
func (c Contract) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ContractPatch は判定時にリモートストアへ反映する差分です。
type ContractPatch struct {
	State      State
	ExitPrice  float64
	Outcome    Outcome
	Payout     float64
	ResolvedAt time.Time
}

// Patch は判定済みコントラクトの差分を返します。
func (c Contract) Patch() ContractPatch {
	return ContractPatch{
		State:      c.State,
		ExitPrice:  c.ExitPrice,
		Outcome:    c.Outcome,
		Payout:     c.Payout,
		ResolvedAt: c.ResolvedAt,
	}
}
