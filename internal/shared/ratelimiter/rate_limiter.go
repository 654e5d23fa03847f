// Package ratelimiter は外部API呼び出しの頻度を制限します。
package ratelimiter

import (
	"log/slog"
	"sync"
	"time"
)

// Limiter は呼び出しを許可するかどうかを判定するインターフェースです。
type Limiter interface {
	Allow() bool
}

// RateLimiter は固定ウィンドウ方式で呼び出し回数を制限します。
// 待機せずに拒否するため、ポーリングループを止めずにフォールバックへ回せます。
type RateLimiter struct {
	mu        sync.Mutex
	limit     int           // ウィンドウあたりの上限
	interval  time.Duration // どの単位でリセットするか
	count     int
	lastReset time.Time
	now       func() time.Time
}

var _ Limiter = (*RateLimiter)(nil)

// NewRateLimiter は新しいRateLimiterのインスタンスを生成します。
// limit が0以下の場合は制限なしとして扱います。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		interval:  interval,
		lastReset: time.Now(),
		now:       time.Now,
	}
}

// Allow は現在のウィンドウで上限に達していなければ true を返し、カウントを進めます。
func (rl *RateLimiter) Allow() bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	// interval を過ぎたらカウントリセット
	if now.Sub(rl.lastReset) >= rl.interval {
		rl.count = 0
		rl.lastReset = now
	}

	if rl.count >= rl.limit {
		slog.Debug("rate limit reached", "limit", rl.limit, "reset_in", rl.interval-now.Sub(rl.lastReset))
		return false
	}
	rl.count++
	return true
}
