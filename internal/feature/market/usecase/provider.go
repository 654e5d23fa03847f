// Package usecase はマーケットフィード（価格取得・多重配信）のビジネスロジックを実装します。
package usecase

import (
	"context"
	"time"

	candleentity "options_backend/internal/feature/candles/domain/entity"
)

// Provider は外部の価格データ提供元を抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Provider interface {
	// Name はログやTick.Sourceに使うプロバイダー名を返します。
	Name() string
	// Quote は銘柄の現在価格を取得します。
	Quote(ctx context.Context, symbol string) (float64, error)
	// TimeSeries は銘柄の直近count本のローソク足を取得します。
	TimeSeries(ctx context.Context, symbol string, interval time.Duration, count int) ([]candleentity.Candle, error)
}

// SyntheticSource は全プロバイダーが失敗した場合に価格を合成する生成器です。
type SyntheticSource interface {
	// Next は直近価格に小さなランダム変動を加えた価格を返します。
	Next(symbol string) float64
	// Observe は実プロバイダーから得た価格を直近価格として記録します。
	Observe(symbol string, price float64)
	// History はendから遡ってcount本の合成ローソク足を生成します（昇順）。
	History(symbol string, interval time.Duration, count int, end time.Time) []candleentity.Candle
}

// Quote は価格とその取得元のペアです。
type Quote struct {
	Price  float64
	Source string
}
