package usecase

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"options_backend/internal/feature/trading/domain/entity"
)

const (
	// DefaultWinProbability はハウスエッジ込みの勝率です。
	DefaultWinProbability = 0.30
	// DefaultPayoutRate は勝ったときにステークに掛ける配当率です。
	DefaultPayoutRate = 0.78
	// DefaultExitVolatility はエントリー価格に対する決済価格の最大変動率です。
	DefaultExitVolatility = 0.002
	// DefaultDecayHorizon はこの期間で変動幅が最大に達します。
	DefaultDecayHorizon = 5 * time.Minute

	minMoveFraction = 0.2
)

// OutcomeConfig はOutcomeModelの設定です。
type OutcomeConfig struct {
	WinProbability float64
	ExitVolatility float64
	DecayHorizon   time.Duration
	// Seed が0以外の場合は決定的な乱数列を使います。
	Seed uint64
}

// OutcomeModel は方向・ステーク・エントリー価格に依存しない固定確率で勝敗を決め、
// 結果と整合する決済価格を合成します。
type OutcomeModel struct {
	winProb    float64
	volatility float64
	horizon    time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewOutcomeModel はOutcomeModelを生成します。範囲外の値はデフォルトに置き換えます。
func NewOutcomeModel(cfg OutcomeConfig) *OutcomeModel {
	if !(cfg.WinProbability > 0 && cfg.WinProbability < 0.5) {
		cfg.WinProbability = DefaultWinProbability
	}
	// 1以上では負けた下方向の決済価格が0以下になりうる
	if !(cfg.ExitVolatility > 0 && cfg.ExitVolatility < 1) {
		cfg.ExitVolatility = DefaultExitVolatility
	}
	if cfg.DecayHorizon <= 0 {
		cfg.DecayHorizon = DefaultDecayHorizon
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &OutcomeModel{
		winProb:    cfg.WinProbability,
		volatility: cfg.ExitVolatility,
		horizon:    cfg.DecayHorizon,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// WinProbability は設定された勝率を返します。
func (m *OutcomeModel) WinProbability() float64 { return m.winProb }

// Decay は期間に応じた変動幅の係数を [0,1] で返します。
func (m *OutcomeModel) Decay(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return math.Min(1, math.Sqrt(float64(d)/float64(m.horizon)))
}

// Draw は勝敗と決済価格を返します。
// 勝ちの場合は予想方向へ、負けの場合は逆方向へエントリー価格を動かします。
func (m *OutcomeModel) Draw(c entity.Contract) (won bool, exitPrice float64) {
	m.mu.Lock()
	won = m.rng.Float64() < m.winProb
	u := minMoveFraction + (1-minMoveFraction)*m.rng.Float64()
	m.mu.Unlock()

	move := c.EntryPrice * m.volatility * m.Decay(c.Duration) * u
	sign := 1.0
	if c.Direction == entity.DirectionDown {
		sign = -1
	}
	if !won {
		sign = -sign
	}
	exitPrice = c.EntryPrice + sign*move
	if exitPrice == c.EntryPrice {
		// 短すぎる期間でも勝敗と価格の向きが一致するよう最小単位だけ動かす
		exitPrice = math.Nextafter(c.EntryPrice, c.EntryPrice+sign)
	}
	return won, exitPrice
}
