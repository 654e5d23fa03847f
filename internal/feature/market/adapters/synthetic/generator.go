// Package synthetic は実プロバイダーに到達できないときに使う合成価格生成器を提供します。
package synthetic

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	candleentity "options_backend/internal/feature/candles/domain/entity"
	"options_backend/internal/feature/market/usecase"
)

const (
	// DefaultVolatility は1ステップあたりの最大変動率です。
	DefaultVolatility = 0.0005
	// DefaultBasePrice は基準価格が未設定のシンボルに使う初期価格です。
	DefaultBasePrice = 100.0
)

// Config は合成価格生成器の設定です。
type Config struct {
	Volatility float64            // 1ステップの最大変動率（例: 0.0005 = ±0.05%）
	BasePrices map[string]float64 // シンボルごとの初期価格
	Seed       uint64             // 0の場合は時刻から決める
}

// DefaultBasePrices はデモで扱う主要シンボルの初期価格です。
func DefaultBasePrices() map[string]float64 {
	return map[string]float64{
		"EUR/USD": 1.085,
		"GBP/USD": 1.27,
		"USD/JPY": 150.0,
		"BTC/USD": 65000.0,
		"ETH/USD": 3300.0,
	}
}

// Generator はランダムウォークで価格を生成します。
// 実価格を Observe するとそこから歩きを再開します。
type Generator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	volatility float64
	base       map[string]float64
	last       map[string]float64
}

var _ usecase.SyntheticSource = (*Generator)(nil)

// NewGenerator は新しいGeneratorを生成します。
func NewGenerator(cfg Config) *Generator {
	if cfg.Volatility <= 0 {
		cfg.Volatility = DefaultVolatility
	}
	if cfg.BasePrices == nil {
		cfg.BasePrices = DefaultBasePrices()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	base := make(map[string]float64, len(cfg.BasePrices))
	for k, v := range cfg.BasePrices {
		base[k] = v
	}
	return &Generator{
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		volatility: cfg.Volatility,
		base:       base,
		last:       make(map[string]float64),
	}
}

// Next は直近価格に ±volatility の範囲の変動を加えた価格を返します。
func (g *Generator) Next(symbol string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.current(symbol)
	next := p * (1 + g.step())
	if next <= 0 || math.IsNaN(next) {
		next = p
	}
	g.last[symbol] = next
	return next
}

// Observe は実価格を直近価格として記録します。
func (g *Generator) Observe(symbol string, price float64) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[symbol] = price
}

// History は現在価格から過去に遡ってcount本のローソク足を合成し、古い順に返します。
// 最後の足はendを含む区間に置かれ、その終値が現在価格になります。
func (g *Generator) History(symbol string, interval time.Duration, count int, end time.Time) []candleentity.Candle {
	if count <= 0 || interval <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]candleentity.Candle, count)
	closePrice := g.current(symbol)
	last := end.Truncate(interval)

	for i := count - 1; i >= 0; i-- {
		open := closePrice / (1 + g.step())
		if open <= 0 {
			open = closePrice
		}
		hi := math.Max(open, closePrice) * (1 + g.rng.Float64()*g.volatility)
		lo := math.Min(open, closePrice) * (1 - g.rng.Float64()*g.volatility)

		out[i] = candleentity.Candle{
			Symbol:   symbol,
			Interval: interval,
			Time:     last.Add(-time.Duration(count-1-i) * interval),
			Open:     open,
			High:     hi,
			Low:      lo,
			Close:    closePrice,
			Volume:   int64(1 + g.rng.IntN(30)),
		}
		closePrice = open
	}
	return out
}

// current はロック保持中に呼び出します。
func (g *Generator) current(symbol string) float64 {
	if p, ok := g.last[symbol]; ok {
		return p
	}
	if p, ok := g.base[symbol]; ok {
		return p
	}
	return DefaultBasePrice
}

// step は [-volatility, +volatility] の一様乱数を返します。
func (g *Generator) step() float64 {
	return (2*g.rng.Float64() - 1) * g.volatility
}
