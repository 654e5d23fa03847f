package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options_backend/internal/feature/trading/domain/entity"
)

func TestNewOutcomeModel_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		winProb  float64
		wantProb float64
	}{
		{"configured", 0.25, 0.25},
		{"zero", 0, DefaultWinProbability},
		{"fair coin is not a house edge", 0.5, DefaultWinProbability},
		{"above half", 0.9, DefaultWinProbability},
		{"NaN", math.NaN(), DefaultWinProbability},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewOutcomeModel(OutcomeConfig{WinProbability: tt.winProb})
			assert.Equal(t, tt.wantProb, m.WinProbability())
		})
	}
}

func TestOutcomeModel_Decay(t *testing.T) {
	t.Parallel()

	m := NewOutcomeModel(OutcomeConfig{DecayHorizon: 100 * time.Second, Seed: 1})

	assert.Equal(t, 0.0, m.Decay(0))
	assert.InDelta(t, 0.5, m.Decay(25*time.Second), 1e-12)
	assert.Equal(t, 1.0, m.Decay(100*time.Second))
	assert.Equal(t, 1.0, m.Decay(time.Hour), "bounded by 1")
}

func TestOutcomeModel_DistributionConvergesToWinProbability(t *testing.T) {
	t.Parallel()

	m := NewOutcomeModel(OutcomeConfig{WinProbability: 0.30, Seed: 42})
	c := entity.Contract{Direction: entity.DirectionUp, EntryPrice: 1.0851, Duration: 30 * time.Second}

	const n = 20000
	wins := 0
	for range n {
		if won, _ := m.Draw(c); won {
			wins++
		}
	}
	rate := float64(wins) / n
	// 標準誤差 sqrt(0.3*0.7/20000) ≈ 0.0032 の約5倍
	assert.InDelta(t, 0.30, rate, 0.016)
}

func TestOutcomeModel_ExitPriceMatchesOutcome(t *testing.T) {
	t.Parallel()

	m := NewOutcomeModel(OutcomeConfig{ExitVolatility: 0.01, DecayHorizon: time.Minute, Seed: 7})

	for _, dir := range []entity.Direction{entity.DirectionUp, entity.DirectionDown} {
		for _, d := range []time.Duration{time.Millisecond, 5 * time.Second, time.Minute, time.Hour} {
			c := entity.Contract{Direction: dir, EntryPrice: 100, Duration: d}
			for range 200 {
				won, exit := m.Draw(c)
				up := exit > c.EntryPrice
				favourable := (dir == entity.DirectionUp) == up
				assert.Equal(t, won, favourable, "dir=%s d=%s won=%v exit=%v", dir, d, won, exit)

				maxMove := c.EntryPrice * 0.01 * m.Decay(d)
				assert.LessOrEqual(t, math.Abs(exit-c.EntryPrice), maxMove+1e-9)
			}
		}
	}
}

func TestOutcomeModel_ExitPriceStaysPositive(t *testing.T) {
	t.Parallel()

	for _, vol := range []float64{1, 1.5, 50, math.Inf(1)} {
		m := NewOutcomeModel(OutcomeConfig{ExitVolatility: vol, DecayHorizon: time.Minute, Seed: 11})
		for _, dir := range []entity.Direction{entity.DirectionUp, entity.DirectionDown} {
			c := entity.Contract{Direction: dir, EntryPrice: 1.085, Duration: time.Hour}
			for range 200 {
				_, exit := m.Draw(c)
				require.Greater(t, exit, 0.0, "vol=%v dir=%s", vol, dir)
				assert.LessOrEqual(t, math.Abs(exit-c.EntryPrice), c.EntryPrice*DefaultExitVolatility+1e-9)
			}
		}
	}
}

func TestOutcomeModel_IndependentOfDirectionAndStake(t *testing.T) {
	t.Parallel()

	// 同じシードなら方向やステークが違っても勝敗列は同じ
	a := NewOutcomeModel(OutcomeConfig{Seed: 99})
	b := NewOutcomeModel(OutcomeConfig{Seed: 99})

	for i := range 500 {
		wa, _ := a.Draw(entity.Contract{Direction: entity.DirectionUp, Stake: 10, EntryPrice: 1.08, Duration: time.Minute})
		wb, _ := b.Draw(entity.Contract{Direction: entity.DirectionDown, Stake: 5000, EntryPrice: 65000, Duration: time.Second})
		assert.Equal(t, wa, wb, "draw %d", i)
	}
}
