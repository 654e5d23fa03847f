package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	candleentity "options_backend/internal/feature/candles/domain/entity"
	"options_backend/internal/feature/market/domain"
)

// SourceSynthetic は合成価格のTick.Source値です。
const SourceSynthetic = "synthetic"

// PriceSource は優先順位付きのプロバイダーチェーンから価格を取得します。
// すべて失敗した場合は合成価格にフォールバックするため、呼び出し元にエラーを返しません。
// デモの継続性をデータ精度より優先する方針です。
type PriceSource struct {
	providers []Provider
	synth     SyntheticSource
	now       func() time.Time
	logger    *slog.Logger
}

// NewPriceSource はPriceSourceの新しいインスタンスを生成します。
// providersは優先順（先頭がプライマリ）で渡します。
func NewPriceSource(synth SyntheticSource, logger *slog.Logger, providers ...Provider) *PriceSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceSource{
		providers: providers,
		synth:     synth,
		now:       time.Now,
		logger:    logger.With("component", "price_source"),
	}
}

// GetPrice は銘柄の現在価格を返します。失敗することはありません。
func (s *PriceSource) GetPrice(ctx context.Context, symbol string) Quote {
	var errs []error
	for _, p := range s.providers {
		price, err := p.Quote(ctx, symbol)
		if err == nil && validPrice(price) {
			s.synth.Observe(symbol, price)
			return Quote{Price: price, Source: p.Name()}
		}
		if err == nil {
			err = fmt.Errorf("%s: %w: price %v", p.Name(), domain.ErrMalformedPayload, price)
		}
		errs = append(errs, err)
	}

	if len(s.providers) > 0 {
		s.logger.Debug("falling back to synthetic price",
			"symbol", symbol,
			"error", fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, errors.Join(errs...)))
	}
	return Quote{Price: s.synth.Next(symbol), Source: SourceSynthetic}
}

// GetCandles は銘柄のローソク足をcount本、古い順に返します。
// 実プロバイダーに到達できない場合は現在価格から遡って合成し、空を返しません。
func (s *PriceSource) GetCandles(ctx context.Context, symbol string, interval time.Duration, count int) []candleentity.Candle {
	if count <= 0 {
		return nil
	}
	for _, p := range s.providers {
		cs, err := p.TimeSeries(ctx, symbol, interval, count)
		if err != nil {
			s.logger.Debug("time series provider failed", "provider", p.Name(), "symbol", symbol, "error", err)
			continue
		}
		cs = normalizeSeries(cs, symbol, interval)
		if len(cs) == 0 {
			continue
		}
		if len(cs) > count {
			cs = cs[len(cs)-count:]
		}
		s.synth.Observe(symbol, cs[len(cs)-1].Close)
		return cs
	}

	s.logger.Debug("synthesizing candle history", "symbol", symbol, "count", count)
	return s.synth.History(symbol, interval, count, s.now())
}

// normalizeSeries は銘柄・時間足を設定し、不正なバーを除外して昇順に並べます。
func normalizeSeries(cs []candleentity.Candle, symbol string, interval time.Duration) []candleentity.Candle {
	out := make([]candleentity.Candle, 0, len(cs))
	for _, c := range cs {
		if !validPrice(c.Open) || !validPrice(c.Close) || !c.Valid() {
			continue
		}
		c.Symbol = symbol
		c.Interval = interval
		c.Time = c.Time.Truncate(interval)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
