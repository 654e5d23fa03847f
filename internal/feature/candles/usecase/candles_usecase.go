// Package usecase はローソク足の集約と取得のビジネスロジックを実装します。
package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"options_backend/internal/feature/candles/domain/entity"
	marketentity "options_backend/internal/feature/market/domain/entity"
)

// persistTimeout は確定足1本の保存に許す時間です。
const persistTimeout = 3 * time.Second

// CandleRepository は確定足の永続化レイヤーを抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type CandleRepository interface {
	// UpsertBatch はローソク足を (symbol, interval, time) 単位で挿入または更新します。
	UpsertBatch(ctx context.Context, candles []entity.Candle) error
	// Find は新しい順に最大limit本のローソク足を返します。
	Find(ctx context.Context, symbol string, interval time.Duration, limit int) ([]entity.Candle, error)
}

// SeriesSource はシード用の過去足を提供します。PriceSourceが実装します。
type SeriesSource interface {
	GetCandles(ctx context.Context, symbol string, interval time.Duration, count int) []entity.Candle
}

// TickFeed は価格配信の購読インターフェースです。Multiplexerが実装します。
type TickFeed interface {
	Subscribe(symbol string, onPrice func(marketentity.Tick)) (unsubscribe func())
}

type tracked struct {
	once  sync.Once
	unsub func()
}

// CandlesUsecase はシンボルごとに集約器をシードし、価格配信に接続します。
type CandlesUsecase struct {
	agg    *Aggregator
	source SeriesSource
	feed   TickFeed
	repo   CandleRepository
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	tracked map[string]*tracked
	stopped bool
}

// NewCandlesUsecase はCandlesUsecaseの新しいインスタンスを生成します。
// repoがnilの場合、確定足は保存されません。
func NewCandlesUsecase(interval time.Duration, capacity int, source SeriesSource, feed TickFeed, repo CandleRepository, logger *slog.Logger) *CandlesUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	uc := &CandlesUsecase{
		source:  source,
		feed:    feed,
		repo:    repo,
		now:     time.Now,
		logger:  logger.With("component", "candles"),
		tracked: make(map[string]*tracked),
	}
	var sink ClosedCandleSink
	if repo != nil {
		sink = uc
	}
	uc.agg = NewAggregator(interval, capacity, sink, logger)
	return uc
}

// Aggregator は内部の集約器を返します。
func (uc *CandlesUsecase) Aggregator() *Aggregator { return uc.agg }

// Track はsymbolの集約を開始します。2回目以降の呼び出しは何もしません。
// 保存済みの確定足が直近まで揃っていればそれを、そうでなければ価格ソースの過去足をシードに使います。
func (uc *CandlesUsecase) Track(ctx context.Context, symbol string) {
	uc.mu.Lock()
	if uc.stopped {
		uc.mu.Unlock()
		return
	}
	tr, ok := uc.tracked[symbol]
	if !ok {
		tr = &tracked{}
		uc.tracked[symbol] = tr
	}
	uc.mu.Unlock()

	tr.once.Do(func() {
		uc.agg.Seed(symbol, uc.seed(ctx, symbol))
		unsub := uc.feed.Subscribe(symbol, uc.agg.OnTick)

		uc.mu.Lock()
		defer uc.mu.Unlock()
		if uc.stopped {
			unsub()
			return
		}
		tr.unsub = unsub
		uc.logger.Info("tracking symbol", "symbol", symbol, "seeded", uc.agg.Len(symbol))
	})
}

func (uc *CandlesUsecase) seed(ctx context.Context, symbol string) []entity.Candle {
	interval, capacity := uc.agg.Interval(), uc.agg.Capacity()

	if uc.repo != nil {
		stored, err := uc.repo.Find(ctx, symbol, interval, capacity)
		if err != nil {
			uc.logger.Warn("failed to load stored candles", "symbol", symbol, "error", err)
		} else if len(stored) > 0 && uc.now().Sub(stored[0].Time) <= 2*interval {
			return stored
		}
	}
	return uc.source.GetCandles(ctx, symbol, interval, capacity)
}

// GetCandles は直近window本のローソク足を古い順に返します。未追跡のシンボルはその場で追跡を始めます。
func (uc *CandlesUsecase) GetCandles(ctx context.Context, symbol string, window int) []entity.Candle {
	uc.Track(ctx, symbol)
	return uc.agg.Visible(symbol, window)
}

// CandleClosed は確定足を保存します（ベストエフォート）。
func (uc *CandlesUsecase) CandleClosed(c entity.Candle) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := uc.repo.UpsertBatch(ctx, []entity.Candle{c}); err != nil {
		uc.logger.Warn("failed to persist closed candle", "symbol", c.Symbol, "time", c.Time, "error", err)
	}
}

// Stop はすべての購読を解除します。以降のTrackは何もしません。
func (uc *CandlesUsecase) Stop() {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.stopped = true
	for symbol, tr := range uc.tracked {
		if tr.unsub != nil {
			tr.unsub()
		}
		delete(uc.tracked, symbol)
	}
}
