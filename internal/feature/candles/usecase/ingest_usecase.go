package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"options_backend/internal/feature/candles/domain/entity"
)

// DefaultIngestParallelism は同時に取得する銘柄・時間足の組の数です。
const DefaultIngestParallelism = 2

// IngestUsecase は価格ソースから確定済みのローソク足を取得し、リポジトリへ保存します。
type IngestUsecase struct {
	source   SeriesSource
	repo     CandleRepository
	parallel int
	now      func() time.Time
	logger   *slog.Logger
}

// NewIngestUsecase は新しい IngestUsecase を作成します。
func NewIngestUsecase(source SeriesSource, repo CandleRepository, parallel int, logger *slog.Logger) *IngestUsecase {
	if parallel <= 0 {
		parallel = DefaultIngestParallelism
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUsecase{
		source:   source,
		repo:     repo,
		parallel: parallel,
		now:      time.Now,
		logger:   logger.With("component", "candle_ingest"),
	}
}

// ingestOne は1銘柄・1時間足の系列を取得し、形成中の足を除いて一括保存します。保存件数を返します。
func (iu *IngestUsecase) ingestOne(ctx context.Context, symbol string, interval time.Duration, count int) (int, error) {
	cs := iu.source.GetCandles(ctx, symbol, interval, count)

	now := iu.now()
	closed := make([]entity.Candle, 0, len(cs))
	for _, c := range cs {
		if c.Time.Add(interval).After(now) || !c.Valid() {
			continue
		}
		c.Symbol = symbol
		c.Interval = interval
		closed = append(closed, c)
	}
	if len(closed) == 0 {
		return 0, nil
	}
	if err := iu.repo.UpsertBatch(ctx, closed); err != nil {
		return 0, fmt.Errorf("upsert %s %s: %w", symbol, interval, err)
	}
	return len(closed), nil
}

// IngestAll は全銘柄を各時間足で取得して保存します。1つでも失敗すると残りを中断してエラーを返します。
func (iu *IngestUsecase) IngestAll(ctx context.Context, symbols []string, intervals []time.Duration, count int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(iu.parallel)

	for _, s := range symbols {
		for _, interval := range intervals {
			g.Go(func() error {
				n, err := iu.ingestOne(ctx, s, interval, count)
				if err != nil {
					return err
				}
				iu.logger.Info("candles ingested", "symbol", s, "interval", interval, "count", n)
				return nil
			})
		}
	}
	return g.Wait()
}
