package usecase

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"options_backend/internal/feature/candles/domain/entity"
	marketentity "options_backend/internal/feature/market/domain/entity"
)

const (
	// DefaultInterval はローソク足の時間幅のデフォルト値です。
	DefaultInterval = time.Minute
	// DefaultCapacity はシンボルごとに保持するローソク足の上限（確定足＋形成中の足）です。
	DefaultCapacity = 200
)

// ClosedCandleSink は確定したローソク足の受け取り先です。
type ClosedCandleSink interface {
	CandleClosed(c entity.Candle)
}

// series は1シンボル分の確定足と形成中の足です。
type series struct {
	history []entity.Candle // 古い順、確定済み
	current *entity.Candle
}

// Aggregator はTickをウォールクロックに揃えた固定幅のOHLCV足に集約します。
type Aggregator struct {
	mu       sync.Mutex
	interval time.Duration
	capacity int
	series   map[string]*series
	sink     ClosedCandleSink
	logger   *slog.Logger
}

// NewAggregator はAggregatorの新しいインスタンスを生成します。sinkはnilでも構いません。
func NewAggregator(interval time.Duration, capacity int, sink ClosedCandleSink, logger *slog.Logger) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if capacity <= 1 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		interval: interval,
		capacity: capacity,
		series:   make(map[string]*series),
		sink:     sink,
		logger:   logger.With("component", "aggregator"),
	}
}

// Interval は足の時間幅を返します。
func (a *Aggregator) Interval() time.Duration { return a.interval }

// Capacity はシンボルごとの保持上限を返します。
func (a *Aggregator) Capacity() int { return a.capacity }

// OnTick はTickを形成中の足に反映します。区間をまたいだ場合は足を確定して新しい足を開きます。
// 形成中の足より古いTickは捨てます。
func (a *Aggregator) OnTick(t marketentity.Tick) {
	closed, ok := a.apply(t)
	if ok && a.sink != nil {
		a.sink.CandleClosed(closed)
	}
}

func (a *Aggregator) apply(t marketentity.Tick) (entity.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket := t.Time.UTC().Truncate(a.interval)
	s := a.seriesFor(t.Symbol)

	if s.current == nil {
		// シード済みの最新足が同じ区間なら形成中として引き継ぐ
		if n := len(s.history); n > 0 {
			last := s.history[n-1]
			if last.Time.After(bucket) {
				return entity.Candle{}, false
			}
			if last.Time.Equal(bucket) {
				s.history = s.history[:n-1]
				s.current = &last
				update(s.current, t.Price)
				return entity.Candle{}, false
			}
		}
		s.current = a.open(t.Symbol, bucket, t.Price)
		return entity.Candle{}, false
	}

	switch {
	case bucket.Equal(s.current.Time):
		update(s.current, t.Price)
		return entity.Candle{}, false
	case bucket.Before(s.current.Time):
		a.logger.Debug("dropping late tick", "symbol", t.Symbol, "tick_time", t.Time, "bar_time", s.current.Time)
		return entity.Candle{}, false
	}

	closed := *s.current
	s.history = append(s.history, closed)
	a.evict(s)
	s.current = a.open(t.Symbol, bucket, t.Price)
	return closed, true
}

// Seed は履歴ウィンドウを設定します。既存の状態は置き換えられます。
// 時刻順に並べ、区間境界に揃わない足とOHLC不整合の足は除外します。
func (a *Aggregator) Seed(symbol string, candles []entity.Candle) {
	cs := make([]entity.Candle, 0, len(candles))
	for _, c := range candles {
		if !c.Valid() || !c.Time.Equal(c.Time.Truncate(a.interval)) {
			continue
		}
		c.Symbol = symbol
		c.Interval = a.interval
		c.Time = c.Time.UTC()
		cs = append(cs, c)
	}
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Time.Before(cs[j].Time) })

	// 同一時刻は後勝ち
	dedup := cs[:0]
	for _, c := range cs {
		if n := len(dedup); n > 0 && dedup[n-1].Time.Equal(c.Time) {
			dedup[n-1] = c
			continue
		}
		dedup = append(dedup, c)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s := &series{history: dedup}
	a.evict(s)
	a.series[symbol] = s
}

// Visible は直近window本（確定足＋形成中の足）のコピーを古い順に返します。
// window が0以下または上限を超える場合は保持している全体を返します。
func (a *Aggregator) Visible(symbol string, window int) []entity.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[symbol]
	if !ok {
		return []entity.Candle{}
	}

	total := len(s.history)
	if s.current != nil {
		total++
	}
	if window <= 0 || window > total {
		window = total
	}

	out := make([]entity.Candle, 0, window)
	fromHistory := window
	if s.current != nil {
		fromHistory--
	}
	out = append(out, s.history[len(s.history)-fromHistory:]...)
	if s.current != nil {
		out = append(out, *s.current)
	}
	return out
}

// Len は保持している足の本数を返します。
func (a *Aggregator) Len(symbol string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[symbol]
	if !ok {
		return 0
	}
	n := len(s.history)
	if s.current != nil {
		n++
	}
	return n
}

func (a *Aggregator) seriesFor(symbol string) *series {
	s, ok := a.series[symbol]
	if !ok {
		s = &series{}
		a.series[symbol] = s
	}
	return s
}

func (a *Aggregator) open(symbol string, bucket time.Time, price float64) *entity.Candle {
	return &entity.Candle{
		Symbol:   symbol,
		Interval: a.interval,
		Time:     bucket,
		Open:     price,
		High:     price,
		Low:      price,
		Close:    price,
		Volume:   1,
	}
}

// evict は形成中の足の枠を残して古い足を捨てます。
func (a *Aggregator) evict(s *series) {
	limit := a.capacity - 1
	if over := len(s.history) - limit; over > 0 {
		kept := make([]entity.Candle, limit)
		copy(kept, s.history[over:])
		s.history = kept
	}
}

func update(c *entity.Candle, price float64) {
	c.Close = price
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Volume++
}
