package usecase

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"options_backend/internal/feature/market/domain/entity"
)

const (
	// DefaultPollPeriod はシンボルごとのポーリング間隔のデフォルト値です。
	DefaultPollPeriod = 1500 * time.Millisecond
	// DefaultPollJitter はポーリング間隔に加える揺らぎのデフォルト値です。
	DefaultPollJitter = 250 * time.Millisecond
)

// PriceGetter は現在価格を返す価格ソースです。PriceSourceが実装します。
type PriceGetter interface {
	GetPrice(ctx context.Context, symbol string) Quote
}

// MultiplexerConfig はMultiplexerの設定です。
type MultiplexerConfig struct {
	Period time.Duration
	Jitter time.Duration
}

// Multiplexer はシンボルごとに1本のポーリングループを共有し、
// 取得した価格を購読者全員に配信します。
type Multiplexer struct {
	source PriceGetter
	period time.Duration
	jitter time.Duration
	now    func() time.Time
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	feeds  map[string]*feed
	nextID uint64
	closed bool
}

type subscriber struct {
	id     uint64
	fn     func(entity.Tick)
	active atomic.Bool
}

// feed は1シンボル分のポーリングループと購読者リストです。
// subs/seq/latest は Multiplexer.mu で保護されます。
type feed struct {
	symbol    string
	subs      []*subscriber
	cancel    context.CancelFunc
	seq       uint64
	latest    entity.Tick
	hasLatest bool
}

// NewMultiplexer はMultiplexerの新しいインスタンスを生成します。
func NewMultiplexer(source PriceGetter, cfg MultiplexerConfig, logger *slog.Logger) *Multiplexer {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPollPeriod
	}
	if cfg.Jitter < 0 || cfg.Jitter >= cfg.Period {
		cfg.Jitter = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Multiplexer{
		source: source,
		period: cfg.Period,
		jitter: cfg.Jitter,
		now:    time.Now,
		logger: logger.With("component", "multiplexer"),
		ctx:    ctx,
		cancel: cancel,
		feeds:  make(map[string]*feed),
	}
}

// Subscribe はsymbolの価格配信を購読し、購読解除関数を返します。
// 最初の購読者でポーリングループを開始し、最後の購読解除で停止します。
// 購読解除関数は複数回呼んでも安全です。
func (m *Multiplexer) Subscribe(symbol string, onPrice func(entity.Tick)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return func() {}
	}

	m.nextID++
	sub := &subscriber{id: m.nextID, fn: onPrice}
	sub.active.Store(true)

	f, ok := m.feeds[symbol]
	if !ok {
		ctx, cancel := context.WithCancel(m.ctx)
		f = &feed{symbol: symbol, cancel: cancel}
		m.feeds[symbol] = f
		go m.run(ctx, f)
		m.logger.Info("feed started", "symbol", symbol)
	}
	f.subs = append(f.subs, sub)

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(f, sub) })
	}
}

func (m *Multiplexer) unsubscribe(f *feed, sub *subscriber) {
	sub.active.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range f.subs {
		if s.id == sub.id {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			break
		}
	}
	if len(f.subs) > 0 {
		return
	}
	// 1→0 の遷移でループを停止
	f.cancel()
	if m.feeds[f.symbol] == f {
		delete(m.feeds, f.symbol)
	}
	m.logger.Info("feed stopped", "symbol", f.symbol)
}

// run はシンボルのポーリングループです。キャンセル確認後にのみ価格を取得します。
func (m *Multiplexer) run(ctx context.Context, f *feed) {
	for {
		if ctx.Err() != nil {
			return
		}
		q := m.source.GetPrice(ctx, f.symbol)
		if ctx.Err() != nil {
			return
		}
		m.deliver(f, q)

		t := time.NewTimer(m.nextDelay())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// deliver は登録順に同期的にコールバックを呼び出します。
func (m *Multiplexer) deliver(f *feed, q Quote) {
	m.mu.Lock()
	f.seq++
	tick := entity.Tick{
		Symbol: f.symbol,
		Time:   m.now(),
		Price:  q.Price,
		Seq:    f.seq,
		Source: q.Source,
	}
	f.latest = tick
	f.hasLatest = true
	subs := make([]*subscriber, len(f.subs))
	copy(subs, f.subs)
	m.mu.Unlock()

	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		s.fn(tick)
	}
}

func (m *Multiplexer) nextDelay() time.Duration {
	if m.jitter <= 0 {
		return m.period
	}
	// [-jitter, +jitter] の一様分布
	offset := time.Duration(rand.Int64N(int64(2*m.jitter)+1)) - m.jitter
	return m.period + offset
}

// Latest はsymbolで最後に配信されたTickを返します。
func (m *Multiplexer) Latest(symbol string) (entity.Tick, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.feeds[symbol]
	if !ok || !f.hasLatest {
		return entity.Tick{}, false
	}
	return f.latest, true
}

// CurrentPrice は配信中の最新価格がポーリング2周期以内ならそれを返し、
// そうでなければ価格ソースに直接問い合わせます。
func (m *Multiplexer) CurrentPrice(ctx context.Context, symbol string) float64 {
	if t, ok := m.Latest(symbol); ok && m.now().Sub(t.Time) <= 2*m.period {
		return t.Price
	}
	return m.source.GetPrice(ctx, symbol).Price
}

// ActiveFeeds は稼働中のポーリングループ数を返します。
func (m *Multiplexer) ActiveFeeds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.feeds)
}

// Close はすべてのポーリングループを停止します。以降のSubscribeは何もしません。
func (m *Multiplexer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cancel()
	for symbol, f := range m.feeds {
		for _, s := range f.subs {
			s.active.Store(false)
		}
		delete(m.feeds, symbol)
	}
}
