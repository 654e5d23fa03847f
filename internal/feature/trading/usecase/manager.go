// Package usecase はコントラクトのライフサイクル（建玉・満期・判定・精算）を実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	marketentity "options_backend/internal/feature/market/domain/entity"
	"options_backend/internal/feature/trading/domain"
	"options_backend/internal/feature/trading/domain/entity"
	"options_backend/internal/platform/clock"
)

const (
	DefaultMinStake    = 1.0
	DefaultMinDuration = 5 * time.Second
	DefaultMaxDuration = time.Hour

	storeTimeout = 5 * time.Second
)

// Balance はステークの引き落としと配当の入金を行います。
type Balance interface {
	Debit(ctx context.Context, accountID string, amount float64) (float64, error)
	Credit(ctx context.Context, accountID string, amount float64) (float64, error)
}

// PriceReader は銘柄の現在価格を返します。
type PriceReader interface {
	CurrentPrice(ctx context.Context, symbol string) float64
}

// ContractStore はコントラクトのリモート保存先です。失敗はログに残すだけで状態には影響しません。
type ContractStore interface {
	CreateContract(ctx context.Context, c entity.Contract) error
	UpdateContract(ctx context.Context, id string, patch entity.ContractPatch) error
}

// ContractFinder を実装したstoreは、メモリに無いコントラクト（再起動前のもの）の参照に使われます。
type ContractFinder interface {
	FindContract(ctx context.Context, id string) (entity.Contract, error)
}

// SymbolCatalog は取引可能な銘柄を判定します。
type SymbolCatalog interface {
	IsActive(ctx context.Context, symbol string) (bool, error)
}

// Config はManagerの設定です。ゼロ値の項目はデフォルトになります。
type Config struct {
	MinStake       float64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	PayoutRate     float64
	WinProbability float64
	ExitVolatility float64
	DecayHorizon   time.Duration
	Seed           uint64
}

func (c Config) withDefaults() Config {
	if !(c.MinStake > 0) {
		c.MinStake = DefaultMinStake
	}
	if c.MinDuration <= 0 {
		c.MinDuration = DefaultMinDuration
	}
	if c.MaxDuration < c.MinDuration {
		c.MaxDuration = max(DefaultMaxDuration, c.MinDuration)
	}
	if !(c.PayoutRate > 0) || math.IsInf(c.PayoutRate, 0) {
		c.PayoutRate = DefaultPayoutRate
	}
	return c
}

// Manager はコントラクトを排他的に保持し、満期ごとに一度だけ判定します。
type Manager struct {
	cfg     Config
	balance Balance
	prices  PriceReader
	symbols SymbolCatalog
	store   ContractStore
	clock   clock.Clock
	outcome *OutcomeModel
	newID   func() string
	logger  *slog.Logger

	mu       sync.Mutex
	active   map[string]*entity.Contract
	resolved map[string]int // historyのインデックス
	history  []entity.Contract
	sched    schedule
	wake     chan struct{}
}

// NewManager はManagerを生成します。symbolsとstoreはnilでも構いません。clkがnilの場合は実時間を使います。
func NewManager(cfg Config, balance Balance, prices PriceReader, symbols SymbolCatalog, store ContractStore, clk clock.Clock, logger *slog.Logger) *Manager {
	cfg = cfg.withDefaults()
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		balance: balance,
		prices:  prices,
		symbols: symbols,
		store:   store,
		clock:   clk,
		outcome: NewOutcomeModel(OutcomeConfig{
			WinProbability: cfg.WinProbability,
			ExitVolatility: cfg.ExitVolatility,
			DecayHorizon:   cfg.DecayHorizon,
			Seed:           cfg.Seed,
		}),
		newID:    uuid.NewString,
		logger:   logger.With("component", "contract_manager"),
		active:   make(map[string]*entity.Contract),
		resolved: make(map[string]int),
		wake:     make(chan struct{}, 1),
	}
}

// Open はステークを引き落としてコントラクトを建てます。
// 残高不足の場合は domain.ErrInsufficientBalance を返し、何も変更しません。
func (m *Manager) Open(ctx context.Context, accountID, symbol string, direction entity.Direction, stake float64, duration time.Duration) (entity.Contract, error) {
	symbol = marketentity.NormalizeSymbol(symbol)
	if err := m.validate(symbol, direction, stake, duration); err != nil {
		return entity.Contract{}, err
	}
	if m.symbols != nil {
		ok, err := m.symbols.IsActive(ctx, symbol)
		if err != nil {
			return entity.Contract{}, fmt.Errorf("check symbol %s: %w", symbol, err)
		}
		if !ok {
			return entity.Contract{}, fmt.Errorf("%w: unknown symbol %s", domain.ErrInvalidContract, symbol)
		}
	}

	price := m.prices.CurrentPrice(ctx, symbol)
	if !(price > 0) || math.IsInf(price, 0) {
		return entity.Contract{}, fmt.Errorf("%w: no price for %s", domain.ErrInvalidContract, symbol)
	}

	if _, err := m.balance.Debit(ctx, accountID, stake); err != nil {
		return entity.Contract{}, err
	}

	now := m.clock.Now()
	c := entity.Contract{
		ID:         m.newID(),
		AccountID:  accountID,
		Symbol:     symbol,
		Direction:  direction,
		Stake:      stake,
		EntryPrice: price,
		OpenedAt:   now,
		ExpiresAt:  now.Add(duration),
		Duration:   duration,
		PayoutRate: m.cfg.PayoutRate,
		State:      entity.StateActive,
	}

	m.mu.Lock()
	stored := c
	m.active[c.ID] = &stored
	m.sched.add(c.ID, c.ExpiresAt)
	m.mu.Unlock()
	m.notify()

	m.logger.Info("contract opened",
		"contract_id", c.ID, "account_id", accountID, "symbol", symbol,
		"direction", direction, "stake", stake, "entry_price", price, "expires_at", c.ExpiresAt)

	if m.store != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer cancel()
		if err := m.store.CreateContract(sctx, c); err != nil {
			m.logger.Warn("failed to persist contract", "contract_id", c.ID, "error", fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err))
		}
	}
	return c, nil
}

func (m *Manager) validate(symbol string, direction entity.Direction, stake float64, duration time.Duration) error {
	if math.IsNaN(stake) || math.IsInf(stake, 0) || stake <= 0 || stake < m.cfg.MinStake {
		return domain.ErrInvalidStake
	}
	if symbol == "" {
		return fmt.Errorf("%w: symbol is required", domain.ErrInvalidContract)
	}
	if !direction.Valid() {
		return fmt.Errorf("%w: direction %q", domain.ErrInvalidContract, direction)
	}
	if duration < m.cfg.MinDuration || duration > m.cfg.MaxDuration {
		return fmt.Errorf("%w: duration %s outside [%s, %s]", domain.ErrInvalidContract, duration, m.cfg.MinDuration, m.cfg.MaxDuration)
	}
	return nil
}

// Resolve は満期を迎えたコントラクトを判定・精算します。
// 判定済みの場合は既存の結果をそのまま返します。
func (m *Manager) Resolve(ctx context.Context, id string) (entity.Contract, error) {
	c, err := m.resolve(ctx, id, m.clock.Now())
	if errors.Is(err, domain.ErrDuplicateResolution) {
		return c, nil
	}
	return c, err
}

// ResolveDue は現在時刻までに満期を迎えたコントラクトを (満期, ID) 順に判定し、新たに判定したものを返します。
func (m *Manager) ResolveDue(ctx context.Context) []entity.Contract {
	now := m.clock.Now()
	m.mu.Lock()
	ids := m.sched.popDue(now)
	m.mu.Unlock()

	var out []entity.Contract
	for _, id := range ids {
		c, err := m.resolve(ctx, id, now)
		switch {
		case err == nil:
			out = append(out, c)
		case errors.Is(err, domain.ErrDuplicateResolution):
		default:
			m.logger.Error("scheduled resolution failed", "contract_id", id, "error", err)
		}
	}
	return out
}

func (m *Manager) resolve(ctx context.Context, id string, now time.Time) (entity.Contract, error) {
	m.mu.Lock()
	if i, ok := m.resolved[id]; ok {
		c := m.history[i]
		m.mu.Unlock()
		return c, domain.ErrDuplicateResolution
	}
	p, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return entity.Contract{}, domain.ErrContractNotFound
	}
	if !p.Expired(now) {
		c := *p
		m.mu.Unlock()
		return c, domain.ErrNotExpired
	}

	c := *p
	won, exit := m.outcome.Draw(c)
	c.State = entity.StateResolved
	c.ExitPrice = exit
	c.ResolvedAt = now
	if won {
		c.Outcome = entity.OutcomeWon
		c.Payout = c.Stake * c.PayoutRate
	} else {
		c.Outcome = entity.OutcomeLost
	}
	delete(m.active, id)
	m.resolved[id] = len(m.history)
	m.history = append(m.history, c)
	m.mu.Unlock()

	m.settle(ctx, c)
	return c, nil
}

// settle は配当を入金し、判定結果を保存します。ロックの外で呼び出します。
func (m *Manager) settle(ctx context.Context, c entity.Contract) {
	m.logger.Info("contract resolved",
		"contract_id", c.ID, "account_id", c.AccountID, "outcome", c.Outcome,
		"entry_price", c.EntryPrice, "exit_price", c.ExitPrice, "payout", c.Payout)

	if c.Outcome == entity.OutcomeWon {
		if _, err := m.balance.Credit(ctx, c.AccountID, c.Stake+c.Payout); err != nil {
			m.logger.Error("failed to credit payout", "contract_id", c.ID, "account_id", c.AccountID, "amount", c.Stake+c.Payout, "error", err)
		}
	}

	if m.store != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer cancel()
		if err := m.store.UpdateContract(sctx, c.ID, c.Patch()); err != nil {
			m.logger.Warn("failed to persist resolution", "contract_id", c.ID, "error", fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err))
		}
	}
}

// Run は最も早い満期まで待機して判定を繰り返すスケジューラーです。新規建玉で起床します。
func (m *Manager) Run(ctx context.Context) error {
	for {
		m.ResolveDue(ctx)

		var timer <-chan time.Time
		m.mu.Lock()
		next, ok := m.sched.next()
		m.mu.Unlock()
		if ok {
			timer = m.clock.After(next.Sub(m.clock.Now()))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-m.wake:
		case <-timer:
		}
	}
}

func (m *Manager) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Get はコントラクトのコピーを返します。メモリに無い場合はstoreを参照します。
func (m *Manager) Get(ctx context.Context, id string) (entity.Contract, error) {
	m.mu.Lock()
	if p, ok := m.active[id]; ok {
		c := *p
		m.mu.Unlock()
		return c, nil
	}
	if i, ok := m.resolved[id]; ok {
		c := m.history[i]
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	finder, ok := m.store.(ContractFinder)
	if !ok {
		return entity.Contract{}, domain.ErrContractNotFound
	}
	c, err := finder.FindContract(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrContractNotFound) {
			return entity.Contract{}, err
		}
		return entity.Contract{}, fmt.Errorf("%w: find contract %s: %w", domain.ErrPersistenceFailure, id, err)
	}
	return c, nil
}

// Active はアカウントの未判定コントラクトを満期順に返します。
func (m *Manager) Active(accountID string) []entity.Contract {
	m.mu.Lock()
	out := make([]entity.Contract, 0)
	for _, p := range m.active {
		if p.AccountID == accountID {
			out = append(out, *p)
		}
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b entity.Contract) int {
		if c := a.ExpiresAt.Compare(b.ExpiresAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// History はアカウントの判定済みコントラクトを判定順に返します。
func (m *Manager) History(accountID string) []entity.Contract {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Contract, 0)
	for _, c := range m.history {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out
}

// HistorySince は全アカウントの判定済みコントラクトのうちcursor以降を返し、次のカーソルを返します。
func (m *Manager) HistorySince(cursor int) ([]entity.Contract, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(m.history) {
		return nil, len(m.history)
	}
	return slices.Clone(m.history[cursor:]), len(m.history)
}
