package usecase_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerusecase "options_backend/internal/feature/ledger/usecase"
	"options_backend/internal/feature/trading/domain"
	"options_backend/internal/feature/trading/domain/entity"
	"options_backend/internal/feature/trading/usecase"
	"options_backend/internal/platform/clock"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

var start = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// stubPrices は固定価格を返すPriceReaderです。
type stubPrices struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newStubPrices(kv ...any) *stubPrices {
	p := &stubPrices{prices: map[string]float64{}}
	for i := 0; i+1 < len(kv); i += 2 {
		p.prices[kv[i].(string)] = kv[i+1].(float64)
	}
	return p
}

func (p *stubPrices) CurrentPrice(_ context.Context, symbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prices[symbol]
}

// mockBalance はBalanceインターフェースのモック実装です。
type mockBalance struct {
	mu         sync.Mutex
	DebitFunc  func(ctx context.Context, accountID string, amount float64) (float64, error)
	CreditFunc func(ctx context.Context, accountID string, amount float64) (float64, error)
	Credits    []float64
	Debits     []float64
}

func (m *mockBalance) Debit(ctx context.Context, accountID string, amount float64) (float64, error) {
	m.mu.Lock()
	m.Debits = append(m.Debits, amount)
	m.mu.Unlock()
	if m.DebitFunc != nil {
		return m.DebitFunc(ctx, accountID, amount)
	}
	return 0, nil
}

func (m *mockBalance) Credit(ctx context.Context, accountID string, amount float64) (float64, error) {
	m.mu.Lock()
	m.Credits = append(m.Credits, amount)
	m.mu.Unlock()
	if m.CreditFunc != nil {
		return m.CreditFunc(ctx, accountID, amount)
	}
	return 0, nil
}

func (m *mockBalance) credits() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.Credits...)
}

// mockContractStore はContractStoreインターフェースのモック実装です。
type mockContractStore struct {
	mu        sync.Mutex
	Err       error
	Created   []entity.Contract
	Updated   map[string]entity.ContractPatch
	UpdateCnt int
}

func (m *mockContractStore) CreateContract(_ context.Context, c entity.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, c)
	return m.Err
}

func (m *mockContractStore) UpdateContract(_ context.Context, id string, patch entity.ContractPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Updated == nil {
		m.Updated = map[string]entity.ContractPatch{}
	}
	m.Updated[id] = patch
	m.UpdateCnt++
	return m.Err
}

// findingStore はFindContractも実装するContractStoreです。
type findingStore struct {
	mockContractStore
	FindFunc func(ctx context.Context, id string) (entity.Contract, error)
}

func (m *findingStore) FindContract(ctx context.Context, id string) (entity.Contract, error) {
	return m.FindFunc(ctx, id)
}

// stubCatalog はSymbolCatalogのスタブです。
type stubCatalog struct {
	codes map[string]bool
	err   error
}

func (c stubCatalog) IsActive(_ context.Context, symbol string) (bool, error) {
	return c.codes[symbol], c.err
}

func newLedger() *ledgerusecase.Ledger {
	return ledgerusecase.NewLedger(ledgerusecase.Config{InitialBalance: 100}, nil, nil, nil, nil)
}

func balanceOf(t *testing.T, l *ledgerusecase.Ledger, id string) float64 {
	t.Helper()
	b, err := l.Balance(context.Background(), id)
	require.NoError(t, err)
	return b.Amount
}

// EURUSDで10を賭けると残高は90になり、判定後は負けで90、勝ちで107.8になる
func TestManager_OpenResolveScenario(t *testing.T) {
	t.Parallel()

	seen := map[entity.Outcome]bool{}
	for seed := uint64(1); seed <= 40 && len(seen) < 2; seed++ {
		ledger := newLedger()
		clk := clock.NewFake(start)
		m := usecase.NewManager(usecase.Config{PayoutRate: 0.78, Seed: seed}, ledger, newStubPrices("EUR/USD", 1.0850), nil, nil, clk, nil)
		ctx := context.Background()

		c, err := m.Open(ctx, "acc-1", "EURUSD", entity.DirectionUp, 10, 30*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "EUR/USD", c.Symbol)
		assert.Equal(t, 1.0850, c.EntryPrice)
		assert.Equal(t, start.Add(30*time.Second), c.ExpiresAt)
		assert.Equal(t, entity.StateActive, c.State)
		assert.Equal(t, 90.0, balanceOf(t, ledger, "acc-1"))

		clk.Advance(30 * time.Second)
		r, err := m.Resolve(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StateResolved, r.State)
		assert.Equal(t, start.Add(30*time.Second), r.ResolvedAt)
		seen[r.Outcome] = true

		switch r.Outcome {
		case entity.OutcomeWon:
			assert.Greater(t, r.ExitPrice, r.EntryPrice)
			assert.InDelta(t, 7.8, r.Payout, 1e-9)
			assert.InDelta(t, 107.8, balanceOf(t, ledger, "acc-1"), 1e-9)
		case entity.OutcomeLost:
			assert.Less(t, r.ExitPrice, r.EntryPrice)
			assert.Zero(t, r.Payout)
			assert.Equal(t, 90.0, balanceOf(t, ledger, "acc-1"))
		default:
			t.Fatalf("unexpected outcome %q", r.Outcome)
		}
	}
	assert.Len(t, seen, 2, "both outcomes should appear across seeds")
}

func TestManager_OpenInsufficientBalance(t *testing.T) {
	t.Parallel()

	ledger := newLedger()
	store := &mockContractStore{}
	m := usecase.NewManager(usecase.Config{}, ledger, newStubPrices("EUR/USD", 1.085), nil, store, clock.NewFake(start), nil)

	_, err := m.Open(context.Background(), "acc-1", "EUR/USD", entity.DirectionDown, 150, time.Minute)

	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, 100.0, balanceOf(t, ledger, "acc-1"))
	assert.Empty(t, m.Active("acc-1"))
	assert.Empty(t, store.Created)
}

func TestManager_OpenValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		symbol    string
		direction entity.Direction
		stake     float64
		duration  time.Duration
		wantErr   error
	}{
		{"zero stake", "EUR/USD", entity.DirectionUp, 0, time.Minute, domain.ErrInvalidStake},
		{"negative stake", "EUR/USD", entity.DirectionUp, -5, time.Minute, domain.ErrInvalidStake},
		{"NaN stake", "EUR/USD", entity.DirectionUp, math.NaN(), time.Minute, domain.ErrInvalidStake},
		{"infinite stake", "EUR/USD", entity.DirectionUp, math.Inf(1), time.Minute, domain.ErrInvalidStake},
		{"below min stake", "EUR/USD", entity.DirectionUp, 0.5, time.Minute, domain.ErrInvalidStake},
		{"unknown direction", "EUR/USD", "sideways", 10, time.Minute, domain.ErrInvalidContract},
		{"too short", "EUR/USD", entity.DirectionUp, 10, time.Second, domain.ErrInvalidContract},
		{"too long", "EUR/USD", entity.DirectionUp, 10, 2 * time.Hour, domain.ErrInvalidContract},
		{"missing symbol", "", entity.DirectionUp, 10, time.Minute, domain.ErrInvalidContract},
		{"no price", "XAU/USD", entity.DirectionUp, 10, time.Minute, domain.ErrInvalidContract},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bal := &mockBalance{}
			m := usecase.NewManager(usecase.Config{MinStake: 1, MinDuration: 5 * time.Second, MaxDuration: time.Hour},
				bal, newStubPrices("EUR/USD", 1.085), nil, nil, clock.NewFake(start), nil)

			_, err := m.Open(context.Background(), "acc-1", tt.symbol, tt.direction, tt.stake, tt.duration)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, bal.Debits, "no side effect on rejection")
		})
	}
}

func TestManager_OpenChecksSymbolCatalog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		symbol  string
		catalog stubCatalog
		wantErr error
	}{
		{"listed symbol", "eurusd", stubCatalog{codes: map[string]bool{"EUR/USD": true}}, nil},
		{"unlisted symbol", "EUR/USD", stubCatalog{codes: map[string]bool{"BTC/USD": true}}, domain.ErrInvalidContract},
		{"catalog failure", "EUR/USD", stubCatalog{err: errors.New("db down")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bal := &mockBalance{}
			m := usecase.NewManager(usecase.Config{}, bal, newStubPrices("EUR/USD", 1.085), tt.catalog, nil, clock.NewFake(start), nil)

			_, err := m.Open(context.Background(), "acc-1", tt.symbol, entity.DirectionUp, 10, time.Minute)

			switch {
			case tt.catalog.err != nil:
				require.Error(t, err)
				assert.NotErrorIs(t, err, domain.ErrInvalidContract)
				assert.Empty(t, bal.Debits)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, bal.Debits)
			default:
				require.NoError(t, err)
				assert.Equal(t, []float64{10}, bal.Debits)
			}
		})
	}
}

func TestManager_GetFallsBackToStore(t *testing.T) {
	t.Parallel()

	archived := entity.Contract{ID: "old-1", AccountID: "acc-1", Symbol: "EUR/USD", State: entity.StateResolved, Outcome: entity.OutcomeWon}
	store := &findingStore{FindFunc: func(_ context.Context, id string) (entity.Contract, error) {
		switch id {
		case "old-1":
			return archived, nil
		case "broken":
			return entity.Contract{}, errors.New("connection reset")
		}
		return entity.Contract{}, domain.ErrContractNotFound
	}}
	m := usecase.NewManager(usecase.Config{}, &mockBalance{}, newStubPrices("EUR/USD", 1.085), nil, store, clock.NewFake(start), nil)
	ctx := context.Background()

	c, err := m.Open(ctx, "acc-1", "EUR/USD", entity.DirectionUp, 10, time.Minute)
	require.NoError(t, err)
	got, err := m.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got, "in-memory contracts win")

	got, err = m.Get(ctx, "old-1")
	require.NoError(t, err)
	assert.Equal(t, archived, got)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrContractNotFound)

	_, err = m.Get(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
}

func TestManager_ResolveErrors(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(start)
	m := usecase.NewManager(usecase.Config{}, newLedger(), newStubPrices("BTC/USD", 65000.0), nil, nil, clk, nil)
	ctx := context.Background()

	_, err := m.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrContractNotFound)

	c, err := m.Open(ctx, "acc-1", "BTC/USD", entity.DirectionDown, 10, time.Minute)
	require.NoError(t, err)

	clk.Advance(59 * time.Second)
	_, err = m.Resolve(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotExpired)

	got, err := m.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StateActive, got.State)
}

func TestManager_SettlesAtMostOnce(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 10; seed++ {
		bal := &mockBalance{}
		store := &mockContractStore{}
		clk := clock.NewFake(start)
		m := usecase.NewManager(usecase.Config{Seed: seed}, bal, newStubPrices("EUR/USD", 1.085), nil, store, clk, nil)
		ctx := context.Background()

		c, err := m.Open(ctx, "acc-1", "EUR/USD", entity.DirectionUp, 10, 10*time.Second)
		require.NoError(t, err)
		clk.Advance(10 * time.Second)

		var wg sync.WaitGroup
		results := make(chan entity.Contract, 21)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r, err := m.Resolve(ctx, c.ID)
				assert.NoError(t, err)
				results <- r
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, r := range m.ResolveDue(ctx) {
				results <- r
			}
		}()
		wg.Wait()
		close(results)

		var first *entity.Contract
		for r := range results {
			if first == nil {
				first = &r
				continue
			}
			assert.Equal(t, *first, r, "every caller observes the same resolution")
		}

		credits := bal.credits()
		if first.Outcome == entity.OutcomeWon {
			assert.Equal(t, []float64{10 + first.Payout}, credits)
		} else {
			assert.Empty(t, credits)
		}
		assert.Len(t, m.History("acc-1"), 1)
		assert.Empty(t, m.Active("acc-1"))
		assert.Equal(t, 1, store.UpdateCnt)
	}
}

func TestManager_ConcurrentOpensNeverOverdraw(t *testing.T) {
	t.Parallel()

	ledger := newLedger()
	m := usecase.NewManager(usecase.Config{}, ledger, newStubPrices("EUR/USD", 1.085), nil, nil, clock.NewFake(start), nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Open(context.Background(), "acc-1", "EUR/USD", entity.DirectionUp, 7, time.Minute)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, 14, accepted)
	assert.Len(t, m.Active("acc-1"), 14)
	assert.InDelta(t, 2.0, balanceOf(t, ledger, "acc-1"), 1e-9)
}

func TestManager_RunResolvesOnExpiry(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(start)
	m := usecase.NewManager(usecase.Config{}, &mockBalance{}, newStubPrices("EUR/USD", 1.085, "BTC/USD", 65000.0), nil, nil, clk, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	long, err := m.Open(ctx, "acc-1", "BTC/USD", entity.DirectionUp, 10, time.Minute)
	require.NoError(t, err)
	short, err := m.Open(ctx, "acc-1", "EUR/USD", entity.DirectionDown, 10, 10*time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		if clk.Now().Before(start.Add(10 * time.Second)) {
			clk.Advance(time.Second)
		}
		return len(m.History("acc-1")) == 1
	}, testTimeout, testTick)

	h := m.History("acc-1")
	assert.Equal(t, short.ID, h[0].ID)
	active := m.Active("acc-1")
	require.Len(t, active, 1)
	assert.Equal(t, long.ID, active[0].ID)

	require.Eventually(t, func() bool {
		clk.Advance(10 * time.Second)
		return len(m.History("acc-1")) == 2
	}, testTimeout, testTick)
	assert.Empty(t, m.Active("acc-1"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Run did not return after cancel")
	}
}

func TestManager_PersistenceIsBestEffort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		storeErr error
	}{
		{"store succeeds", nil},
		{"store fails", errors.New("db down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &mockContractStore{Err: tt.storeErr}
			clk := clock.NewFake(start)
			m := usecase.NewManager(usecase.Config{}, &mockBalance{}, newStubPrices("EUR/USD", 1.085), nil, store, clk, nil)
			ctx := context.Background()

			c, err := m.Open(ctx, "acc-1", "EUR/USD", entity.DirectionUp, 10, time.Minute)
			require.NoError(t, err)
			require.Len(t, store.Created, 1)
			assert.Equal(t, c, store.Created[0])

			clk.Advance(time.Minute)
			r, err := m.Resolve(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, r.Patch(), store.Updated[c.ID])
		})
	}
}

func TestManager_HistorySince(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(start)
	m := usecase.NewManager(usecase.Config{}, &mockBalance{}, newStubPrices("EUR/USD", 1.085), nil, nil, clk, nil)
	ctx := context.Background()

	for _, acc := range []string{"acc-1", "acc-2", "acc-1"} {
		_, err := m.Open(ctx, acc, "EUR/USD", entity.DirectionUp, 10, 10*time.Second)
		require.NoError(t, err)
	}

	got, cursor := m.HistorySince(0)
	assert.Empty(t, got)
	assert.Equal(t, 0, cursor)

	clk.Advance(10 * time.Second)
	require.Len(t, m.ResolveDue(ctx), 3)

	got, cursor = m.HistorySince(0)
	assert.Len(t, got, 3)
	assert.Equal(t, 3, cursor)

	got, cursor = m.HistorySince(cursor)
	assert.Empty(t, got)
	assert.Equal(t, 3, cursor)

	assert.Len(t, m.History("acc-1"), 2)
	assert.Len(t, m.History("acc-2"), 1)
}
