// Package usecase はアカウント残高の台帳を実装します。
//
// 残高はプロセス内の値が正で、リモートのアカウントストアとRedisミラーへは
// バックグラウンドワーカーが非同期に反映します（結果整合）。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"options_backend/internal/feature/ledger/domain"
	"options_backend/internal/feature/ledger/domain/entity"
)

const (
	// DefaultInitialBalance は新規アカウントの初期残高です。
	DefaultInitialBalance = 100.0
	// DefaultQueueSize は同期キューの長さです。
	DefaultQueueSize = 1024

	syncTimeout = 5 * time.Second
)

// AccountStore はリモートのアカウントレコードです。
type AccountStore interface {
	// LoadAccount は残高を返します。存在しない場合は domain.ErrAccountNotFound を返します。
	LoadAccount(ctx context.Context, accountID string) (float64, error)
	CreateAccount(ctx context.Context, accountID string, amount float64) error
	DebitAccount(ctx context.Context, accountID string, amount float64) error
	CreditAccount(ctx context.Context, accountID string, amount float64) error
}

// Mirror は残高のローカルキャッシュです。
type Mirror interface {
	Load(ctx context.Context, accountID string) (float64, bool, error)
	Store(ctx context.Context, accountID string, amount float64) error
}

// Config は台帳の設定です。
type Config struct {
	InitialBalance float64
	QueueSize      int
}

type account struct {
	mu        sync.Mutex
	loaded    bool
	amount    float64
	status    entity.SyncStatus
	pending   int
	failed    bool
	updatedAt time.Time
}

// syncOp は1回の変更をリモートへ反映する単位です。
type syncOp struct {
	accountID string
	delta     float64
	balance   float64
	remote    bool // falseの場合はミラーのみ更新（リモートはプロシージャ側で更新済み）
}

// Ledger はアカウントごとの残高を直列化して管理します。
type Ledger struct {
	cfg    Config
	store  AccountStore
	mirror Mirror
	procs  Procedures
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	accounts map[string]*account
	queue    chan syncOp
}

// NewLedger はLedgerを生成します。store・mirror・procsはnilでも構いません。
func NewLedger(cfg Config, store AccountStore, mirror Mirror, procs Procedures, logger *slog.Logger) *Ledger {
	if cfg.InitialBalance < 0 || math.IsNaN(cfg.InitialBalance) || math.IsInf(cfg.InitialBalance, 0) {
		cfg.InitialBalance = 0
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		cfg:      cfg,
		store:    store,
		mirror:   mirror,
		procs:    procs,
		now:      time.Now,
		logger:   logger.With("component", "ledger"),
		accounts: make(map[string]*account),
		queue:    make(chan syncOp, cfg.QueueSize),
	}
}

// Debit は残高がamount以上の場合に限りamountを差し引き、新しい残高を返します。
// 判定と減算は1つのクリティカルセクションで行います。
func (l *Ledger) Debit(ctx context.Context, accountID string, amount float64) (float64, error) {
	if err := validate(accountID, amount); err != nil {
		return 0, err
	}
	a, err := l.lock(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	if a.amount < amount {
		return a.amount, domain.ErrInsufficientBalance
	}
	a.amount -= amount
	l.commit(accountID, a, -amount, true)
	return a.amount, nil
}

// Credit はamountを加算し、新しい残高を返します。
func (l *Ledger) Credit(ctx context.Context, accountID string, amount float64) (float64, error) {
	if err := validate(accountID, amount); err != nil {
		return 0, err
	}
	a, err := l.lock(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	a.amount += amount
	l.commit(accountID, a, amount, true)
	return a.amount, nil
}

// Balance は現在の残高スナップショットを返します。
func (l *Ledger) Balance(ctx context.Context, accountID string) (entity.Balance, error) {
	if accountID == "" {
		return entity.Balance{}, domain.ErrUnauthenticated
	}
	a, err := l.lock(ctx, accountID)
	if err != nil {
		return entity.Balance{}, err
	}
	defer a.mu.Unlock()
	return snapshot(accountID, a), nil
}

// Run は同期ワーカーです。ctxがキャンセルされるとキューに残った分を反映して戻ります。
func (l *Ledger) Run(ctx context.Context) error {
	for {
		select {
		case op := <-l.queue:
			l.sync(ctx, op)
		case <-ctx.Done():
			l.drain()
			return nil
		}
	}
}

func (l *Ledger) drain() {
	for {
		select {
		case op := <-l.queue:
			l.sync(context.Background(), op)
		default:
			return
		}
	}
}

// lock はアカウントを取得してロックします。初回はミラー、リモート、初期残高の順に読み込みます。
// 読み込みに失敗した場合はロックを解放してエラーを返し、次の呼び出しで再試行します。
func (l *Ledger) lock(ctx context.Context, accountID string) (*account, error) {
	l.mu.Lock()
	a, ok := l.accounts[accountID]
	if !ok {
		a = &account{status: entity.SyncSynced}
		l.accounts[accountID] = a
	}
	l.mu.Unlock()

	a.mu.Lock()
	if !a.loaded {
		if err := l.hydrate(ctx, accountID, a); err != nil {
			a.mu.Unlock()
			return nil, err
		}
	}
	return a, nil
}

// hydrate は残高を読み込みます。リモートの読み込みがNotFound以外で失敗した場合は
// 初期残高を当てはめず、ミラーにも書かずにエラーを返します。
func (l *Ledger) hydrate(ctx context.Context, accountID string, a *account) error {
	if l.mirror != nil {
		amount, ok, err := l.mirror.Load(ctx, accountID)
		switch {
		case err != nil:
			l.logger.Warn("failed to load balance mirror", "account_id", accountID, "error", err)
			if l.store == nil {
				// ミラーが唯一の保存先なので、初期残高で上書きしない
				return fmt.Errorf("%w: load mirror %s: %w", domain.ErrPersistenceFailure, accountID, err)
			}
		case ok:
			a.amount = amount
			a.loaded = true
			a.updatedAt = l.now()
			return nil
		}
	}

	source := "initial"
	amount := l.cfg.InitialBalance
	status := entity.SyncSynced
	if l.store != nil {
		stored, err := l.store.LoadAccount(ctx, accountID)
		switch {
		case err == nil:
			amount = stored
			source = "remote"
		case errors.Is(err, domain.ErrAccountNotFound):
			if err := l.store.CreateAccount(ctx, accountID, amount); err != nil {
				l.logger.Warn("failed to create remote account", "account_id", accountID, "error", fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err))
				status = entity.SyncFailed
			}
		default:
			err = fmt.Errorf("%w: load account %s: %w", domain.ErrPersistenceFailure, accountID, err)
			l.logger.Warn("failed to load remote account", "account_id", accountID, "error", err)
			return err
		}
	}
	a.amount = amount
	a.status = status
	a.loaded = true
	a.updatedAt = l.now()
	l.logger.Debug("account hydrated", "account_id", accountID, "source", source, "amount", a.amount)

	if l.mirror != nil {
		if err := l.mirror.Store(ctx, accountID, a.amount); err != nil {
			l.logger.Warn("failed to write balance mirror", "account_id", accountID, "error", err)
		}
	}
	return nil
}

// commit は変更を同期キューへ積みます。aのロックを保持した状態で呼び出します。
// キューが満杯の場合は変更を取り消さず、同期状態をfailedにします。
func (l *Ledger) commit(accountID string, a *account, delta float64, remote bool) {
	a.updatedAt = l.now()
	if l.store == nil && l.mirror == nil {
		return
	}
	op := syncOp{accountID: accountID, delta: delta, balance: a.amount, remote: remote}
	select {
	case l.queue <- op:
		a.pending++
		a.status = entity.SyncPending
	default:
		a.status = entity.SyncFailed
		a.failed = true
		l.logger.Warn("sync queue full; remote update dropped", "account_id", accountID, "delta", delta)
	}
}

func (l *Ledger) sync(parent context.Context, op syncOp) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), syncTimeout)
	defer cancel()

	var errs []error
	if op.remote && l.store != nil {
		var err error
		if op.delta < 0 {
			err = l.store.DebitAccount(ctx, op.accountID, -op.delta)
		} else {
			err = l.store.CreditAccount(ctx, op.accountID, op.delta)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err))
		}
	}
	if l.mirror != nil {
		if err := l.mirror.Store(ctx, op.accountID, op.balance); err != nil {
			errs = append(errs, fmt.Errorf("mirror: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		l.logger.Warn("balance sync failed", "account_id", op.accountID, "delta", op.delta, "error", err)
	}

	l.mu.Lock()
	a := l.accounts[op.accountID]
	l.mu.Unlock()
	if a == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending--
	if err != nil {
		a.failed = true
	}
	if a.pending <= 0 {
		a.pending = 0
		if a.failed {
			a.status = entity.SyncFailed
		} else {
			a.status = entity.SyncSynced
		}
		a.failed = false
	}
}

func snapshot(accountID string, a *account) entity.Balance {
	return entity.Balance{
		AccountID:  accountID,
		Amount:     a.amount,
		SyncStatus: a.status,
		UpdatedAt:  a.updatedAt,
	}
}

func validate(accountID string, amount float64) error {
	if accountID == "" {
		return domain.ErrUnauthenticated
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}
