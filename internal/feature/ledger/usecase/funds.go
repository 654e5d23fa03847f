package usecase

import (
	"context"
	"errors"
	"fmt"

	"options_backend/internal/feature/ledger/domain"
	"options_backend/internal/feature/ledger/domain/entity"
	"options_backend/internal/platform/callable"
)

const (
	EndpointDeposit    = "processDeposit"
	EndpointWithdrawal = "processWithdrawal"
)

// Procedures はリモートのcallableプロシージャです。
type Procedures interface {
	Call(ctx context.Context, endpoint string, payload any) (callable.Result, error)
}

var _ Procedures = (*callable.Client)(nil)

type fundsPayload struct {
	AccountID string  `json:"accountId"`
	Amount    float64 `json:"amount"`
}

// Deposit は入金プロシージャの成功後にローカル残高へ加算します。
// リモートのアカウントはプロシージャ側で更新されるため、同期ワーカーはミラーのみ更新します。
func (l *Ledger) Deposit(ctx context.Context, accountID string, amount float64) (entity.Balance, error) {
	if err := validate(accountID, amount); err != nil {
		return entity.Balance{}, err
	}
	if err := l.call(ctx, EndpointDeposit, fundsPayload{AccountID: accountID, Amount: amount}); err != nil {
		return entity.Balance{}, err
	}

	a, err := l.lock(ctx, accountID)
	if err != nil {
		// プロシージャは成功済み。次回の読み込みでリモートの残高に反映される
		return entity.Balance{}, err
	}
	defer a.mu.Unlock()
	a.amount += amount
	l.commit(accountID, a, amount, false)
	l.logger.Info("deposit applied", "account_id", accountID, "amount", amount, "balance", a.amount)
	return snapshot(accountID, a), nil
}

// Withdraw はローカル残高から先に差し引き、出金プロシージャが失敗した場合は戻します。
func (l *Ledger) Withdraw(ctx context.Context, accountID string, amount float64) (entity.Balance, error) {
	if err := validate(accountID, amount); err != nil {
		return entity.Balance{}, err
	}

	a, err := l.lock(ctx, accountID)
	if err != nil {
		return entity.Balance{}, err
	}
	if a.amount < amount {
		a.mu.Unlock()
		return entity.Balance{}, domain.ErrInsufficientBalance
	}
	a.amount -= amount
	a.updatedAt = l.now()
	a.mu.Unlock()

	callErr := l.call(ctx, EndpointWithdrawal, fundsPayload{AccountID: accountID, Amount: amount})

	a.mu.Lock()
	defer a.mu.Unlock()
	if callErr != nil {
		a.amount += amount
		a.updatedAt = l.now()
		l.logger.Warn("withdrawal failed; local debit reverted", "account_id", accountID, "amount", amount, "error", callErr)
		return entity.Balance{}, callErr
	}
	l.commit(accountID, a, -amount, false)
	l.logger.Info("withdrawal applied", "account_id", accountID, "amount", amount, "balance", a.amount)
	return snapshot(accountID, a), nil
}

func (l *Ledger) call(ctx context.Context, endpoint string, payload fundsPayload) error {
	if l.procs == nil {
		return fmt.Errorf("%w: callable procedures not configured", domain.ErrPersistenceFailure)
	}
	if _, err := l.procs.Call(ctx, endpoint, payload); err != nil {
		return mapCallError(err)
	}
	return nil
}

// mapCallError はプロシージャのエラー種別を台帳のエラーに変換します。
func mapCallError(err error) error {
	var ce *callable.Error
	if !errors.As(err, &ce) {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	switch ce.Code {
	case callable.CodeUnauthenticated:
		return fmt.Errorf("%w: %s", domain.ErrUnauthenticated, ce.Message)
	case callable.CodeInvalidArgument:
		return fmt.Errorf("%w: %s", domain.ErrInvalidAmount, ce.Message)
	case callable.CodeFailedPrecondition:
		return fmt.Errorf("%w: %s", domain.ErrInsufficientBalance, ce.Message)
	case callable.CodeNotFound:
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, ce.Message)
	default:
		return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, ce)
	}
}
