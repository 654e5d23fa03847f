// Package handler はledgerフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"options_backend/internal/api"
	"options_backend/internal/feature/ledger/domain"
	"options_backend/internal/feature/ledger/domain/entity"
	"options_backend/internal/feature/ledger/transport/http/dto"
	jwtmw "options_backend/internal/platform/jwt"
)

// LedgerUsecase は残高操作のユースケースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type LedgerUsecase interface {
	Balance(ctx context.Context, accountID string) (entity.Balance, error)
	Deposit(ctx context.Context, accountID string, amount float64) (entity.Balance, error)
	Withdraw(ctx context.Context, accountID string, amount float64) (entity.Balance, error)
}

// LedgerHandler は残高・入出金のHTTPリクエストを処理します。
type LedgerHandler struct {
	ledger LedgerUsecase
}

// NewLedgerHandler はLedgerHandlerの新しいインスタンスを生成します。
func NewLedgerHandler(ledger LedgerUsecase) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// GetBalance は認証済みアカウントの残高を返します。
// GET /balance
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	accountID, _ := jwtmw.AccountID(c)
	b, err := h.ledger.Balance(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromBalance(b))
}

// Deposit は入金を処理します。
// POST /deposit {"amount": 50}
func (h *LedgerHandler) Deposit(c *gin.Context) {
	h.funds(c, "deposit", h.ledger.Deposit)
}

// Withdraw は出金を処理します。
// POST /withdraw {"amount": 50}
func (h *LedgerHandler) Withdraw(c *gin.Context) {
	h.funds(c, "withdraw", h.ledger.Withdraw)
}

func (h *LedgerHandler) funds(c *gin.Context, op string, apply func(context.Context, string, float64) (entity.Balance, error)) {
	var req dto.FundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn(op+" validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	accountID, _ := jwtmw.AccountID(c)

	b, err := apply(c.Request.Context(), accountID, req.Amount)
	if err != nil {
		slog.Warn(op+" failed", "error", err, "account_id", accountID, "amount", req.Amount)
		writeError(c, err)
		return
	}
	slog.Info(op+" successful", "account_id", accountID, "amount", req.Amount, "balance", b.Amount)
	c.JSON(http.StatusOK, dto.FromBalance(b))
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: domain.ErrUnauthenticated.Error()})
	case errors.Is(err, domain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: domain.ErrInvalidAmount.Error()})
	case errors.Is(err, domain.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: domain.ErrAccountNotFound.Error()})
	case errors.Is(err, domain.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, api.ErrorResponse{Error: domain.ErrInsufficientBalance.Error()})
	default:
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "upstream failure"})
	}
}
