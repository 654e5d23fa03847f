// Package handler はtradingフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"options_backend/internal/api"
	ledgerdomain "options_backend/internal/feature/ledger/domain"
	"options_backend/internal/feature/trading/domain"
	"options_backend/internal/feature/trading/domain/entity"
	"options_backend/internal/feature/trading/transport/http/dto"
	jwtmw "options_backend/internal/platform/jwt"
)

// TradingUsecase はコントラクト操作のユースケースを定義します。
type TradingUsecase interface {
	Open(ctx context.Context, accountID, symbol string, direction entity.Direction, stake float64, duration time.Duration) (entity.Contract, error)
	Resolve(ctx context.Context, id string) (entity.Contract, error)
	Get(ctx context.Context, id string) (entity.Contract, error)
	Active(accountID string) []entity.Contract
	History(accountID string) []entity.Contract
}

// TradingHandler はコントラクトのHTTPリクエストを処理します。
type TradingHandler struct {
	trading TradingUsecase
}

// NewTradingHandler はTradingHandlerの新しいインスタンスを生成します。
func NewTradingHandler(trading TradingUsecase) *TradingHandler {
	return &TradingHandler{trading: trading}
}

// OpenTrade はコントラクトを建てます。
// POST /trades {"symbol":"EUR/USD","direction":"up","stake":10,"duration_sec":30}
func (h *TradingHandler) OpenTrade(c *gin.Context) {
	var req dto.OpenTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("open trade validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request"})
		return
	}
	accountID, _ := jwtmw.AccountID(c)

	ct, err := h.trading.Open(c.Request.Context(), accountID, req.Symbol,
		entity.Direction(req.Direction), req.Stake, time.Duration(req.DurationSec)*time.Second)
	if err != nil {
		slog.Warn("open trade failed", "error", err, "account_id", accountID, "symbol", req.Symbol, "stake", req.Stake)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromContract(ct))
}

// ListTrades は未判定と判定済みのコントラクトを返します。
// GET /trades
func (h *TradingHandler) ListTrades(c *gin.Context) {
	accountID, _ := jwtmw.AccountID(c)
	c.JSON(http.StatusOK, dto.TradesResponse{
		Active:  dto.FromContracts(h.trading.Active(accountID)),
		History: dto.FromContracts(h.trading.History(accountID)),
	})
}

// GetTrade はコントラクトを1件返します。他アカウントのコントラクトは存在しないものとして扱います。
// GET /trades/:id
func (h *TradingHandler) GetTrade(c *gin.Context) {
	ct, ok := h.owned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.FromContract(ct))
}

// ResolveTrade は満期を迎えたコントラクトを判定します。スケジューラーより先に呼ばれても結果は1つです。
// POST /trades/:id/resolve
func (h *TradingHandler) ResolveTrade(c *gin.Context) {
	if _, ok := h.owned(c); !ok {
		return
	}
	ct, err := h.trading.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromContract(ct))
}

func (h *TradingHandler) owned(c *gin.Context) (entity.Contract, bool) {
	accountID, _ := jwtmw.AccountID(c)
	ct, err := h.trading.Get(c.Request.Context(), c.Param("id"))
	if err == nil && ct.AccountID != accountID {
		err = domain.ErrContractNotFound
	}
	if err != nil {
		writeError(c, err)
		return entity.Contract{}, false
	}
	return ct, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledgerdomain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: ledgerdomain.ErrUnauthenticated.Error()})
	case errors.Is(err, domain.ErrInvalidStake):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: domain.ErrInvalidStake.Error()})
	case errors.Is(err, domain.ErrInvalidContract):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrContractNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: domain.ErrContractNotFound.Error()})
	case errors.Is(err, domain.ErrNotExpired):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: domain.ErrNotExpired.Error()})
	case errors.Is(err, domain.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, api.ErrorResponse{Error: domain.ErrInsufficientBalance.Error()})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal server error"})
	}
}
