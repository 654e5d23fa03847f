package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"options_backend/internal/api"
	"options_backend/internal/feature/symbollist/domain/entity"
	"options_backend/internal/feature/symbollist/transport/http/dto"
)

// SymbolUsecase は銘柄情報に関するユースケースのインターフェースです。
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type SymbolUsecase interface {
	ListActiveSymbols(ctx context.Context) ([]entity.Symbol, error)
	IsActive(ctx context.Context, symbol string) (bool, error)
}

// SymbolHandler は銘柄情報に関するHTTPリクエストを処理します。
type SymbolHandler struct {
	uc SymbolUsecase
}

// NewSymbolHandler は新しい SymbolHandler を作成します。
func NewSymbolHandler(uc SymbolUsecase) *SymbolHandler {
	return &SymbolHandler{uc: uc}
}

// List は取引可能な銘柄の一覧を返すAPIです。
func (h *SymbolHandler) List(c *gin.Context) {
	symbols, err := h.uc.ListActiveSymbols(c.Request.Context())
	if err != nil {
		slog.Warn("failed to list symbols", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list symbols"})
		return
	}
	out := make([]dto.SymbolItem, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, dto.SymbolItem{Code: s.Code, Name: s.Name, Market: s.Market})
	}
	c.JSON(http.StatusOK, out)
}

// RequireKnownPath はパスパラメータparamの銘柄がカタログに無い場合に404で打ち切るミドルウェアです。
// 未知の銘柄で価格配信のポーリングを始めないために、価格・ローソク足のルートの前に置きます。
func (h *SymbolHandler) RequireKnownPath(param string) gin.HandlerFunc {
	return h.requireKnown(func(c *gin.Context) string { return c.Param(param) })
}

// RequireKnownQuery はクエリパラメータ版のRequireKnownPathです。
func (h *SymbolHandler) RequireKnownQuery(key string) gin.HandlerFunc {
	return h.requireKnown(func(c *gin.Context) string { return c.Query(key) })
}

func (h *SymbolHandler) requireKnown(symbolOf func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := symbolOf(c)
		// 空の場合は後続のハンドラーが400を返す
		if symbol == "" {
			c.Next()
			return
		}
		ok, err := h.uc.IsActive(c.Request.Context(), symbol)
		if err != nil {
			slog.Warn("failed to check symbol", "symbol", symbol, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to check symbol"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, api.ErrorResponse{Error: "unknown symbol"})
			return
		}
		c.Next()
	}
}
