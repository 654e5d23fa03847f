// Package handler はcandlesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"options_backend/internal/api"
	"options_backend/internal/feature/candles/domain/entity"
	"options_backend/internal/feature/candles/transport/http/dto"
	marketentity "options_backend/internal/feature/market/domain/entity"
)

// DefaultWindow は window 未指定時に返す本数です。
const DefaultWindow = 60

// CandlesUsecase はローソク足データ操作のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type CandlesUsecase interface {
	GetCandles(ctx context.Context, symbol string, window int) []entity.Candle
}

// CandlesHandler はローソク足データのHTTPリクエストを処理します。
type CandlesHandler struct {
	uc CandlesUsecase
}

// NewCandlesHandler は指定されたusecaseでCandlesHandlerの新しいインスタンスを生成します。
func NewCandlesHandler(uc CandlesUsecase) *CandlesHandler {
	return &CandlesHandler{uc: uc}
}

// GetCandlesHandler はシンボルを受け取り、直近のローソク足を古い順にJSONで返します。
// 最後の要素は形成中の足です。
//
// エンドポイント例:
// GET /candles/:symbol?window=60
func (h *CandlesHandler) GetCandlesHandler(c *gin.Context) {
	symbol := marketentity.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "symbol is required"})
		return
	}

	window := DefaultWindow
	if raw, ok := c.GetQuery("window"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "window must be a positive integer"})
			return
		}
		window = n
	}

	candles := h.uc.GetCandles(c.Request.Context(), symbol, window)
	c.JSON(http.StatusOK, dto.FromCandles(candles))
}
