// Package handler はmarketフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"options_backend/internal/api"
	"options_backend/internal/feature/market/domain/entity"
	"options_backend/internal/feature/market/transport/http/dto"
)

// PriceReader は現在価格の読み取りインターフェースです。Multiplexerが実装します。
type PriceReader interface {
	Latest(symbol string) (entity.Tick, bool)
	CurrentPrice(ctx context.Context, symbol string) float64
}

// PriceHandler は価格取得のHTTPリクエストを処理します。
type PriceHandler struct {
	prices PriceReader
	now    func() time.Time
}

// NewPriceHandler はPriceHandlerの新しいインスタンスを生成します。
func NewPriceHandler(prices PriceReader) *PriceHandler {
	return &PriceHandler{prices: prices, now: time.Now}
}

// GetPrice は銘柄の最新価格をJSONで返します。
//
// エンドポイント例:
// GET /prices/EUR-USD
func (h *PriceHandler) GetPrice(c *gin.Context) {
	symbol := entity.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "symbol is required"})
		return
	}

	// 配信中のシンボルは最新Tickをそのまま返す
	if t, ok := h.prices.Latest(symbol); ok {
		c.JSON(http.StatusOK, dto.FromTick(t))
		return
	}

	price := h.prices.CurrentPrice(c.Request.Context(), symbol)
	c.JSON(http.StatusOK, dto.NowTick(symbol, price, h.now()))
}
