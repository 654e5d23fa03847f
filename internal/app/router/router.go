package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"options_backend/internal/api"
	candleshandler "options_backend/internal/feature/candles/transport/handler"
	ledgerhandler "options_backend/internal/feature/ledger/transport/handler"
	markethandler "options_backend/internal/feature/market/transport/handler"
	"options_backend/internal/feature/market/transport/ws"
	symbolhandler "options_backend/internal/feature/symbollist/transport/handler"
	tradinghandler "options_backend/internal/feature/trading/transport/handler"
	jwtmw "options_backend/internal/platform/jwt"
)

// Handlers はルーターに登録するハンドラー一式です。
type Handlers struct {
	Prices  *markethandler.PriceHandler
	Stream  *ws.StreamHandler
	Candles *candleshandler.CandlesHandler
	Ledger  *ledgerhandler.LedgerHandler
	Trading *tradinghandler.TradingHandler
	Symbols *symbolhandler.SymbolHandler
}

func NewRouter(h Handlers, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 認証不要
	// 導通確認用
	r.GET("/healthz", Health)
	r.HEAD("/healthz", Health)
	// 銘柄・価格・ローソク足・ライブ配信
	r.GET("/symbols", h.Symbols.List)
	// カタログに無い銘柄は404（ポーリングループを増やさない）
	r.GET("/prices/:symbol", h.Symbols.RequireKnownPath("symbol"), h.Prices.GetPrice)
	r.GET("/candles/:symbol", h.Symbols.RequireKnownPath("symbol"), h.Candles.GetCandlesHandler)
	r.GET("/ws/prices", h.Symbols.RequireKnownQuery("symbol"), h.Stream.Stream)

	// 認証必須のルート
	// → リクエストヘッダーに JWT が必要になる
	auth := r.Group("/")
	auth.Use(jwtmw.AuthRequired(jwtSecret))
	{
		auth.GET("/balance", h.Ledger.GetBalance)
		auth.POST("/deposit", h.Ledger.Deposit)
		auth.POST("/withdraw", h.Ledger.Withdraw)

		auth.POST("/trades", h.Trading.OpenTrade)
		auth.GET("/trades", h.Trading.ListTrades)
		auth.GET("/trades/:id", h.Trading.GetTrade)
		auth.POST("/trades/:id/resolve", h.Trading.ResolveTrade)
	}

	return r
}

// Health は死活監視用のエンドポイントです。
func Health(c *gin.Context) {
	// キャッシュされないように明示
	c.Header("Cache-Control", "no-store")

	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}
