// Package binance はBinance公開REST APIの価格プロバイダーを提供します。
// 認証不要のエンドポイントのみを使用します。
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	candleentity "options_backend/internal/feature/candles/domain/entity"
	"options_backend/internal/feature/market/domain"
	"options_backend/internal/feature/market/usecase"
)

const (
	// Name はTick.Sourceに使うプロバイダー名です。
	Name = "binance"
	// DefaultBaseURL はBinance REST APIの既定のベースURLです。
	DefaultBaseURL = "https://api.binance.com"

	maxKlines = 1000
)

// Config はBinanceクライアントの設定を保持します。
type Config struct {
	BaseURL string
}

// BinanceProvider はBinanceから暗号資産の価格とローソク足を取得するProvider実装です。
type BinanceProvider struct {
	cfg    Config
	client *http.Client
}

var _ usecase.Provider = (*BinanceProvider)(nil)

// NewBinanceProvider はBinanceProviderの新しいインスタンスを生成します。
func NewBinanceProvider(cfg Config, client *http.Client) *BinanceProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &BinanceProvider{cfg: cfg, client: client}
}

// Name はプロバイダー名を返します。
func (b *BinanceProvider) Name() string { return Name }

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type apiErrorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Quote は/api/v3/ticker/priceから現在価格を取得します。
func (b *BinanceProvider) Quote(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", ToBinanceSymbol(symbol))

	var body tickerPrice
	if err := b.get(ctx, "/api/v3/ticker/price", q, &body); err != nil {
		return 0, err
	}
	p, err := strconv.ParseFloat(body.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse price %q: %w", domain.ErrMalformedPayload, body.Price, err)
	}
	return p, nil
}

// TimeSeries は/api/v3/klinesからローソク足を取得します。
// Volumeには約定件数（kline[8]）を入れます。
func (b *BinanceProvider) TimeSeries(ctx context.Context, symbol string, interval time.Duration, count int) ([]candleentity.Candle, error) {
	iv, err := intervalParam(interval)
	if err != nil {
		return nil, err
	}
	if count <= 0 || count > maxKlines {
		count = maxKlines
	}

	q := url.Values{}
	q.Set("symbol", ToBinanceSymbol(symbol))
	q.Set("interval", iv)
	q.Set("limit", strconv.Itoa(count))

	var klines [][]json.RawMessage
	if err := b.get(ctx, "/api/v3/klines", q, &klines); err != nil {
		return nil, err
	}

	candles := make([]candleentity.Candle, 0, len(klines))
	for i, k := range klines {
		c, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("%w: kline %d: %w", domain.ErrMalformedPayload, i, err)
		}
		c.Symbol = symbol
		c.Interval = interval
		candles = append(candles, c)
	}
	return candles, nil
}

func (b *BinanceProvider) get(ctx context.Context, path string, q url.Values, out any) error {
	u := fmt.Sprintf("%s%s?%s", b.cfg.BaseURL, path, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	res, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		var e apiErrorBody
		_ = json.NewDecoder(res.Body).Decode(&e)
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusTeapot {
			return fmt.Errorf("binance http %d: %w", res.StatusCode, domain.ErrRateLimited)
		}
		if e.Msg != "" {
			return fmt.Errorf("binance http %d: %s (code %d)", res.StatusCode, e.Msg, e.Code)
		}
		return fmt.Errorf("binance http %d", res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}
	return nil
}

// parseKline は [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, ...] を変換します。
func parseKline(k []json.RawMessage) (candleentity.Candle, error) {
	if len(k) < 9 {
		return candleentity.Candle{}, fmt.Errorf("expected at least 9 elements, got %d", len(k))
	}

	var openTime, trades int64
	if err := json.Unmarshal(k[0], &openTime); err != nil {
		return candleentity.Candle{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(k[8], &trades); err != nil {
		return candleentity.Candle{}, fmt.Errorf("trades: %w", err)
	}

	var ohlc [4]float64
	for i := range ohlc {
		var s string
		if err := json.Unmarshal(k[i+1], &s); err != nil {
			return candleentity.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return candleentity.Candle{}, fmt.Errorf("field %d %q: %w", i+1, s, err)
		}
		ohlc[i] = f
	}

	return candleentity.Candle{
		Time:   time.UnixMilli(openTime).UTC(),
		Open:   ohlc[0],
		High:   ohlc[1],
		Low:    ohlc[2],
		Close:  ohlc[3],
		Volume: trades,
	}, nil
}

// ToBinanceSymbol は "BTC/USD" 形式をBinanceの "BTCUSDT" 形式に変換します。
// USD建てはUSDTペアで代用します。
func ToBinanceSymbol(symbol string) string {
	base, quote, ok := strings.Cut(strings.ToUpper(symbol), "/")
	if !ok {
		return strings.ToUpper(symbol)
	}
	if quote == "USD" {
		quote = "USDT"
	}
	return base + quote
}

func intervalParam(d time.Duration) (string, error) {
	switch d {
	case time.Minute:
		return "1m", nil
	case 3 * time.Minute:
		return "3m", nil
	case 5 * time.Minute:
		return "5m", nil
	case 15 * time.Minute:
		return "15m", nil
	case 30 * time.Minute:
		return "30m", nil
	case time.Hour:
		return "1h", nil
	case 2 * time.Hour:
		return "2h", nil
	case 4 * time.Hour:
		return "4h", nil
	case 24 * time.Hour:
		return "1d", nil
	}
	return "", fmt.Errorf("binance: unsupported interval %s", d)
}
