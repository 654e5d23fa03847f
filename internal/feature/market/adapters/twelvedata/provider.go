package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	candleentity "options_backend/internal/feature/candles/domain/entity"
	"options_backend/internal/feature/market/adapters/twelvedata/dto"
	"options_backend/internal/feature/market/domain"
	"options_backend/internal/feature/market/usecase"
	"options_backend/internal/shared/ratelimiter"
)

// Name はTick.Sourceに使うプロバイダー名です。
const Name = "twelvedata"

// TwelveDataProvider はTwelve Data外部APIから価格とローソク足を取得するProvider実装です。
type TwelveDataProvider struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.Limiter
}

// TwelveDataProviderがProviderを実装していることをコンパイル時に検証します。
var _ usecase.Provider = (*TwelveDataProvider)(nil)

// NewTwelveDataProvider は指定された設定とHTTPクライアントでTwelveDataProviderの新しいインスタンスを生成します。
// 無料枠の上限を超えないよう、cfg.RatePerMinuteで呼び出し回数を制限します。
func NewTwelveDataProvider(cfg Config, client *http.Client) *TwelveDataProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &TwelveDataProvider{
		cfg:     cfg,
		client:  client,
		limiter: ratelimiter.NewRateLimiter(cfg.RatePerMinute, time.Minute),
	}
}

// Name はプロバイダー名を返します。
func (t *TwelveDataProvider) Name() string { return Name }

// Quote はTwelve Data APIのpriceエンドポイントから現在価格を取得します。
func (t *TwelveDataProvider) Quote(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var body dto.PriceResponse
	if err := t.get(ctx, "price", q, &body); err != nil {
		return 0, err
	}
	if body.Status == "error" {
		return 0, apiError(body.Code, body.Message)
	}

	p, err := strconv.ParseFloat(body.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse price %q: %w", domain.ErrMalformedPayload, body.Price, err)
	}
	return p, nil
}

// TimeSeries はTwelve Data APIから時系列データを取得し、
// candleentity.Candleのスライスとして返します（APIの返却順のまま）。
func (t *TwelveDataProvider) TimeSeries(ctx context.Context, symbol string, interval time.Duration, count int) ([]candleentity.Candle, error) {
	iv, err := intervalParam(interval)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	// クエリパラメータを追加
	q.Set("symbol", symbol)
	q.Set("interval", iv)
	q.Set("outputsize", strconv.Itoa(count))
	q.Set("timezone", "UTC")

	var body dto.TimeSeriesResponse
	if err := t.get(ctx, "time_series", q, &body); err != nil {
		return nil, err
	}
	if body.Status == "error" {
		return nil, apiError(body.Code, body.Message)
	}

	candles := make([]candleentity.Candle, 0, len(body.Values))
	for _, v := range body.Values {
		// タイムスタンプをパース
		tm, err := time.Parse("2006-01-02 15:04:05", v.Datetime)
		if err != nil {
			tm, err = time.Parse("2006-01-02", v.Datetime)
			if err != nil {
				return nil, fmt.Errorf("%w: parse time %q: %w", domain.ErrMalformedPayload, v.Datetime, err)
			}
		}
		o, err := parseField("open", v.Open)
		if err != nil {
			return nil, err
		}
		h, err := parseField("high", v.High)
		if err != nil {
			return nil, err
		}
		l, err := parseField("low", v.Low)
		if err != nil {
			return nil, err
		}
		c, err := parseField("close", v.Close)
		if err != nil {
			return nil, err
		}
		// FXペアには出来高がないため0とする
		var vol int64
		if v.Volume != "" {
			vol, err = strconv.ParseInt(v.Volume, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: parse volume %q: %w", domain.ErrMalformedPayload, v.Volume, err)
			}
		}

		candles = append(candles, candleentity.Candle{
			Symbol:   symbol,
			Interval: interval,
			Time:     tm.UTC(),
			Open:     o,
			High:     h,
			Low:      l,
			Close:    c,
			Volume:   vol,
		})
	}
	return candles, nil
}

// get はレート制限を確認したうえでGETリクエストを送り、JSONをoutにデコードします。
func (t *TwelveDataProvider) get(ctx context.Context, path string, q url.Values, out any) error {
	if !t.limiter.Allow() {
		return fmt.Errorf("twelvedata: %w", domain.ErrRateLimited)
	}
	q.Set("apikey", t.cfg.APIKey)

	// URLを生成
	u := fmt.Sprintf("%s/%s?%s", t.cfg.BaseURL, path, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return fmt.Errorf("twelvedata http %d", res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}
	return nil
}

// apiError はAPIが返したエラー本文をエラー値に変換します。
func apiError(code int, message string) error {
	if code == http.StatusTooManyRequests {
		return fmt.Errorf("twelvedata: %w: %s", domain.ErrRateLimited, message)
	}
	return fmt.Errorf("twelvedata: %s", message)
}

func parseField(name, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s %q: %w", domain.ErrMalformedPayload, name, s, err)
	}
	return f, nil
}

// intervalParam は時間足をTwelve Dataのinterval表記に変換します。
func intervalParam(d time.Duration) (string, error) {
	switch d {
	case time.Minute:
		return "1min", nil
	case 5 * time.Minute:
		return "5min", nil
	case 15 * time.Minute:
		return "15min", nil
	case 30 * time.Minute:
		return "30min", nil
	case 45 * time.Minute:
		return "45min", nil
	case time.Hour:
		return "1h", nil
	case 2 * time.Hour:
		return "2h", nil
	case 4 * time.Hour:
		return "4h", nil
	case 24 * time.Hour:
		return "1day", nil
	}
	return "", fmt.Errorf("twelvedata: unsupported interval %s", d)
}
