package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options_backend/internal/feature/market/domain"
)

func TestToBinanceSymbol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"BTC/USD", "BTCUSDT"},
		{"eth/usd", "ETHUSDT"},
		{"BTC/EUR", "BTCEUR"},
		{"ETH/USDT", "ETHUSDT"},
		{"BNBUSDT", "BNBUSDT"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ToBinanceSymbol(tt.in))
		})
	}
}

func TestBinanceProvider_Quote(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"64250.12000000"}`))
	}))
	defer server.Close()

	p := NewBinanceProvider(Config{BaseURL: server.URL}, server.Client())
	price, err := p.Quote(context.Background(), "BTC/USD")

	require.NoError(t, err)
	assert.InDelta(t, 64250.12, price, 1e-9)
	assert.Equal(t, "binance", p.Name())
}

func TestBinanceProvider_Quote_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "invalid symbol", status: http.StatusBadRequest, body: `{"code":-1121,"msg":"Invalid symbol."}`, wantMsg: "Invalid symbol."},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: domain.ErrRateLimited},
		{name: "ip banned", status: http.StatusTeapot, wantErr: domain.ErrRateLimited},
		{name: "server error", status: http.StatusBadGateway, wantMsg: "binance http 502"},
		{name: "bad price", status: http.StatusOK, body: `{"symbol":"BTCUSDT","price":"x"}`, wantErr: domain.ErrMalformedPayload},
		{name: "bad json", status: http.StatusOK, body: `[`, wantErr: domain.ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewBinanceProvider(Config{BaseURL: server.URL}, server.Client()).Quote(context.Background(), "BTC/USD")

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestBinanceProvider_TimeSeries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			[1736935200000,"3300.10","3305.00","3299.00","3304.20","12.5",1736935259999,"41000.1",37,"6.1","20000.0","0"],
			[1736935260000,"3304.20","3310.00","3303.00","3308.00","8.0",1736935319999,"26000.0",21,"4.0","13000.0","0"]
		]`))
	}))
	defer server.Close()

	p := NewBinanceProvider(Config{BaseURL: server.URL}, server.Client())
	cs, err := p.TimeSeries(context.Background(), "ETH/USD", time.Minute, 2)

	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), cs[0].Time)
	assert.Equal(t, 3300.10, cs[0].Open)
	assert.Equal(t, 3305.00, cs[0].High)
	assert.Equal(t, 3299.00, cs[0].Low)
	assert.Equal(t, 3304.20, cs[0].Close)
	assert.Equal(t, int64(37), cs[0].Volume)
	assert.Equal(t, "ETH/USD", cs[1].Symbol)
	assert.Equal(t, time.Minute, cs[1].Interval)
}

func TestBinanceProvider_TimeSeries_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"short kline", `[[1736935200000,"1","1","1"]]`},
		{"non-numeric open", `[[1736935200000,"x","1","1","1","1",1,"1",1]]`},
		{"string open time", `[["t","1","1","1","1","1",1,"1",1]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewBinanceProvider(Config{BaseURL: server.URL}, server.Client()).TimeSeries(context.Background(), "BTC/USD", time.Minute, 1)
			assert.ErrorIs(t, err, domain.ErrMalformedPayload)
		})
	}
}

func TestBinanceProvider_TimeSeries_UnsupportedInterval(t *testing.T) {
	t.Parallel()

	_, err := NewBinanceProvider(Config{}, http.DefaultClient).TimeSeries(context.Background(), "BTC/USD", 10*time.Second, 1)
	assert.ErrorContains(t, err, "unsupported interval")
}
