package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"EUR/USD", "EUR/USD"},
		{"eur-usd", "EUR/USD"},
		{"EUR_USD", "EUR/USD"},
		{"EURUSD", "EUR/USD"},
		{"btcusd", "BTC/USD"},
		{"ETHUSDT", "ETH/USDT"},
		{" gbp/jpy ", "GBP/JPY"},
		{"AAPL", "AAPL"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NormalizeSymbol(tt.input))
		})
	}
}
