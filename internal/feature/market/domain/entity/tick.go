// Package entity defines the domain models for the market feed feature.
package entity

import (
	"strings"
	"time"
)

// Tick is one timestamped price observation for a symbol.
type Tick struct {
	Symbol string    // Instrument symbol (e.g., "EUR/USD")
	Time   time.Time // Observation time
	Price  float64   // Observed or synthesized price
	Seq    uint64    // Delivery sequence within the symbol feed, strictly increasing
	Source string    // Provider that produced the price ("twelvedata", "binance", "synthetic")
}

// NormalizeSymbol converts URL-friendly forms such as "eur-usd", "EUR_USD"
// or "EURUSD" into the canonical "BASE/QUOTE" form.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "/", "_", "/", " ", "").Replace(s)
	if strings.Contains(s, "/") {
		return s
	}
	// 6文字のFXペア（EURUSDなど）は3文字ずつに分割
	if len(s) == 6 {
		return s[:3] + "/" + s[3:]
	}
	for _, quote := range []string{"USDT", "USD", "EUR", "JPY"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "/" + quote
		}
	}
	return s
}
