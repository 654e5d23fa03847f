// Package entity defines the domain models for the candles feature.
package entity

import "time"

// Candle represents one OHLCV bar for a symbol over a fixed, wall-clock
// aligned interval.
type Candle struct {
	Symbol   string        // Instrument symbol (e.g., "EUR/USD", "BTC/USD")
	Interval time.Duration // Bar width (e.g., time.Minute)
	Time     time.Time     // Start of the interval, aligned to Interval
	Open     float64       // First price in the interval
	High     float64       // Highest price in the interval
	Low      float64       // Lowest price in the interval
	Close    float64       // Latest price in the interval
	Volume   int64         // Number of observations folded into the bar
}

// Valid reports whether the OHLC invariants hold.
func (c Candle) Valid() bool {
	return c.Low <= c.Open && c.Low <= c.Close && c.High >= c.Open && c.High >= c.Close
}
