// Package domain defines domain-level errors for the market feed feature.
package domain

import "errors"

var (
	// ErrSourceUnavailable indicates that every real price provider failed.
	// It never reaches callers of GetPrice: the synthetic generator absorbs it.
	ErrSourceUnavailable = errors.New("all price providers unavailable")

	// ErrRateLimited is returned by a provider that refused a call locally
	// because its request budget for the current window is spent.
	ErrRateLimited = errors.New("provider rate limit reached")

	// ErrMalformedPayload indicates that a provider answered with a body that
	// could not be interpreted as a price or candle series.
	ErrMalformedPayload = errors.New("malformed provider payload")
)
