// Package domain defines domain-level errors for the ledger feature.
package domain

import "errors"

var (
	// ErrInsufficientBalance is returned when a debit exceeds the current balance.
	// No state changes when it is returned.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount is returned for non-finite, zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be a positive finite number")

	// ErrUnauthenticated is returned when no account identity is available.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAccountNotFound is returned when the account does not exist remotely.
	ErrAccountNotFound = errors.New("account not found")

	// ErrPersistenceFailure wraps failures of the remote account store or procedures.
	ErrPersistenceFailure = errors.New("persistence failure")
)
