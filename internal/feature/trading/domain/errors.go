// Package domain defines domain-level errors for the trading feature.
package domain

import (
	"errors"

	ledgerdomain "options_backend/internal/feature/ledger/domain"
)

var (
	// ErrInsufficientBalance is returned by Open when the stake exceeds the balance.
	ErrInsufficientBalance = ledgerdomain.ErrInsufficientBalance

	// ErrInvalidStake is returned for non-finite, non-positive or below-minimum stakes.
	ErrInvalidStake = errors.New("invalid stake")

	// ErrInvalidContract is returned for an unknown direction, an out-of-range duration or a missing symbol.
	ErrInvalidContract = errors.New("invalid contract")

	// ErrContractNotFound is returned for unknown contract ids.
	ErrContractNotFound = errors.New("contract not found")

	// ErrNotExpired is returned when resolving a contract before its expiry.
	ErrNotExpired = errors.New("contract has not expired")

	// ErrDuplicateResolution guards against settling a contract twice. It is never returned by Resolve.
	ErrDuplicateResolution = errors.New("contract already resolved")

	// ErrPersistenceFailure wraps contract store failures. They are logged only.
	ErrPersistenceFailure = errors.New("persistence failure")
)
