package domain

import "github.com/pkg/errors"

// Failure taxonomy returned by the engine. The boundary layer maps these to
// caller-visible responses; everything else is treated as ErrPersistence.
var (
	// ErrInvalidInput malformed or out-of-range request. Client fixable, no retry.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientFunds debit would bring a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotFound account id does not resolve.
	ErrAccountNotFound = errors.New("account not found")
	// ErrRecipientNotFound transfer recipient handle does not resolve.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrRateUnavailable upstream fetch failed and no cached rate exists.
	// Retryable by the caller after backoff.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	// ErrPersistence storage layer fault. All partial adjustments are rolled
	// back before this is returned, so a retry is safe.
	ErrPersistence = errors.New("persistence failure")
)
