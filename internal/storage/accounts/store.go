// Package accounts holds per-user multi-currency balances and applies
// balance deltas atomically.
package accounts

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tonex/tonex/internal/domain"
)

// Store is the balance store contract. Implementations must serialize
// concurrent adjustments per account so a balance can never be read stale
// and driven negative, and must apply multi-account batches all or nothing.
type Store interface {
	// Adjust applies one signed delta and returns the new balance.
	Adjust(ctx context.Context, accountID string, currency domain.Currency, delta decimal.Decimal) (decimal.Decimal, error)
	// AtomicMultiAdjust applies every delta in the batch or none of them.
	// A single insufficient balance or unknown account fails the whole
	// batch with all balances unchanged.
	AtomicMultiAdjust(ctx context.Context, adjustments []domain.Adjustment) error
	// Balances returns a copy of the account's balances for every
	// supported currency.
	Balances(ctx context.Context, accountID string) (map[domain.Currency]decimal.Decimal, error)
	// ResolveHandle maps a user handle to an account id.
	ResolveHandle(ctx context.Context, handle string) (string, error)
}
