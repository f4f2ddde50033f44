package domain

import "github.com/shopspring/decimal"

// Account holds per-user multi-currency balances. Accounts are created at
// registration (outside this core) and mutated only through the account
// store's atomic adjust operations.
type Account struct {
	// ID opaque user identifier.
	ID string
	// Handle human-facing name used to address transfer recipients.
	Handle string
	// Balances currency code to non-negative amount.
	Balances map[Currency]decimal.Decimal
}

// Adjustment is one signed balance delta against a single account.
type Adjustment struct {
	AccountID string
	Currency  Currency
	Delta     decimal.Decimal
}

// Principal is the authenticated identity on whose behalf an operation
// executes. Resolved externally; opaque to the core.
type Principal struct {
	UserID string
	Handle string
}
