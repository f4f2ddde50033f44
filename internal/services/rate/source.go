// Package rate resolves market exchange rates with caching, single-flight
// deduplication and stale fallback.
package rate

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tonex/tonex/internal/domain"
)

// Source fetches the current market rate for a pair from an upstream venue.
type Source interface {
	FetchRate(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	Name() string
}
