package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateOrigin tells how a rate snapshot was obtained.
type RateOrigin string

const (
	// RateLive fetched from the upstream source on this request.
	RateLive RateOrigin = "live"
	// RateCached served from the cache within its freshness window.
	RateCached RateOrigin = "cached"
	// RateStaleFallback served from an expired cache entry because the
	// upstream fetch failed.
	RateStaleFallback RateOrigin = "stale-fallback"
)

// RateSnapshot is one observation of the market rate for a pair.
// Snapshots are immutable: a refresh supersedes the cached snapshot,
// it never mutates it.
type RateSnapshot struct {
	Pair      Pair            `json:"pair"`
	Value     decimal.Decimal `json:"value"`
	FetchedAt time.Time       `json:"fetched_at"`
	Origin    RateOrigin      `json:"origin"`
	// Warning is set when Origin is RateStaleFallback.
	Warning string `json:"warning,omitempty"`
}
