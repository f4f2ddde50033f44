package rate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tonex/tonex/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL freshness window of a cached snapshot.
	DefaultTTL = 60 * time.Second
	// DefaultFetchTimeout upper bound on one upstream fetch.
	DefaultFetchTimeout = 5 * time.Second

	staleWarning = "using cached rate"
)

// Provider serves the current market rate for a pair. Fresh cache hits are
// returned directly; on expiry one upstream fetch is issued, deduplicated
// across concurrent callers. If the fetch fails and any cache entry exists,
// even an expired one, it is served as a stale fallback with a warning.
// Only when both the upstream and the cache come up empty does the provider
// fail with domain.ErrRateUnavailable.
type Provider struct {
	source       Source
	cache        Cache
	ttl          time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures the Provider.
type Option func(*Provider)

// WithTTL overrides the cache freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.ttl = ttl }
}

// WithFetchTimeout overrides the upstream fetch bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Provider) { p.fetchTimeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a rate provider over the given upstream source and cache.
func NewProvider(logger *zap.Logger, source Source, cache Cache, opts ...Option) *Provider {
	p := &Provider{
		source:       source,
		cache:        cache,
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CurrentRate returns the rate snapshot for the pair.
func (p *Provider) CurrentRate(ctx context.Context, pair domain.Pair) (domain.RateSnapshot, error) {
	if snap, ok := p.fresh(ctx, pair); ok {
		return snap, nil
	}

	v, err, _ := p.group.Do(pair.String(), func() (interface{}, error) {
		// a caller that waited on another flight may find the cache already
		// refreshed by the time it gets here
		if snap, ok := p.fresh(ctx, pair); ok {
			return snap, nil
		}
		return p.refresh(ctx, pair)
	})
	if err != nil {
		return domain.RateSnapshot{}, err
	}

	return v.(domain.RateSnapshot), nil
}

// fresh returns the cached snapshot if it is within the TTL window.
func (p *Provider) fresh(ctx context.Context, pair domain.Pair) (domain.RateSnapshot, bool) {
	snap, ok, err := p.cache.Get(ctx, pair)
	if err != nil {
		p.logger.Warn("rate cache read failed", zap.String("pair", pair.String()), zap.Error(err))
		return domain.RateSnapshot{}, false
	}
	if !ok || p.now().Sub(snap.FetchedAt) >= p.ttl {
		return domain.RateSnapshot{}, false
	}

	snap.Origin = domain.RateCached
	snap.Warning = ""
	return snap, true
}

func (p *Provider) refresh(ctx context.Context, pair domain.Pair) (domain.RateSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	value, err := p.source.FetchRate(fetchCtx, pair)
	if err == nil && !value.IsPositive() {
		err = errors.Errorf("%s returned non-positive rate %s for %s", p.source.Name(), value, pair)
	}
	if err != nil {
		p.logger.Warn("rate fetch failed",
			zap.String("source", p.source.Name()),
			zap.String("pair", pair.String()),
			zap.Error(err))

		// any cached snapshot, expired included, beats failing the operation
		if snap, ok, cacheErr := p.cache.Get(ctx, pair); cacheErr == nil && ok {
			snap.Origin = domain.RateStaleFallback
			snap.Warning = staleWarning
			return snap, nil
		}
		return domain.RateSnapshot{}, errors.Wrapf(domain.ErrRateUnavailable, "fetch %s from %s: %v", pair, p.source.Name(), err)
	}

	snap := domain.RateSnapshot{
		Pair:      pair,
		Value:     value,
		FetchedAt: p.now(),
		Origin:    domain.RateLive,
	}
	if err := p.cache.Set(ctx, snap); err != nil {
		p.logger.Warn("rate cache write failed", zap.String("pair", pair.String()), zap.Error(err))
	}

	return snap, nil
}
