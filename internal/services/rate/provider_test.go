package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tonex/tonex/internal/domain"
	"go.uber.org/zap"
)

var tonUsdt = domain.Pair{From: domain.TON, To: domain.USDT}

type fakeSource struct {
	mu    sync.Mutex
	value decimal.Decimal
	err   error
	delay time.Duration
	hits  int32
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) FetchRate(ctx context.Context, _ domain.Pair) (decimal.Decimal, error) {
	atomic.AddInt32(&s.hits, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return decimal.Decimal{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.err
}

func (s *fakeSource) set(value decimal.Decimal, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.err = err
}

func newTestProvider(t *testing.T, source Source, now *time.Time) *Provider {
	t.Helper()
	return NewProvider(zap.NewNop(), source, NewMemCache(), WithClock(func() time.Time { return *now }))
}

func TestCurrentRateLiveThenCached(t *testing.T) {
	now := time.Now()
	source := &fakeSource{value: decimal.RequireFromString("2.5")}
	provider := newTestProvider(t, source, &now)

	first, err := provider.CurrentRate(context.Background(), tonUsdt)
	require.NoError(t, err)
	require.Equal(t, domain.RateLive, first.Origin)
	require.True(t, first.Value.Equal(decimal.RequireFromString("2.5")))

	// second call within TTL returns the identical snapshot from cache
	source.set(decimal.RequireFromString("9.9"), nil)
	second, err := provider.CurrentRate(context.Background(), tonUsdt)
	require.NoError(t, err)
	require.Equal(t, domain.RateCached, second.Origin)
	require.True(t, second.Value.Equal(first.Value))
	require.Equal(t, first.FetchedAt, second.FetchedAt)
	require.EqualValues(t, 1, atomic.LoadInt32(&source.hits))
}

func TestCurrentRateRefreshAfterTTL(t *testing.T) {
	now := time.Now()
	source := &fakeSource{value: decimal.RequireFromString("2.5")}
	provider := newTestProvider(t, source, &now)

	_, err := provider.CurrentRate(context.Background(), tonUsdt)
	require.NoError(t, err)

	source.set(decimal.RequireFromString("3.1"), nil)
	now = now.Add(DefaultTTL + time.Second)

	snap, err := provider.CurrentRate(context.Background(), tonUsdt)
	require.NoError(t, err)
	require.Equal(t, domain.RateLive, snap.Origin)
	require.True(t, snap.Value.Equal(decimal.RequireFromString("3.1")))
	require.EqualValues(t, 2, atomic.LoadInt32(&source.hits))
}

func TestCurrentRateStaleFallback(t *testing.T) {
	now := time.Now()
	source := &fakeSource{value: decimal.RequireFromString("2.5")}
	provider := newTestProvider(t, source, &now)

	_, err := provider.CurrentRate(context.Background(), tonUsdt)
	require.NoError(t, err)

	source.set(decimal.Decimal{}, errors.New("upstream down"))
	now = now.Add(DefaultTTL + time.Minute)

	snap, err := provider.CurrentRate(context.Background(), tonUsdt)
	require.NoError(t, err)
	require.Equal(t, domain.RateStaleFallback, snap.Origin)
	require.NotEmpty(t, snap.Warning)
	require.True(t, snap.Value.Equal(decimal.RequireFromString("2.5")))
}

func TestCurrentRateUnavailable(t *testing.T) {
	now := time.Now()
	source := &fakeSource{err: errors.New("upstream down")}
	provider := newTestProvider(t, source, &now)

	_, err := provider.CurrentRate(context.Background(), tonUsdt)
	require.ErrorIs(t, err, domain.ErrRateUnavailable)
}

func TestCurrentRateRejectsNonPositive(t *testing.T) {
	now := time.Now()
	source := &fakeSource{value: decimal.Zero}
	provider := newTestProvider(t, source, &now)

	_, err := provider.CurrentRate(context.Background(), tonUsdt)
	require.ErrorIs(t, err, domain.ErrRateUnavailable)
}

func TestCurrentRateSingleFlight(t *testing.T) {
	now := time.Now()
	source := &fakeSource{value: decimal.RequireFromString("2.5"), delay: 100 * time.Millisecond}
	provider := newTestProvider(t, source, &now)

	const callers = 16

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := provider.CurrentRate(context.Background(), tonUsdt)
			require.NoError(t, err)
			require.True(t, snap.Value.Equal(decimal.RequireFromString("2.5")))
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&source.hits))
}
