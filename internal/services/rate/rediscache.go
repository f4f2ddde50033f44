package rate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/tonex/tonex/internal/domain"
)

const redisKeyPrefix = "tonex:rate:"

// RedisCache shares the rate cache between processes. Entries are kept well
// past the TTL so stale fallback still has something to serve; the provider
// judges freshness from the stored FetchedAt, not from key expiry.
type RedisCache struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisCache creates a Redis-backed rate cache. Retention bounds how long
// an expired snapshot stays available for stale fallback.
func NewRedisCache(client *redis.Client, retention time.Duration) *RedisCache {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisCache{client: client, retention: retention}
}

func (c *RedisCache) Get(ctx context.Context, pair domain.Pair) (domain.RateSnapshot, bool, error) {
	payload, err := c.client.Get(ctx, redisKeyPrefix+pair.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RateSnapshot{}, false, nil
	}
	if err != nil {
		return domain.RateSnapshot{}, false, errors.Wrap(err, "read rate snapshot from redis")
	}

	var snap domain.RateSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.RateSnapshot{}, false, errors.Wrap(err, "decode rate snapshot")
	}

	return snap, true, nil
}

func (c *RedisCache) Set(ctx context.Context, snapshot domain.RateSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal rate snapshot")
	}

	if err := c.client.Set(ctx, redisKeyPrefix+snapshot.Pair.String(), payload, c.retention).Err(); err != nil {
		return errors.Wrap(err, "write rate snapshot to redis")
	}
	return nil
}
