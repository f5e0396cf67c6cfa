package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisStore keeps fixed-window counters in Redis so several relay
// instances share one budget per client.
type RedisStore struct {
	client *redis.Client
	length time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, length time.Duration) *RedisStore {
	return &RedisStore{client: client, length: length, now: time.Now}
}

func (s *RedisStore) Increment(ctx context.Context, key string) (int, time.Time, error) {
	k := redisKeyPrefix + key

	hits, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to increment %s: %w", k, err)
	}
	if hits == 1 {
		if err := s.client.PExpire(ctx, k, s.length).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to set window on %s: %w", k, err)
		}
	}

	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to read window of %s: %w", k, err)
	}
	if ttl < 0 {
		// Key lost its expiry (e.g. the PEXPIRE above never ran); start a new window.
		if err := s.client.PExpire(ctx, k, s.length).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to set window on %s: %w", k, err)
		}
		ttl = s.length
	}

	return int(hits), s.now().Add(ttl), nil
}
