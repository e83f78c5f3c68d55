package throttle

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared Limiter for multi-instance deployments: a fixed
// window counter per organization and plan, kept in Redis so all replicas
// draw from the same bucket.
type RedisStore struct {
	client *redis.Client
	limits Limits
}

// NewRedisStore creates a RedisStore with the given client and plan limits.
func NewRedisStore(client *redis.Client, limits Limits) *RedisStore {
	return &RedisStore{client: client, limits: limits}
}

// Allow implements Limiter. INCR is atomic in Redis, so concurrent consumers
// across replicas still observe a monotonic count within the window.
func (s *RedisStore) Allow(ctx context.Context, orgID string, plan Plan) (Decision, error) {
	key := fmt.Sprintf("throttle:%s:%s", plan, orgID)
	capacity := s.limits.Capacity(plan)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("throttle incr %s: %w", key, err)
	}

	// First hit in a window owns setting the expiry.
	if count == 1 {
		if err := s.client.Expire(ctx, key, s.limits.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("throttle expire %s: %w", key, err)
		}
	}

	if count > int64(capacity) {
		dec := Decision{Allowed: false, Plan: plan}
		if ttl, err := s.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
			dec.RetryAfter = ttl
		}
		return dec, nil
	}

	return Decision{Allowed: true, Plan: plan, Remaining: capacity - int(count)}, nil
}

// Ping verifies the Redis connection, used by the health endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
