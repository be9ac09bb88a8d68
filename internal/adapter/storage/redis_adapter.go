package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
	inFlightMarker       = "pending"
)

// RedisAdapter keeps idempotency keys for order placement.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = idempotencyKeyTTL
	}
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) Claim(ctx context.Context, key string) (bool, string, error) {
	redisKey := idempotencyKeyPrefix + key

	ok, err := r.client.SetNX(ctx, redisKey, inFlightMarker, r.ttl).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, "", nil
	}

	value, err := r.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// released between the two calls; let the caller treat it as in flight
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if value == inFlightMarker {
		return false, "", nil
	}
	return false, value, nil
}

func (r *RedisAdapter) Complete(ctx context.Context, key, orderID string) error {
	return r.client.Set(ctx, idempotencyKeyPrefix+key, orderID, r.ttl).Err()
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
