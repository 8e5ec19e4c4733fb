package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper stores idempotency keys in Redis so all instances can avoid
// creating the same task twice.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}

// Claim stores value under the key if it does not already exist. It returns
// true when the key was newly recorded, otherwise the value recorded by the
// first caller.
func (r *RedisDeduper) Claim(ctx context.Context, scope, key, value string) (string, bool, error) {
	k := r.key(scope, key)
	ok, err := r.client.SetNX(ctx, k, value, r.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return value, true, nil
	}
	existing, err := r.client.Get(ctx, k).Result()
	if err == redis.Nil {
		// Expired between the two calls; try once more.
		ok, err = r.client.SetNX(ctx, k, value, r.ttl).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return value, true, nil
		}
		existing, err = r.client.Get(ctx, k).Result()
	}
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

// Remove deletes a previously recorded key. It is used when downstream
// processing fails so the caller may retry the request.
func (r *RedisDeduper) Remove(ctx context.Context, scope, key string) error {
	return r.client.Del(ctx, r.key(scope, key)).Err()
}
