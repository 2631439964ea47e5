package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cacheflow/cacheflow/internal/config"
)

// Redis wraps a go-redis client behind the cache-store operations the engine
// consumes: plain keys with TTL for entries, a hash for access counts, a set
// for hot keys and a list backing the write queue. All operations are single
// round trips; absence is reported as a boolean, not an error.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis cache store from configuration.
func NewRedis(cfg *config.RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client}
}

// NewRedisWithClient wraps an existing client. Used by tests.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get returns the value stored at key, or found=false if the key is absent
// or has expired.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores value at key with the given TTL.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes the given keys. Deleting an absent key is not an error.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// Incr atomically increments the integer at key and returns the new value.
func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// HIncrBy atomically increments field within the hash at key.
func (r *Redis) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	return r.client.HIncrBy(ctx, key, field, incr).Result()
}

// HDel removes fields from the hash at key.
func (r *Redis) HDel(ctx context.Context, key string, fields ...string) error {
	return r.client.HDel(ctx, key, fields...).Err()
}

// HGetAll returns all field/value pairs of the hash at key.
func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

// RemainingTTL reports the remaining lifetime of key. found is false when the
// key does not exist (or carries no expiry, which for engine-managed entries
// never happens).
func (r *Redis) RemainingTTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}

// SAdd adds members to the set at key.
func (r *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	return r.client.SAdd(ctx, key, members).Err()
}

// SRem removes members from the set at key.
func (r *Redis) SRem(ctx context.Context, key string, members ...string) error {
	return r.client.SRem(ctx, key, members).Err()
}

// SMembers returns all members of the set at key.
func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

// SCard returns the cardinality of the set at key.
func (r *Redis) SCard(ctx context.Context, key string) (int64, error) {
	return r.client.SCard(ctx, key).Result()
}

// RPush appends values to the tail of the list at key.
func (r *Redis) RPush(ctx context.Context, key string, values ...string) error {
	return r.client.RPush(ctx, key, values).Err()
}

// LPop removes and returns the head of the list at key, or found=false when
// the list is empty.
func (r *Redis) LPop(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// LLen returns the length of the list at key.
func (r *Redis) LLen(ctx context.Context, key string) (int64, error) {
	return r.client.LLen(ctx, key).Result()
}
