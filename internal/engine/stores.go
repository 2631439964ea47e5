package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cacheflow/cacheflow/internal/models"
)

// Redis key layout shared by the facade and both workers.
const (
	accessCountsKey = "access_counts"
	hotKeysKey      = "hot_keys"
	writeQueueKey   = "write_queue"
	idCounterKey    = "user_id_counter"
)

// CacheStore is the cache contract the engine consumes. internal/cache.Redis
// is the production implementation. Every operation is an atomic single-key
// round trip; there are no cross-key transactions.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	RemainingTTL(ctx context.Context, key string) (time.Duration, bool, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	RPush(ctx context.Context, key string, values ...string) error
	LPop(ctx context.Context, key string) (string, bool, error)
	LLen(ctx context.Context, key string) (int64, error)
}

// UserStore is the durable-store contract the engine consumes.
// internal/database.UserRepository is the production implementation.
// GetByID and Update report absence as models.ErrNotFound; Delete reports it
// as a false bool. Upsert must be idempotent on the user's email.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Insert(ctx context.Context, user *models.User) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id int64, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

func cacheKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func userIDFromKey(key string) (int64, error) {
	raw, ok := strings.CutPrefix(key, "user:")
	if !ok {
		return 0, fmt.Errorf("malformed cache key %q", key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed cache key %q: %w", key, err)
	}
	return id, nil
}
