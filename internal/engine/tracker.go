package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// AccessTracker counts reads per cache key and promotes keys into the hot
// set once they cross the access threshold. Promotion is one-way: the
// tracker never demotes a key; only the refresh scheduler removes keys, and
// only when their cache entry has already expired. There is no decay and no
// capacity bound, so the hot set grows for the life of the data.
//
// Counts and membership live in Redis (a hash and a set), so they are shared
// with any other instance pointed at the same cache.
type AccessTracker struct {
	cache     CacheStore
	threshold int64
	log       *logrus.Logger
}

// NewAccessTracker creates an access tracker with the given promotion
// threshold.
func NewAccessTracker(cache CacheStore, threshold int64, log *logrus.Logger) *AccessTracker {
	return &AccessTracker{
		cache:     cache,
		threshold: threshold,
		log:       log,
	}
}

// Track increments the access count for key and promotes it into the hot set
// when the new count meets the threshold. SAdd is idempotent, so repeated
// promotion is a no-op.
func (t *AccessTracker) Track(ctx context.Context, key string) error {
	count, err := t.cache.HIncrBy(ctx, accessCountsKey, key, 1)
	if err != nil {
		return fmt.Errorf("failed to track access for %s: %w", key, err)
	}

	if count >= t.threshold {
		if err := t.cache.SAdd(ctx, hotKeysKey, key); err != nil {
			return fmt.Errorf("failed to promote %s to hot set: %w", key, err)
		}
		if count == t.threshold {
			t.log.WithFields(logrus.Fields{
				"key":   key,
				"count": count,
			}).Info("Key promoted to hot set")
		}
	}

	return nil
}

// HotKeys returns a snapshot of the current hot-set members. Membership may
// change between enumeration and use; callers must tolerate keys that vanish
// mid-scan.
func (t *AccessTracker) HotKeys(ctx context.Context) ([]string, error) {
	return t.cache.SMembers(ctx, hotKeysKey)
}

// HotCount returns the current hot-set size.
func (t *AccessTracker) HotCount(ctx context.Context) (int64, error) {
	return t.cache.SCard(ctx, hotKeysKey)
}

// Demote removes key from the hot set. Reserved for the refresh scheduler,
// which calls it when a key's cache entry has already expired.
func (t *AccessTracker) Demote(ctx context.Context, key string) error {
	return t.cache.SRem(ctx, hotKeysKey, key)
}

// Forget drops both hot-set membership and the access count for key. Used
// when the underlying entity is deleted.
func (t *AccessTracker) Forget(ctx context.Context, key string) error {
	if err := t.cache.SRem(ctx, hotKeysKey, key); err != nil {
		return err
	}
	return t.cache.HDel(ctx, accessCountsKey, key)
}

// AccessCounts returns the raw per-key read counters.
func (t *AccessTracker) AccessCounts(ctx context.Context) (map[string]string, error) {
	return t.cache.HGetAll(ctx, accessCountsKey)
}
