package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cacheflow/cacheflow/internal/config"
	"github.com/cacheflow/cacheflow/internal/models"
)

// Engine is the consistency facade foreground handlers call. Reads are
// tracked and served cache-first; writes come in two flavors: write-behind
// (cache now, durable later via the flush worker) and write-through (durable
// first, then cache, with compensating invalidation on partial failure).
type Engine struct {
	cache   CacheStore
	users   UserStore
	tracker *AccessTracker
	queue   *WriteQueue
	stats   *Stats
	log     *logrus.Logger

	refresher *Refresher
	flusher   *Flusher

	ttl    time.Duration
	closed atomic.Bool
}

// New wires the engine and its two background workers. Start must be called
// before the workers run.
func New(cache CacheStore, users UserStore, cfg *config.CacheConfig, log *logrus.Logger) *Engine {
	stats := NewStats()
	tracker := NewAccessTracker(cache, cfg.AccessThreshold, log)
	queue := NewWriteQueue(cache)

	return &Engine{
		cache:     cache,
		users:     users,
		tracker:   tracker,
		queue:     queue,
		stats:     stats,
		log:       log,
		refresher: NewRefresher(cache, users, tracker, stats, cfg.TTL, cfg.RefreshInterval, cfg.RefreshThreshold, log),
		flusher:   NewFlusher(queue, users, stats, cfg.FlushInterval, cfg.FlushBatchSize, log),
		ttl:       cfg.TTL,
	}
}

// Start launches the refresh scheduler and the flush worker.
func (e *Engine) Start() {
	e.refresher.Start()
	e.flusher.Start()
}

// Close shuts the engine down: new writes are declined, both workers stop
// after finishing their current atomic step, and one final full drain bounds
// the data-loss window to whatever arrives after this point.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.refresher.Stop()
	e.flusher.Stop()

	if err := e.flusher.Drain(ctx); err != nil {
		return fmt.Errorf("final flush failed: %w", err)
	}
	return nil
}

// Read returns the user with the given ID, cache-first. Every read is
// tracked for hot-set promotion; misses fall through to the database and
// fill the cache with a full lifetime.
func (e *Engine) Read(ctx context.Context, id int64) (*models.User, error) {
	e.stats.IncRead()

	key := cacheKey(id)
	if err := e.tracker.Track(ctx, key); err != nil {
		// Tracking is best-effort; a cache hiccup must not fail the read.
		e.log.WithError(err).WithField("key", key).Warn("Failed to track access")
	}

	cached, found, err := e.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	if found {
		e.stats.IncCacheHit()
		var user models.User
		if err := json.Unmarshal([]byte(cached), &user); err != nil {
			return nil, fmt.Errorf("corrupt cache entry for %s: %w", key, err)
		}
		return &user, nil
	}

	e.stats.IncCacheMiss()

	user, err := e.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := e.fillCache(ctx, user); err != nil {
		e.log.WithError(err).WithField("key", key).Warn("Failed to fill cache after miss")
	}

	return user, nil
}

// CreateBehind performs a write-behind create: the user is assigned a
// provisional ID from the cache-side counter, written to the cache, and
// queued for durable insertion. Latency is bounded by the cache alone;
// durability lags by up to one flush interval.
func (e *Engine) CreateBehind(ctx context.Context, user *models.User) (*models.User, error) {
	if e.closed.Load() {
		return nil, ErrShuttingDown
	}

	id, err := e.cache.Incr(ctx, idCounterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to assign id: %w", err)
	}
	user.ID = id

	if err := e.fillCache(ctx, user); err != nil {
		return nil, err
	}
	if err := e.enqueue(ctx, models.MutationCreate, user); err != nil {
		return nil, err
	}

	e.log.WithField("id", user.ID).Info("Write-behind: user cached, queued for database")
	return user, nil
}

// UpdateBehind performs a write-behind update: the cache entry is
// overwritten immediately (visible to the next read), the durable update is
// queued.
func (e *Engine) UpdateBehind(ctx context.Context, id int64, user *models.User) (*models.User, error) {
	if e.closed.Load() {
		return nil, ErrShuttingDown
	}

	user.ID = id
	if err := e.fillCache(ctx, user); err != nil {
		return nil, err
	}
	if err := e.enqueue(ctx, models.MutationUpdate, user); err != nil {
		return nil, err
	}

	e.log.WithField("id", id).Info("Write-behind: user updated in cache, queued for database")
	return user, nil
}

// DeleteBehind performs a write-behind delete: the cache entry disappears
// immediately, the durable delete is queued.
func (e *Engine) DeleteBehind(ctx context.Context, id int64) error {
	if e.closed.Load() {
		return ErrShuttingDown
	}

	key := cacheKey(id)
	if err := e.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	if err := e.enqueue(ctx, models.MutationDelete, &models.User{ID: id}); err != nil {
		return err
	}

	e.log.WithField("id", id).Info("Write-behind: user deleted from cache, queued for database")
	return nil
}

// CreateThrough performs a write-through create: the database insert happens
// first; only on success is the cache written. If the cache write fails the
// entry is deleted so a confirmed durable success can never sit behind a
// stale cached copy, and the cache error propagates.
func (e *Engine) CreateThrough(ctx context.Context, user *models.User) (*models.User, error) {
	if e.closed.Load() {
		return nil, ErrShuttingDown
	}

	created, err := e.users.Insert(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := e.fillCache(ctx, created); err != nil {
		return nil, e.compensate(ctx, cacheKey(created.ID), err)
	}

	return created, nil
}

// UpdateThrough performs a write-through update: durable first, cache
// second, compensating invalidation if the cache write fails.
func (e *Engine) UpdateThrough(ctx context.Context, id int64, user *models.User) (*models.User, error) {
	if e.closed.Load() {
		return nil, ErrShuttingDown
	}

	updated, err := e.users.Update(ctx, id, user)
	if err != nil {
		return nil, err
	}

	if err := e.fillCache(ctx, updated); err != nil {
		return nil, e.compensate(ctx, cacheKey(id), err)
	}

	return updated, nil
}

// DeleteThrough performs a write-through delete: the durable row goes first,
// then the cache entry, hot-set membership and access count.
func (e *Engine) DeleteThrough(ctx context.Context, id int64) error {
	if e.closed.Load() {
		return ErrShuttingDown
	}

	deleted, err := e.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return models.ErrNotFound
	}

	key := cacheKey(id)
	if err := e.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	if err := e.tracker.Forget(ctx, key); err != nil {
		e.log.WithError(err).WithField("key", key).Warn("Failed to clear access tracking")
	}

	return nil
}

// ForceFlush drains the entire write queue now instead of waiting for the
// next flush tick.
func (e *Engine) ForceFlush(ctx context.Context) error {
	return e.flusher.Drain(ctx)
}

// Snapshot returns the current stats, including live hot-set size and
// pending queue length.
func (e *Engine) Snapshot(ctx context.Context) (*models.StatsSnapshot, error) {
	snap := e.stats.Snapshot()

	hot, err := e.tracker.HotCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read hot set size: %w", err)
	}
	pending, err := e.queue.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue length: %w", err)
	}

	snap.HotKeys = hot
	snap.PendingWrites = pending
	e.stats.SetHotKeys(hot)
	e.stats.SetPendingWrites(pending)

	return &snap, nil
}

// HotKeys returns the current hot-set members and the raw access counters,
// for the inspection endpoint.
func (e *Engine) HotKeys(ctx context.Context) ([]string, map[string]string, error) {
	keys, err := e.tracker.HotKeys(ctx)
	if err != nil {
		return nil, nil, err
	}
	counts, err := e.tracker.AccessCounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	return keys, counts, nil
}

func (e *Engine) fillCache(ctx context.Context, user *models.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := e.cache.Set(ctx, cacheKey(user.ID), string(payload), e.ttl); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

func (e *Engine) enqueue(ctx context.Context, op models.MutationOp, user *models.User) error {
	m := &models.Mutation{
		ID:         uuid.NewString(),
		Op:         op,
		User:       user,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := e.queue.Enqueue(ctx, m); err != nil {
		return err
	}

	e.stats.IncCachedWrite()
	if n, err := e.queue.Len(ctx); err == nil {
		e.stats.SetPendingWrites(n)
	}
	return nil
}

// compensate deletes the cache entry after a failed cache write that
// followed a durable success, then returns the original error.
func (e *Engine) compensate(ctx context.Context, key string, cause error) error {
	if err := e.cache.Delete(ctx, key); err != nil {
		e.log.WithError(err).WithField("key", key).
			Error("Failed to invalidate cache entry after partial write-through failure")
	}
	return cause
}
