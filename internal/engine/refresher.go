package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cacheflow/cacheflow/internal/models"
)

// Refresher is the refresh-ahead scheduler. On every tick it scans the hot
// set and, for each key, either reloads the entry from the database (when
// its remaining TTL has dropped below the refresh cutoff), demotes it (when
// the entry has already expired) or skips it. Ticks run strictly one at a
// time: a new tick cannot start until the previous one has returned.
type Refresher struct {
	cache   CacheStore
	users   UserStore
	tracker *AccessTracker
	stats   *Stats
	log     *logrus.Logger

	interval time.Duration
	ttl      time.Duration
	// cutoff is the remaining-TTL value below which a hot entry is due for
	// a reload: ttl * (1 - refresh threshold).
	cutoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefresher creates a refresh scheduler. threshold is the elapsed fraction
// of TTL after which a hot entry becomes due (0.75 means reload once 75% of
// the lifetime has passed).
func NewRefresher(cache CacheStore, users UserStore, tracker *AccessTracker, stats *Stats, ttl time.Duration, interval time.Duration, threshold float64, log *logrus.Logger) *Refresher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		cache:    cache,
		users:    users,
		tracker:  tracker,
		stats:    stats,
		log:      log,
		interval: interval,
		ttl:      ttl,
		cutoff:   time.Duration(float64(ttl) * (1 - threshold)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background refresh loop.
func (r *Refresher) Start() {
	r.wg.Add(1)
	go r.loop()
	r.log.WithFields(logrus.Fields{
		"interval": r.interval,
		"cutoff":   r.cutoff,
	}).Info("Refresh-ahead worker started")
}

// Stop cancels the worker and waits for the in-flight tick to finish. The
// tick checks for cancellation between keys, so at most one key reload
// completes after Stop is called.
func (r *Refresher) Stop() {
	r.cancel()
	r.wg.Wait()
	r.log.Info("Refresh-ahead worker stopped")
}

func (r *Refresher) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.tick(r.ctx)
		}
	}
}

// tick runs one full hot-set scan. A failure on one key is logged and does
// not abort the remaining scan.
func (r *Refresher) tick(ctx context.Context) {
	keys, err := r.tracker.HotKeys(ctx)
	if err != nil {
		r.log.WithError(err).Error("Failed to enumerate hot set")
		return
	}
	if len(keys) == 0 {
		return
	}

	r.log.WithField("count", len(keys)).Debug("Checking hot keys for refresh")

	for _, key := range keys {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := r.refreshKey(ctx, key); err != nil {
			r.log.WithError(err).WithField("key", key).Error("Failed to refresh hot key")
		}
	}

	if n, err := r.tracker.HotCount(ctx); err == nil {
		r.stats.SetHotKeys(n)
	}
}

func (r *Refresher) refreshKey(ctx context.Context, key string) error {
	remaining, found, err := r.cache.RemainingTTL(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		// Entry already expired naturally; the key no longer earns its
		// place in the hot set.
		return r.tracker.Demote(ctx, key)
	}
	if remaining >= r.cutoff {
		return nil
	}

	id, err := userIDFromKey(key)
	if err != nil {
		return err
	}

	user, err := r.users.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		// Row deleted out from under the cache. Let the entry lapse; the
		// next tick demotes the key once it has expired.
		return nil
	}
	if err != nil {
		return err
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}

	// Single atomic overwrite with a full lifetime.
	if err := r.cache.Set(ctx, key, string(payload), r.ttl); err != nil {
		return err
	}

	r.stats.IncProactiveRefresh()
	r.log.WithFields(logrus.Fields{
		"key":       key,
		"remaining": remaining,
	}).Info("Proactively refreshed hot key")

	return nil
}
