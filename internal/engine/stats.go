package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cacheflow/cacheflow/internal/models"
)

// Package-level metrics (registered once)
var (
	metricsOnce           sync.Once
	readsTotal            prometheus.Counter
	cacheHitsTotal        prometheus.Counter
	cacheMissesTotal      prometheus.Counter
	proactiveRefreshTotal prometheus.Counter
	cachedWritesTotal     prometheus.Counter
	dbFlushesTotal        prometheus.Counter
	flushFailuresTotal    prometheus.Counter
	hotKeysGauge          prometheus.Gauge
	pendingWritesGauge    prometheus.Gauge
)

func initMetrics() {
	metricsOnce.Do(func() {
		readsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "cacheflow_reads_total",
			Help: "Total number of foreground reads",
		})
		cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "cacheflow_cache_hits_total",
			Help: "Total number of cache hits",
		})
		cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "cacheflow_cache_misses_total",
			Help: "Total number of cache misses",
		})
		proactiveRefreshTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "cacheflow_proactive_refreshes_total",
			Help: "Total number of refresh-ahead reloads",
		})
		cachedWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "cacheflow_cached_writes_total",
			Help: "Total number of write-behind writes accepted",
		})
		dbFlushesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "cacheflow_db_flushes_total",
			Help: "Total number of queued mutations applied to the database",
		})
		flushFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "cacheflow_flush_failures_total",
			Help: "Total number of queued mutations that failed and were requeued",
		})
		hotKeysGauge = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cacheflow_hot_keys",
			Help: "Current size of the hot set",
		})
		pendingWritesGauge = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cacheflow_pending_writes",
			Help: "Current length of the write queue",
		})
	})
}

// Stats holds the engine's process-wide counters. It is shared by the
// foreground facade and both background workers; all fields are accessed
// atomically. External observers only ever see snapshots.
type Stats struct {
	reads              atomic.Int64
	cacheHits          atomic.Int64
	cacheMisses        atomic.Int64
	proactiveRefreshes atomic.Int64
	cachedWrites       atomic.Int64
	dbFlushes          atomic.Int64
	lastFlushUnixNano  atomic.Int64
}

// NewStats creates a Stats object and registers the prometheus collectors.
func NewStats() *Stats {
	initMetrics()
	return &Stats{}
}

func (s *Stats) IncRead() {
	s.reads.Add(1)
	readsTotal.Inc()
}

func (s *Stats) IncCacheHit() {
	s.cacheHits.Add(1)
	cacheHitsTotal.Inc()
}

func (s *Stats) IncCacheMiss() {
	s.cacheMisses.Add(1)
	cacheMissesTotal.Inc()
}

func (s *Stats) IncProactiveRefresh() {
	s.proactiveRefreshes.Add(1)
	proactiveRefreshTotal.Inc()
}

func (s *Stats) IncCachedWrite() {
	s.cachedWrites.Add(1)
	cachedWritesTotal.Inc()
}

func (s *Stats) IncDBFlush() {
	s.dbFlushes.Add(1)
	dbFlushesTotal.Inc()
}

func (s *Stats) IncFlushFailure() {
	flushFailuresTotal.Inc()
}

// MarkFlush records the end of a flush pass.
func (s *Stats) MarkFlush(t time.Time) {
	s.lastFlushUnixNano.Store(t.UnixNano())
}

// SetHotKeys mirrors the current hot-set size into the gauge.
func (s *Stats) SetHotKeys(n int64) {
	hotKeysGauge.Set(float64(n))
}

// SetPendingWrites mirrors the current queue length into the gauge.
func (s *Stats) SetPendingWrites(n int64) {
	pendingWritesGauge.Set(float64(n))
}

// LastFlush returns the time of the most recent flush pass, or nil if none
// has completed yet.
func (s *Stats) LastFlush() *time.Time {
	n := s.lastFlushUnixNano.Load()
	if n == 0 {
		return nil
	}
	t := time.Unix(0, n)
	return &t
}

// Snapshot returns a consistent-enough copy of the counters. Hot-set size and
// pending queue length are filled in by the caller, which owns the stores.
func (s *Stats) Snapshot() models.StatsSnapshot {
	return models.StatsSnapshot{
		TotalReads:         s.reads.Load(),
		CacheHits:          s.cacheHits.Load(),
		CacheMisses:        s.cacheMisses.Load(),
		ProactiveRefreshes: s.proactiveRefreshes.Load(),
		CachedWrites:       s.cachedWrites.Load(),
		DBFlushes:          s.dbFlushes.Load(),
		LastFlush:          s.LastFlush(),
	}
}
