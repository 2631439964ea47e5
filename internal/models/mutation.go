package models

import "time"

// MutationOp identifies the kind of durable write a queued mutation carries.
type MutationOp string

const (
	MutationCreate MutationOp = "create"
	MutationUpdate MutationOp = "update"
	MutationDelete MutationOp = "delete"
)

// Mutation is one pending durable write buffered in the write queue.
// It is created once per logical write and destroyed on successful apply;
// a failed apply re-appends a copy to the tail of the queue, so a single
// mutation may be delivered to the database more than once.
type Mutation struct {
	ID         string     `json:"id"`
	Op         MutationOp `json:"operation"`
	User       *User      `json:"user"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// StatsSnapshot is a point-in-time view of the engine's counters.
type StatsSnapshot struct {
	TotalReads         int64      `json:"total_reads"`
	CacheHits          int64      `json:"cache_hits"`
	CacheMisses        int64      `json:"cache_misses"`
	ProactiveRefreshes int64      `json:"proactive_refreshes"`
	CachedWrites       int64      `json:"cached_writes"`
	DBFlushes          int64      `json:"db_flushes"`
	HotKeys            int64      `json:"hot_keys"`
	PendingWrites      int64      `json:"pending_writes"`
	LastFlush          *time.Time `json:"last_flush,omitempty"`
}
