// Package engine implements the asynchronous cache-consistency engine: the
// machinery that keeps the Redis cache loosely synchronized with PostgreSQL
// without blocking foreground request latency.
//
// Two background workers cooperate with the synchronous facade:
//
//   - The Refresher scans the hot set on a fixed interval and reloads entries
//     whose remaining TTL has dropped below a fraction of the full lifetime,
//     so hot readers never pay a cache-miss penalty.
//   - The Flusher drains the Redis-backed write queue in bounded batches and
//     applies each buffered mutation to the database, re-appending failures
//     to the tail of the queue.
//
// Consistency model: write-behind mutations are visible in the cache
// immediately and durable within roughly one flush interval. Requeue-to-tail
// on failure means FIFO ordering is only guaranteed among mutations that
// succeed within the same tick; a failure reorders the failed mutation after
// everything currently queued. Retries are unbounded with no backoff, so a
// permanently failing mutation stays in the queue forever. The hot set grows
// without bound: keys are only demoted when their cache entry has already
// expired. All durable applies are idempotent (upsert by email, no-op update
// and delete on absent rows), so concurrent instances flushing or refreshing
// the same key are safe under at-least-once delivery.
package engine
