package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cacheflow/cacheflow/internal/models"
)

// WriteQueue is the ordered buffer of pending durable writes, backed by a
// Redis list so queued mutations survive a process crash while their cache
// copies remain visible. Appends go to the tail, the flush worker consumes
// from the head.
type WriteQueue struct {
	cache CacheStore
}

// NewWriteQueue creates a write queue over the given cache store.
func NewWriteQueue(cache CacheStore) *WriteQueue {
	return &WriteQueue{cache: cache}
}

// Enqueue appends a mutation to the tail of the queue.
func (q *WriteQueue) Enqueue(ctx context.Context, m *models.Mutation) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode mutation: %w", err)
	}
	if err := q.cache.RPush(ctx, writeQueueKey, string(payload)); err != nil {
		return fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	return nil
}

// Dequeue pops the mutation at the head of the queue, or ok=false when the
// queue is empty.
func (q *WriteQueue) Dequeue(ctx context.Context) (*models.Mutation, bool, error) {
	payload, found, err := q.cache.LPop(ctx, writeQueueKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to dequeue mutation: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	var m models.Mutation
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, false, fmt.Errorf("failed to decode mutation: %w", err)
	}
	return &m, true, nil
}

// Requeue re-appends a failed mutation to the tail of the queue. This is
// deliberate: head-requeue would preserve FIFO but stall the whole queue
// behind one failing mutation.
func (q *WriteQueue) Requeue(ctx context.Context, m *models.Mutation) error {
	return q.Enqueue(ctx, m)
}

// Len returns the number of pending mutations.
func (q *WriteQueue) Len(ctx context.Context) (int64, error) {
	return q.cache.LLen(ctx, writeQueueKey)
}
