package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cacheflow/cacheflow/internal/models"
)

// Flusher is the write-behind worker. On every tick it pops up to a batch of
// mutations from the head of the write queue and applies each to the
// database in order. A mutation that fails to apply is re-appended to the
// tail of the queue and the rest of the batch continues.
//
// Retries are unbounded: there is no backoff, no attempt cap and no dead
// letter. A mutation that can never apply circulates forever. FIFO ordering
// holds only among mutations that succeed within the same tick; a requeued
// failure lands behind everything currently queued.
type Flusher struct {
	queue *WriteQueue
	users UserStore
	stats *Stats
	log   *logrus.Logger

	interval  time.Duration
	batchSize int

	// mu serializes timer ticks with forced drains.
	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFlusher creates a flush worker.
func NewFlusher(queue *WriteQueue, users UserStore, stats *Stats, interval time.Duration, batchSize int, log *logrus.Logger) *Flusher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Flusher{
		queue:     queue,
		users:     users,
		stats:     stats,
		log:       log,
		interval:  interval,
		batchSize: batchSize,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background flush loop.
func (f *Flusher) Start() {
	f.wg.Add(1)
	go f.loop()
	f.log.WithFields(logrus.Fields{
		"interval":   f.interval,
		"batch_size": f.batchSize,
	}).Info("Write-behind flush worker started")
}

// Stop cancels the worker and waits for the in-flight batch to stop. The
// batch checks for cancellation before each pop, so at most the current
// mutation apply completes after Stop is called.
func (f *Flusher) Stop() {
	f.cancel()
	f.wg.Wait()
	f.log.Info("Write-behind flush worker stopped")
}

func (f *Flusher) loop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			if _, err := f.flush(f.ctx, f.batchSize); err != nil && !errors.Is(err, context.Canceled) {
				f.log.WithError(err).Error("Flush tick failed")
			}
			f.mu.Unlock()
		}
	}
}

// Drain processes the entire queue, not just one batch. Each mutation
// currently in the queue gets exactly one attempt; failures are requeued as
// usual but not retried within this drain, so a poison mutation cannot make
// the drain spin forever. Used for the manual flush trigger and for the
// final flush at shutdown.
func (f *Flusher) Drain(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	pending, err := f.queue.Len(ctx)
	if err != nil {
		return err
	}

	for pending > 0 {
		n, err := f.flush(ctx, int(min(pending, int64(f.batchSize))))
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		pending -= int64(n)
	}
	return nil
}

// flush pops and applies up to limit mutations. It returns how many were
// popped (applied or requeued).
func (f *Flusher) flush(ctx context.Context, limit int) (int, error) {
	processed := 0

	for i := 0; i < limit; i++ {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		m, found, err := f.queue.Dequeue(ctx)
		if err != nil {
			return processed, err
		}
		if !found {
			break
		}
		processed++

		if err := f.apply(ctx, m); err != nil {
			f.stats.IncFlushFailure()
			f.log.WithError(err).WithFields(logrus.Fields{
				"mutation": m.ID,
				"op":       m.Op,
			}).Error("Failed to flush mutation, requeueing")

			if rqErr := f.queue.Requeue(ctx, m); rqErr != nil {
				// The mutation is lost if the requeue itself fails;
				// surface loudly.
				f.log.WithError(rqErr).WithField("mutation", m.ID).
					Error("Failed to requeue mutation, dropping")
			}
			continue
		}

		f.stats.IncDBFlush()
	}

	if processed > 0 {
		f.log.WithField("count", processed).Info("Flushed writes to database")
	}

	f.stats.MarkFlush(time.Now())
	if n, err := f.queue.Len(ctx); err == nil {
		f.stats.SetPendingWrites(n)
	}

	return processed, nil
}

// apply executes one mutation against the database. Creates are upserts on
// the user's email, so duplicate deliveries collapse; updates and deletes of
// absent rows are no-ops. All three are therefore safe under at-least-once
// delivery.
func (f *Flusher) apply(ctx context.Context, m *models.Mutation) error {
	if m.User == nil {
		return fmt.Errorf("mutation %s has no payload", m.ID)
	}

	switch m.Op {
	case models.MutationCreate:
		return f.users.Upsert(ctx, m.User)
	case models.MutationUpdate:
		_, err := f.users.Update(ctx, m.User.ID, m.User)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	case models.MutationDelete:
		_, err := f.users.Delete(ctx, m.User.ID)
		return err
	default:
		return fmt.Errorf("unknown mutation operation %q", m.Op)
	}
}
