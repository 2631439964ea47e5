package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cacheflow/cacheflow/internal/models"
)

func testMutation(op models.MutationOp, id int64, age int) *models.Mutation {
	return &models.Mutation{
		ID:         string(op) + "-test",
		Op:         op,
		User:       &models.User{ID: id, Name: "alice", Email: "alice@example.com", Age: age},
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestWriteQueue_FIFO(t *testing.T) {
	store, _ := setupCache(t)
	q := NewWriteQueue(store)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testMutation(models.MutationCreate, 1, 30)))
	require.NoError(t, q.Enqueue(ctx, testMutation(models.MutationUpdate, 1, 31)))
	require.NoError(t, q.Enqueue(ctx, testMutation(models.MutationDelete, 1, 0)))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var ops []models.MutationOp
	for {
		m, found, err := q.Dequeue(ctx)
		require.NoError(t, err)
		if !found {
			break
		}
		ops = append(ops, m.Op)
	}

	assert.Equal(t, []models.MutationOp{models.MutationCreate, models.MutationUpdate, models.MutationDelete}, ops)
}

func TestWriteQueue_DequeueEmpty(t *testing.T) {
	store, _ := setupCache(t)
	q := NewWriteQueue(store)

	m, found, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, m)
}

func TestWriteQueue_SurvivesQueueInstance(t *testing.T) {
	// Pending mutations live in the cache store, not in process memory: a
	// fresh queue over the same store sees everything already enqueued.
	store, _ := setupCache(t)
	ctx := context.Background()

	q1 := NewWriteQueue(store)
	require.NoError(t, q1.Enqueue(ctx, testMutation(models.MutationUpdate, 9, 42)))

	q2 := NewWriteQueue(store)
	m, found, err := q2.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.MutationUpdate, m.Op)
	assert.Equal(t, int64(9), m.User.ID)
	assert.Equal(t, 42, m.User.Age)
}

func TestWriteQueue_RequeueGoesToTail(t *testing.T) {
	store, _ := setupCache(t)
	q := NewWriteQueue(store)
	ctx := context.Background()

	first := testMutation(models.MutationUpdate, 1, 30)
	second := testMutation(models.MutationUpdate, 2, 31)
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	m, found, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, q.Requeue(ctx, m))

	// The requeued mutation now sits behind the second one.
	m, _, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.User.ID)

	m, _, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.User.ID)
}
