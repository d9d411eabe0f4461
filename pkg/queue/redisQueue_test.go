package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestQueue(t *testing.T) (*redis.Client, *RedisQueue) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := NewRedisQueue(client, &RedisQueueConfig{
		Prefix:       "test",
		MaxRetries:   3,
		BaseDelay:    time.Second,
		QueueTimeout: 100 * time.Millisecond,
		EnableDLQ:    true,
	}, nil, nil)

	return client, q
}

func batchTask(id string) *Task {
	return &Task{
		ID:   id,
		Type: TaskTypeBroadcastBatch,
		Data: map[string]interface{}{
			"event_id": "ev1",
			"mobiles":  []string{"9000000001"},
			"message":  "hello",
		},
	}
}

func TestRedisQueue_PublishImmediate(t *testing.T) {
	client, q := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, batchTask("t1")))

	assert.Equal(t, int64(1), client.LLen(ctx, "test:tasks").Val())
	assert.Equal(t, int64(0), client.ZCard(ctx, "test:tasks:delayed").Val())
}

func TestRedisQueue_PublishDelayedAndMove(t *testing.T) {
	client, q := setupTestQueue(t)
	ctx := context.Background()

	task := batchTask("t1")
	task.ExecuteAt = time.Now().Add(time.Hour)
	require.NoError(t, q.Publish(ctx, task))
	assert.Equal(t, int64(1), client.ZCard(ctx, "test:tasks:delayed").Val())

	require.NoError(t, q.moveReadyDelayedTasks(ctx, time.Now()))
	assert.Equal(t, int64(0), client.LLen(ctx, "test:tasks").Val())

	require.NoError(t, q.moveReadyDelayedTasks(ctx, time.Now().Add(2*time.Hour)))
	assert.Equal(t, int64(1), client.LLen(ctx, "test:tasks").Val())
	assert.Equal(t, int64(0), client.ZCard(ctx, "test:tasks:delayed").Val())
}

func TestRedisQueue_PublishRejectsUntypedTask(t *testing.T) {
	_, q := setupTestQueue(t)

	err := q.Publish(context.Background(), &Task{ID: "x"})
	assert.Error(t, err)

	assert.Error(t, q.Publish(context.Background(), nil))
}

func TestRedisQueue_ProcessNext(t *testing.T) {
	t.Run("success removes task", func(t *testing.T) {
		client, q := setupTestQueue(t)
		ctx := context.Background()
		require.NoError(t, q.Publish(ctx, batchTask("t1")))

		var got *Task
		err := q.processNext(ctx, func(_ context.Context, task *Task) error {
			got = task
			return nil
		})
		require.NoError(t, err)

		require.NotNil(t, got)
		assert.Equal(t, "t1", got.ID)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, []string{"9000000001"}, got.GetStrings("mobiles"))
		assert.Equal(t, int64(0), client.LLen(ctx, "test:tasks").Val())
		assert.Equal(t, int64(0), client.LLen(ctx, "test:tasks:processing").Val())
	})

	t.Run("transient failure schedules retry", func(t *testing.T) {
		client, q := setupTestQueue(t)
		ctx := context.Background()
		require.NoError(t, q.Publish(ctx, batchTask("t1")))

		err := q.processNext(ctx, func(context.Context, *Task) error {
			return errors.New("gateway timeout")
		})
		require.NoError(t, err)

		members := client.ZRange(ctx, "test:tasks:delayed", 0, -1).Val()
		require.Len(t, members, 1)

		var retried Task
		require.NoError(t, json.Unmarshal([]byte(members[0]), &retried))
		assert.Equal(t, 1, retried.Attempts)
		assert.True(t, retried.ExecuteAt.After(time.Now()))
		assert.Equal(t, int64(0), client.LLen(ctx, "test:tasks:processing").Val())
		assert.Equal(t, int64(0), client.ZCard(ctx, "test:dlq").Val())
	})

	t.Run("exhausted retries go to dlq", func(t *testing.T) {
		client, q := setupTestQueue(t)
		ctx := context.Background()
		task := batchTask("t1")
		task.Attempts = 2
		require.NoError(t, q.Publish(ctx, task))

		err := q.processNext(ctx, func(context.Context, *Task) error {
			return errors.New("gateway timeout")
		})
		require.NoError(t, err)

		assert.Equal(t, int64(0), client.ZCard(ctx, "test:tasks:delayed").Val())
		assert.Equal(t, int64(1), client.ZCard(ctx, "test:dlq").Val())
	})

	t.Run("permanent failure goes to dlq", func(t *testing.T) {
		_, q := setupTestQueue(t)
		ctx := context.Background()
		require.NoError(t, q.Publish(ctx, batchTask("t1")))

		err := q.processNext(ctx, func(context.Context, *Task) error {
			return Permanent(errors.New("bad payload"))
		})
		require.NoError(t, err)

		failed, err := q.DLQ().GetFailedTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "t1", failed[0].Task.ID)
		assert.Equal(t, "bad payload", failed[0].Error)
	})

	t.Run("corrupted payload goes to dlq", func(t *testing.T) {
		client, q := setupTestQueue(t)
		ctx := context.Background()
		require.NoError(t, client.LPush(ctx, "test:tasks", "{not json").Err())

		called := false
		err := q.processNext(ctx, func(context.Context, *Task) error {
			called = true
			return nil
		})
		require.NoError(t, err)

		assert.False(t, called)
		assert.Equal(t, int64(1), client.ZCard(ctx, "test:dlq").Val())
	})
}

func TestRedisQueue_RequeueAndStats(t *testing.T) {
	client, q := setupTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, batchTask("t1")))
	require.NoError(t, q.processNext(ctx, func(context.Context, *Task) error {
		return Permanent(errors.New("bad payload"))
	}))

	stats, err := q.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.MainQueue)
	assert.Equal(t, int64(1), stats.DLQ)

	err = q.DLQ().RequeueFailedTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	require.NoError(t, q.DLQ().RequeueFailedTask(ctx, "t1"))
	assert.Equal(t, int64(1), client.LLen(ctx, "test:tasks").Val())
	assert.Equal(t, int64(0), client.ZCard(ctx, "test:dlq").Val())

	var requeued Task
	require.NoError(t, json.Unmarshal([]byte(client.LIndex(ctx, "test:tasks", 0).Val()), &requeued))
	assert.Equal(t, 0, requeued.Attempts)
}

func TestRedisQueue_CloseIsIdempotent(t *testing.T) {
	_, q := setupTestQueue(t)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
}
