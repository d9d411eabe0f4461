package service

import (
	"context"
	"fmt"

	"github.com/Kodanda10/iConnect-sub000/pkg/queue"
)

// QueueAdapter publishes broadcast batches as queue tasks.
type QueueAdapter struct {
	queue      queue.Queue
	maxRetries int
}

func NewQueueAdapter(q queue.Queue, maxRetries int) *QueueAdapter {
	return &QueueAdapter{queue: q, maxRetries: maxRetries}
}

func (a *QueueAdapter) PublishBroadcastBatch(ctx context.Context, batch *BroadcastBatch) error {
	task := &queue.Task{
		ID:   fmt.Sprintf("broadcast_%s_%d", batch.EventID, batch.Index),
		Type: queue.TaskTypeBroadcastBatch,
		Data: map[string]interface{}{
			"event_id": batch.EventID,
			"index":    batch.Index,
			"mobiles":  batch.Mobiles,
			"message":  batch.Message,
		},
		MaxRetries: a.maxRetries,
	}
	return a.queue.Publish(ctx, task)
}
