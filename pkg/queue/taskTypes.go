package queue

import (
	"context"
)

// Handler processes one task. A returned error makes the task eligible for
// retry; wrap it with Permanent to send it straight to the dead letter queue.
type Handler func(ctx context.Context, task *Task) error

// Queue интерфейс очереди
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}
