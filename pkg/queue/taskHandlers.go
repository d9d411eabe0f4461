package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

// BroadcastSender delivers one batch of a broadcast directly.
type BroadcastSender interface {
	SendDirect(ctx context.Context, eventID string, mobiles []string, message string) (*entity.BroadcastResult, error)
}

// Publisher takes follow-up tasks for recipients a batch did not reach.
type Publisher interface {
	Publish(ctx context.Context, task *Task) error
}

// ErrBatchIncomplete is returned when part of a batch was not attempted and
// could not be handed on as a follow-up task. The task then carries only the
// unsent recipients, so a retry never repeats a delivered SMS.
var ErrBatchIncomplete = errors.New("broadcast batch stopped before every recipient was attempted")

// TaskHandler routes queue tasks by type.
type TaskHandler struct {
	broadcasts BroadcastSender
	followUps  Publisher
}

// NewTaskHandler builds a handler. followUps may be nil.
func NewTaskHandler(broadcasts BroadcastSender, followUps Publisher) *TaskHandler {
	return &TaskHandler{broadcasts: broadcasts, followUps: followUps}
}

func (h *TaskHandler) HandleTask(ctx context.Context, task *Task) error {
	logrus.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"type":        task.Type,
		"attempt":     task.Attempts,
		"max_retries": task.MaxRetries,
	}).Debug("handling task")

	switch task.Type {
	case TaskTypeBroadcastBatch:
		return h.handleBroadcastBatch(ctx, task)
	default:
		return Permanent(fmt.Errorf("unknown task type: %s", task.Type))
	}
}

// handleBroadcastBatch sends one queued slice of a broadcast. A batch in
// which every send failed is returned as an error so the queue retries it.
// Recipients left over when the time budget ran out go on as a new task.
func (h *TaskHandler) handleBroadcastBatch(ctx context.Context, task *Task) error {
	eventID := task.GetString("event_id")
	message := task.GetString("message")
	mobiles := task.GetStrings("mobiles")

	if eventID == "" || message == "" {
		return Permanent(fmt.Errorf("broadcast batch %s is missing event_id or message", task.ID))
	}
	if len(mobiles) == 0 {
		logrus.WithField("task_id", task.ID).Warn("broadcast batch has no recipients, skipped")
		return nil
	}

	res, err := h.broadcasts.SendDirect(ctx, eventID, mobiles, message)
	if err != nil {
		return fmt.Errorf("batch %d of event %s: %w", task.GetInt("index"), eventID, err)
	}

	log := logrus.WithFields(logrus.Fields{
		"event_id":  eventID,
		"index":     task.GetInt("index"),
		"sent":      res.Sent,
		"failed":    res.Failed,
		"remaining": res.Remaining,
	})

	if res.Remaining <= 0 {
		log.Info("broadcast batch delivered")
		return nil
	}
	if res.Remaining > len(mobiles) {
		res.Remaining = len(mobiles)
	}

	// batches go out in order, so the unsent recipients are the tail
	rest := mobiles[len(mobiles)-res.Remaining:]
	if err := h.handOn(ctx, task, rest); err != nil {
		log.Warnf("follow-up batch not published, retrying remainder: %v", err)
		task.Data["mobiles"] = rest
		return fmt.Errorf("batch %d of event %s: %w", task.GetInt("index"), eventID, ErrBatchIncomplete)
	}

	log.Warn("broadcast batch stopped early, remainder queued as a follow-up")
	return nil
}

func (h *TaskHandler) handOn(ctx context.Context, task *Task, rest []string) error {
	if h.followUps == nil {
		return errors.New("no follow-up publisher")
	}

	data := make(map[string]interface{}, len(task.Data))
	for k, v := range task.Data {
		data[k] = v
	}
	data["mobiles"] = rest

	return h.followUps.Publish(ctx, &Task{
		ID:         task.ID + "_rest",
		Type:       task.Type,
		Data:       data,
		MaxRetries: task.MaxRetries,
	})
}
