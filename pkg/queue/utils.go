package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskType string

const (
	TaskTypeBroadcastBatch TaskType = "broadcast_sms_batch"
)

// Task is the queue envelope. Data survives a JSON round trip, so numbers
// come back as float64 and slices as []interface{}.
type Task struct {
	ID         string                 `json:"id"`
	Type       TaskType               `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	CreatedAt  time.Time              `json:"created_at"`
	Attempts   int                    `json:"attempts"`
	MaxRetries int                    `json:"max_retries"`
}

var (
	errMissingTaskID   = errors.New("task has no id")
	errMissingTaskType = errors.New("task has no type")
)

func (t *Task) Validate() error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return errMissingTaskID
	case strings.TrimSpace(string(t.Type)) == "":
		return fmt.Errorf("task %s: %w", t.ID, errMissingTaskType)
	}
	if t.Data == nil {
		t.Data = map[string]interface{}{}
	}
	return nil
}

func (t *Task) GetString(key string) string {
	s, _ := t.Data[key].(string)
	return s
}

func (t *Task) GetInt(key string) int {
	switch n := t.Data[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

// GetStrings drops non-string items.
func (t *Task) GetStrings(key string) []string {
	switch items := t.Data[key].(type) {
	case []string:
		return items
	case []interface{}:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
