package queue

import (
	"math/rand"
	"strings"
	"time"
)

// Errors whose text contains one of these will fail the same way on every
// attempt, so they skip the retry loop.
var terminalMarkers = []string{
	"invalid",
	"not found",
	"permission denied",
	"validation failed",
}

// RetryManager decides whether a failed task goes back on the queue and
// how long it waits first. Delays double per attempt, capped at 16x base.
type RetryManager struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewRetryManager(maxRetries int, baseDelay time.Duration) *RetryManager {
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &RetryManager{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   16 * baseDelay,
	}
}

// ShouldRetry reports whether task may run again after err, and the delay.
// A task's own MaxRetries wins over the manager's.
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	budget := r.maxRetries
	if task.MaxRetries != 0 {
		budget = task.MaxRetries
	}

	switch {
	case task.Attempts >= budget:
		return false, 0
	case !retryable(err):
		return false, 0
	}
	return true, r.calculateBackoff(task.Attempts)
}

func retryable(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range terminalMarkers {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}

// calculateBackoff returns base * 2^(attempt-1), spread by up to a quarter
// either way and never above maxDelay.
func (r *RetryManager) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return r.baseDelay
	}

	delay := r.maxDelay
	if shift := attempt - 1; shift < 5 {
		delay = min(r.baseDelay<<shift, r.maxDelay)
	}

	if quarter := int64(delay) / 4; quarter > 0 {
		delay += time.Duration(rand.Int63n(2*quarter+1) - quarter)
	}
	return min(delay, r.maxDelay)
}
