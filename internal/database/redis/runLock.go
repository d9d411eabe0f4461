package redis

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
)

// doneTTL keeps a finished day's key past the end of that day in any timezone.
const doneTTL = 48 * time.Hour

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	finishScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RunLock makes a once-per-day job run on a single instance. While the job
// runs the key expires after ttl, so a crashed holder blocks the others for
// at most that long. A finished day keeps its key for doneTTL.
type RunLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	owner  string
}

func NewRunLock(client *redis.Client, prefix string, ttl time.Duration) *RunLock {
	host, _ := os.Hostname()
	return &RunLock{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		owner:  fmt.Sprintf("%s:%d", host, os.Getpid()),
	}
}

func (l *RunLock) key(day dates.Date) string {
	return fmt.Sprintf("%s:daily_scan:%s", l.prefix, day)
}

// Acquire reports whether this instance now holds the lock for day.
func (l *RunLock) Acquire(ctx context.Context, day dates.Date) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(day), l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock for %s: %w", day, err)
	}
	return ok, nil
}

// Release drops the lock if this instance still owns it, so a failed run can
// be retried by any instance.
func (l *RunLock) Release(ctx context.Context, day dates.Date) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key(day)}, l.owner).Err()
	if err != nil {
		return fmt.Errorf("failed to release run lock for %s: %w", day, err)
	}
	return nil
}

// Finish marks day as done. The key outlives the day so no instance repeats
// the run once the running ttl would have lapsed.
func (l *RunLock) Finish(ctx context.Context, day dates.Date) error {
	err := finishScript.Run(ctx, l.client, []string{l.key(day)}, l.owner, doneTTL.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to finish run lock for %s: %w", day, err)
	}
	return nil
}
