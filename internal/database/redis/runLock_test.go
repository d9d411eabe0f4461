package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRunLock(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	day := dates.MustDate(2024, time.March, 10)

	first := NewRunLock(client, "outreach", time.Hour)
	second := NewRunLock(client, "outreach", time.Hour)
	second.owner = "other-instance"

	ok, err := first.Acquire(ctx, day)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("outreach:daily_scan:2024-03-10"))

	ok, err = second.Acquire(ctx, day)
	require.NoError(t, err)
	assert.False(t, ok)

	// a different day is independent
	ok, err = second.Acquire(ctx, day.AddDays(1))
	require.NoError(t, err)
	assert.True(t, ok)

	// only the owner can release
	require.NoError(t, second.Release(ctx, day))
	assert.True(t, mr.Exists("outreach:daily_scan:2024-03-10"))

	require.NoError(t, first.Release(ctx, day))
	assert.False(t, mr.Exists("outreach:daily_scan:2024-03-10"))

	ok, err = second.Acquire(ctx, day)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunLock_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	day := dates.MustDate(2024, time.March, 10)

	lock := NewRunLock(client, "outreach", time.Hour)
	ok, err := lock.Acquire(ctx, day)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Hour)

	other := NewRunLock(client, "outreach", time.Hour)
	other.owner = "other-instance"
	ok, err = other.Acquire(ctx, day)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunLock_ReleaseKeepsTakenOverLock(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	day := dates.MustDate(2024, time.March, 10)
	key := "outreach:daily_scan:2024-03-10"

	lock := NewRunLock(client, "outreach", time.Hour)
	ok, err := lock.Acquire(ctx, day)
	require.NoError(t, err)
	require.True(t, ok)

	// the key lapsed and another instance took the day
	mr.FastForward(2 * time.Hour)
	require.NoError(t, mr.Set(key, "other-instance"))

	require.NoError(t, lock.Release(ctx, day))
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-instance", got)

	// releasing a missing key is fine
	mr.Del(key)
	assert.NoError(t, lock.Release(ctx, day))
}

func TestRunLock_Finish(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	day := dates.MustDate(2024, time.March, 10)
	key := "outreach:daily_scan:2024-03-10"

	lock := NewRunLock(client, "outreach", time.Hour)
	other := NewRunLock(client, "outreach", time.Hour)
	other.owner = "other-instance"

	ok, err := lock.Acquire(ctx, day)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, other.Finish(ctx, day))
	assert.Equal(t, time.Hour, mr.TTL(key))

	require.NoError(t, lock.Finish(ctx, day))
	assert.Equal(t, doneTTL, mr.TTL(key))

	// past the running ttl the finished day stays taken
	mr.FastForward(7 * time.Hour)
	ok, err = other.Acquire(ctx, day)
	require.NoError(t, err)
	assert.False(t, ok)
}
