package bracket

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunLockKey = "bracket-bot:lighter:7:0"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return server, client
}

func TestRedisRunLockAcquire(t *testing.T) {
	ctx := context.Background()
	server, client := newTestRedis(t)

	first := NewRedisRunLock(client, testRunLockKey, time.Minute)
	require.NoError(t, first.Acquire(ctx))
	assert.Equal(t, time.Minute, server.TTL(testRunLockKey))

	second := NewRedisRunLock(client, testRunLockKey, time.Minute)
	assert.ErrorIs(t, second.Acquire(ctx), ErrRunLockHeld)

	owner, err := server.Get(testRunLockKey)
	require.NoError(t, err)
	assert.Equal(t, first.owner, owner)
}

func TestRedisRunLockReleaseOnlyByOwner(t *testing.T) {
	ctx := context.Background()
	server, client := newTestRedis(t)

	owner := NewRedisRunLock(client, testRunLockKey, time.Minute)
	require.NoError(t, owner.Acquire(ctx))

	other := NewRedisRunLock(client, testRunLockKey, time.Minute)
	require.NoError(t, other.Release(ctx))
	assert.True(t, server.Exists(testRunLockKey))

	require.NoError(t, owner.Release(ctx))
	assert.False(t, server.Exists(testRunLockKey))

	// releasing a lock that is already gone is not an error
	assert.NoError(t, owner.Release(ctx))
}

func TestRedisRunLockKeepRefreshesTTL(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server, client := newTestRedis(t)

	lock := NewRedisRunLock(client, testRunLockKey, 300*time.Millisecond)
	require.NoError(t, lock.Acquire(ctx))
	server.SetTTL(testRunLockKey, time.Hour)

	var lost atomic.Bool
	go lock.Keep(ctx, func() { lost.Store(true) })

	assert.Eventually(t, func() bool {
		return server.TTL(testRunLockKey) == 300*time.Millisecond
	}, 2*time.Second, 20*time.Millisecond)
	assert.False(t, lost.Load())
}

func TestRedisRunLockKeepReportsLostLock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server, client := newTestRedis(t)

	lock := NewRedisRunLock(client, testRunLockKey, 300*time.Millisecond)
	require.NoError(t, lock.Acquire(ctx))
	require.NoError(t, server.Set(testRunLockKey, "another-process"))

	lost := make(chan struct{})
	go lock.Keep(ctx, func() { close(lost) })

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("lost callback was not called")
	}

	owner, err := server.Get(testRunLockKey)
	require.NoError(t, err)
	assert.Equal(t, "another-process", owner)
}
