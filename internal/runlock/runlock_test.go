package runlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T, ttl time.Duration) (*Lock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, ttl), mr
}

func TestAcquireRelease(t *testing.T) {
	lock, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, lock.Acquire(ctx, "sc-1", "run-1"))

	// Second run against the same scanner is rejected.
	err := lock.Acquire(ctx, "sc-1", "run-2")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	// A different scanner is unaffected.
	require.NoError(t, lock.Acquire(ctx, "sc-2", "run-3"))

	require.NoError(t, lock.Release(ctx, "sc-1", "run-1"))
	require.NoError(t, lock.Acquire(ctx, "sc-1", "run-4"))
}

func TestReleaseOnlyOwnLock(t *testing.T) {
	lock, mr := newTestLock(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, lock.Acquire(ctx, "sc-1", "run-1"))

	// A run that lost its lock must not release the new holder's.
	require.NoError(t, lock.Release(ctx, "sc-1", "run-other"))
	assert.True(t, mr.Exists("scoring:run:sc-1"))
}

func TestLockExpires(t *testing.T) {
	lock, mr := newTestLock(t, time.Second)
	ctx := context.Background()

	require.NoError(t, lock.Acquire(ctx, "sc-1", "run-1"))

	mr.FastForward(2 * time.Second)

	require.NoError(t, lock.Acquire(ctx, "sc-1", "run-2"))
}

func TestAcquireRedisDown(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectSetNX("scoring:run:sc-1", "run-1", time.Minute).
		SetErr(errors.New("connection refused"))

	lock := New(client, time.Minute)
	err := lock.Acquire(context.Background(), "sc-1", "run-1")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyRunning)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseIdempotent(t *testing.T) {
	lock, _ := newTestLock(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, lock.Acquire(ctx, "sc-1", "run-1"))
	require.NoError(t, lock.Release(ctx, "sc-1", "run-1"))
	require.NoError(t, lock.Release(ctx, "sc-1", "run-1"))
}
