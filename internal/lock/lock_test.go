package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Locker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, time.Second), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	h, err := l.Acquire(ctx, "product:p1")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "product:p1", h.ResourceKey)
	assert.NotEmpty(t, h.OwnerToken)

	_, err = l.Acquire(ctx, "product:p1")
	assert.ErrorIs(t, err, ErrNotObtained)

	// A different resource is independent.
	h2, err := l.Acquire(ctx, "product:p2")
	require.NoError(t, err)
	assert.NotEqual(t, h.OwnerToken, h2.OwnerToken)
}

func TestReleaseAllowsReacquire(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	h, err := l.Acquire(ctx, "product:p1")
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, h))

	_, err = l.Acquire(ctx, "product:p1")
	require.NoError(t, err)
}

func TestReleaseOfAbsentKeyIsNoop(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	err := l.Release(ctx, &Handle{ResourceKey: "product:p1", OwnerToken: "gone"})
	assert.NoError(t, err)
	assert.NoError(t, l.Release(ctx, nil))
}

func TestTTLExpiryFreesLock(t *testing.T) {
	l, mr := setup(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "product:p1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = l.Acquire(ctx, "product:p1")
	require.NoError(t, err)
}

func TestStaleHandleCannotReleaseNewOwner(t *testing.T) {
	l, mr := setup(t)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "product:p1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, "product:p1")
	require.NoError(t, err)

	// The stale holder comes back after its TTL and tries to release.
	require.NoError(t, l.Release(ctx, stale))

	// Fresh owner must still hold the lock.
	_, err = l.Acquire(ctx, "product:p1")
	assert.ErrorIs(t, err, ErrNotObtained)

	require.NoError(t, l.Release(ctx, fresh))
	_, err = l.Acquire(ctx, "product:p1")
	assert.NoError(t, err)
}
