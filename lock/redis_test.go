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

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, time.Minute), mr
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLocker(t)

	token, ok, err := l.Acquire(ctx, "mailrecall:etl:grant-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.Equal(t, time.Minute, mr.TTL("mailrecall:etl:grant-1"))

	_, ok, err = l.Acquire(ctx, "mailrecall:etl:grant-1")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	_, ok, err = l.Acquire(ctx, "mailrecall:etl:grant-2")
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	require.NoError(t, l.Release(ctx, "mailrecall:etl:grant-1", token))
	assert.False(t, mr.Exists("mailrecall:etl:grant-1"))

	_, ok, err = l.Acquire(ctx, "mailrecall:etl:grant-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_ReleaseForeignToken(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLocker(t)

	_, ok, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, l.Release(ctx, "k", "not-mine"), ErrNotHeld)
	assert.True(t, mr.Exists("k"))
}

func TestRedisLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLocker(t)

	token, ok, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	_, ok, err = l.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, l.Release(ctx, "k", token), ErrNotHeld)
}

func TestRedisLocker_BackendDown(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLocker(t)
	mr.Close()

	_, ok, err := l.Acquire(ctx, "k")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisLocker_DefaultTTL(t *testing.T) {
	l := NewRedisLocker(nil, 0)
	assert.Equal(t, DefaultTTL, l.ttl)
}
