package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLease_SingleOwner(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)

	a := NewRedisLease(client, "lease:reclaimer", 5*time.Second)
	b := NewRedisLease(client, "lease:reclaimer", 5*time.Second)
	require.NotEqual(t, a.Owner(), b.Owner())

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "owner renews")

	got, err := mr.Get("lease:reclaimer")
	require.NoError(t, err)
	assert.Equal(t, a.Owner(), got)

	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists("lease:reclaimer"), "non-owner release is a no-op")

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists("lease:reclaimer"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLease_ExpiresWithoutOwner(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)

	a := NewRedisLease(client, "lease:reclaimer", 5*time.Second)
	b := NewRedisLease(client, "lease:reclaimer", 5*time.Second)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
