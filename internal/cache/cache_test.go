package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, c Client) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	ok, err := c.SetNX(ctx, "once", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.SetNX(ctx, "once", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "once"))
	ok, err = c.SetNX(ctx, "once", "3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	for want := int64(1); want <= 3; want++ {
		n, left, err := c.Incr(ctx, "hits", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
		assert.Greater(t, left, time.Duration(0))
	}

	require.NoError(t, c.Ping(ctx))
	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, st.Keys, int64(2))
}

func TestMemoryClient(t *testing.T) {
	c := NewMemory("test", time.Minute)
	exercise(t, c)
	require.NoError(t, c.Close())
}

func TestMemorySetNXExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("", 0)
	ok, _ := c.SetNX(ctx, "k", "1", 20*time.Millisecond)
	require.True(t, ok)
	time.Sleep(40 * time.Millisecond)
	ok, _ = c.SetNX(ctx, "k", "1", time.Minute)
	assert.True(t, ok, "expired key must be claimable again")
}

func TestRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), Config{Driver: "redis", Addr: mr.Addr(), Prefix: "authority"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	exercise(t, c)
	assert.True(t, mr.Exists("authority:k"))

	ok, err := c.SetNX(context.Background(), "ttl", "1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Minute)
	ok, err = c.SetNX(context.Background(), "ttl", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisIncrWindowResets(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), Config{Driver: "redis", Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	_, _, err = c.Incr(ctx, "w", time.Minute)
	require.NoError(t, err)
	n, _, err := c.Incr(ctx, "w", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mr.FastForward(2 * time.Minute)
	n, _, err = c.Incr(ctx, "w", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisUnreachable(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "redis", Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNewUnsupported(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "memcached"})
	assert.Error(t, err)
}
