package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/cache"
)

func TestCacheLimiterWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 10, 0, time.UTC)
	l := NewCacheLimiter(cache.NewMemory("", 0), "", 2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	r, err := l.Allow(ctx, "authorize:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
	assert.Equal(t, int64(1), r.Remaining)

	r, _ = l.Allow(ctx, "authorize:10.0.0.1")
	assert.True(t, r.Allowed)
	assert.Equal(t, int64(0), r.Remaining)

	r, _ = l.Allow(ctx, "authorize:10.0.0.1")
	assert.False(t, r.Allowed)
	assert.Equal(t, 50*time.Second, r.RetryAfter)

	r, _ = l.Allow(ctx, "authorize:10.0.0.2")
	assert.True(t, r.Allowed, "keys are independent")

	now = now.Add(time.Minute)
	r, _ = l.Allow(ctx, "authorize:10.0.0.1")
	assert.True(t, r.Allowed, "new window")
}

func TestCacheLimiterRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.New(context.Background(), cache.Config{Driver: "redis", Addr: mr.Addr(), Prefix: "authority"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	l := NewCacheLimiter(c, "rl:", 1, time.Hour)
	r, err := l.Allow(context.Background(), "token:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
	r, err = l.Allow(context.Background(), "token:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, r.Allowed)
	assert.Greater(t, r.RetryAfter, time.Duration(0))
}
