// Package rate implementa un rate limiter fixed-window sobre cache.Client,
// así comparte backend (memory o redis) con el ledger.
package rate

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/authority/internal/cache"
)

type Result struct {
	Allowed     bool
	Limit       int64
	Remaining   int64
	RetryAfter  time.Duration
	ResetAt     time.Time
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// CacheLimiter: fixed window sencillo, un contador por key y ventana.
type CacheLimiter struct {
	c      cache.Client
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewCacheLimiter(c cache.Client, prefix string, max int, window time.Duration) *CacheLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &CacheLimiter{c: c, prefix: prefix, max: int64(max), window: window, now: time.Now}
}

func (l *CacheLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.window)
	resetAt := winStart.Add(l.window)
	k := l.prefix + strings.ReplaceAll(key, " ", "_") + ":" + winStart.Format("20060102T150405")

	hits, _, err := l.c.Incr(ctx, k, l.window)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Allowed:     hits <= l.max,
		Limit:       l.max,
		Remaining:   max(l.max-hits, 0),
		ResetAt:     resetAt,
		CurrentHits: hits,
	}
	if !res.Allowed {
		res.RetryAfter = resetAt.Sub(now)
		if res.RetryAfter <= 0 {
			res.RetryAfter = l.window
		}
	}
	return res, nil
}
