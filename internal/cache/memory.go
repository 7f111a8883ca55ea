package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryClient struct {
	prefix string
	c      *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory crea un cache in-process. defaultTTL 0 => sin expiración por defecto.
func NewMemory(prefix string, defaultTTL time.Duration) Client {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &memoryClient{prefix: prefix, c: gocache.New(defaultTTL, time.Minute)}
}

func ttlOrNoExp(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (m *memoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		m.misses.Add(1)
		return "", ErrNotFound
	}
	m.hits.Add(1)
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.c.Set(prefixed(m.prefix, key), value, ttlOrNoExp(ttl))
	return nil
}

// SetNX usa Add de go-cache, que es atómico y falla si la key existe.
func (m *memoryClient) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := m.c.Add(prefixed(m.prefix, key), value, ttlOrNoExp(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *memoryClient) Incr(_ context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	k := prefixed(m.prefix, key)
	if err := m.c.Add(k, int64(1), ttlOrNoExp(ttl)); err == nil {
		return 1, ttl, nil
	}
	n, err := m.c.IncrementInt64(k, 1)
	if err != nil {
		// expiró entre Add e IncrementInt64
		m.c.Set(k, int64(1), ttlOrNoExp(ttl))
		return 1, ttl, nil
	}
	var left time.Duration
	if _, exp, ok := m.c.GetWithExpiration(k); ok && !exp.IsZero() {
		left = time.Until(exp)
	}
	return n, left, nil
}

func (m *memoryClient) Delete(_ context.Context, key string) error {
	m.c.Delete(prefixed(m.prefix, key))
	return nil
}

func (m *memoryClient) Ping(context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}

func (m *memoryClient) Stats(context.Context) (Stats, error) {
	return Stats{
		Driver: "memory",
		Keys:   int64(m.c.ItemCount()),
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
	}, nil
}
