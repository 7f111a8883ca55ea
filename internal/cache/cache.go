// Package cache provee un key-value con TTL con dos backends:
//   - memory (go-cache, in-process)
//   - redis (distribuido, para varias réplicas)
//
// El authority lo usa como ledger de un solo uso (SetNX) para authorization
// codes y refresh tokens, y como contador (Incr) del rate limiter.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor. ttl 0 = sin expiración.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX guarda solo si la key no existe. Devuelve true si la escribió.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Incr suma 1 al contador key. En el primer hit fija la expiración en ttl.
	// Devuelve el valor nuevo y el tiempo que le queda a la key.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)

	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
	Stats(ctx context.Context) (Stats, error)
}

// Stats contiene estadísticas del cache.
type Stats struct {
	Driver string
	Keys   int64
	Hits   int64
	Misses int64
}

// Config para crear un cliente.
type Config struct {
	Driver     string // "memory" | "redis"
	Addr       string
	Password   string
	DB         int
	Prefix     string
	DefaultTTL time.Duration
}

var ErrNotFound = errors.New("cache: key not found")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// New crea un cliente según cfg.Driver.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(ctx, cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	default:
		return nil, fmt.Errorf("cache: unsupported driver %q", cfg.Driver)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
