package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisClient struct {
	client *redis.Client
	prefix string
}

// NewRedis conecta y verifica con PING (timeout 5s).
func NewRedis(ctx context.Context, cfg Config) (Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}
	return &redisClient{client: rdb, prefix: cfg.Prefix}, nil
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, prefixed(c.prefix, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (c *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, prefixed(c.prefix, key), value, ttl).Err()
}

func (c *redisClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, prefixed(c.prefix, key), value, ttl).Result()
}

// Incr: fixed window con INCR + TTL en un pipeline; EXPIRE solo en el primer hit.
func (c *redisClient) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	k := prefixed(c.prefix, key)
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	left := pipe.TTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	if incr.Val() == 1 && ttl > 0 {
		if err := c.client.Expire(ctx, k, ttl).Err(); err != nil {
			return 0, 0, err
		}
		return 1, ttl, nil
	}
	return incr.Val(), left.Val(), nil
}

func (c *redisClient) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, prefixed(c.prefix, key)).Err()
}

func (c *redisClient) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *redisClient) Close() error { return c.client.Close() }

func (c *redisClient) Stats(ctx context.Context) (Stats, error) {
	keys, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, err
	}
	info, _ := c.client.Info(ctx, "stats").Result()
	var hits, misses int64
	for _, line := range strings.Split(info, "\r\n") {
		if v, ok := strings.CutPrefix(line, "keyspace_hits:"); ok {
			fmt.Sscanf(v, "%d", &hits)
		}
		if v, ok := strings.CutPrefix(line, "keyspace_misses:"); ok {
			fmt.Sscanf(v, "%d", &misses)
		}
	}
	return Stats{Driver: "redis", Keys: keys, Hits: hits, Misses: misses}, nil
}
