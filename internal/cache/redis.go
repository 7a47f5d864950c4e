// Package cache wraps the Redis connection shared by the per-IP rate
// limiter and the activity stream.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options overrides the pool settings parsed from the Redis URL.
// Zero fields keep the URL's (or go-redis's) value.
type Options struct {
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
}

// Cache is a thin handle on a Redis client.
type Cache struct {
	rdb *redis.Client
}

// New connects to redisURL and fails unless the server answers PING.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	ro, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.PoolSize > 0 {
		ro.PoolSize = opts.PoolSize
	}
	if opts.MinIdleConns > 0 {
		ro.MinIdleConns = opts.MinIdleConns
	}
	if opts.DialTimeout > 0 {
		ro.DialTimeout = opts.DialTimeout
	}
	ro.ConnMaxIdleTime = 5 * time.Minute

	c := NewFromClient(redis.NewClient(ro))
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

// NewFromClient wraps an existing client, such as one pointed at miniredis.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

// Ping checks Redis connectivity. It satisfies the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Shutdown closes the client. It matches server.ShutdownFunc.
func (c *Cache) Shutdown(context.Context) error {
	return c.Close()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Client exposes the client for the activity stream publisher and worker.
func (c *Cache) Client() *redis.Client {
	return c.rdb
}
