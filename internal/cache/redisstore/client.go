// Package redisstore is the Redis-backed result store shared by every
// service replica.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/geopin/internal/core/observability"
)

// Tier labels hit and miss metrics reported by this store.
const Tier = "redis"

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		o.PoolSize = n
		o.MinIdleConns = min(o.MinIdleConns, n)
	}
}

// WithTimeouts sets the dial timeout and the per-command read/write timeout.
func WithTimeouts(dial, rw time.Duration) Option {
	return func(o *redis.Options) {
		o.DialTimeout = dial
		o.ReadTimeout = rw
		o.WriteTimeout = rw
	}
}

type Client struct {
	rdb *redis.Client
}

// New connects to addr and fails unless the server answers a PING.
func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     64,
		MinIdleConns: 4,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, opt := range opts {
		opt(ro)
	}

	c := &Client{rdb: redis.NewClient(ro)}
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// timed reports op to the cache metrics once the returned func runs.
func timed(op string) func(error) {
	start := time.Now()
	return func(err error) {
		observability.ObserveCacheOp(op, err, time.Since(start).Seconds())
	}
}

// MGet returns the values of the keys that exist.
func (c *Client) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	done := timed("mget")
	if len(keys) == 0 {
		done(nil)
		return map[string][]byte{}, nil
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	done(err)
	if err != nil {
		return nil, fmt.Errorf("redis MGET %d keys: %w", len(keys), err)
	}

	out := make(map[string][]byte, len(vals))
	for i, v := range vals {
		if b, ok := asBytes(v); ok {
			out[keys[i]] = b
		}
	}
	observability.AddCacheHits(Tier, len(out))
	observability.AddCacheMisses(Tier, len(keys)-len(out))
	return out, nil
}

// asBytes converts one MGET reply element; nil marks a missing key.
func asBytes(v any) ([]byte, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return []byte(t), true
	case []byte:
		return t, true
	default:
		return fmt.Append(nil, t), true
	}
}

// Set stores val under key. A non-positive ttl keeps the entry until evicted.
func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	done := timed("set")
	err := c.rdb.Set(ctx, key, val, max(ttl, 0)).Err()
	done(err)
	if err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	return nil
}

// MSetWithTTL writes every pair with the same ttl in one pipeline.
func (c *Client) MSetWithTTL(ctx context.Context, kv map[string][]byte, ttl time.Duration) error {
	done := timed("mset")
	if len(kv) == 0 {
		done(nil)
		return nil
	}

	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range kv {
			p.Set(ctx, k, v, max(ttl, 0))
		}
		return nil
	})
	done(err)
	if err != nil {
		return fmt.Errorf("redis pipelined SET of %d keys: %w", len(kv), err)
	}
	return nil
}

// Ping reports whether Redis answers; readiness checks call it.
func (c *Client) Ping(ctx context.Context) error {
	done := timed("ping")
	err := c.rdb.Ping(ctx).Err()
	done(err)
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
