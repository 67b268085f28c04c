package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"evidentia/internal/platform/config"
)

// startupWait bounds how long New waits for Redis to answer. Compose stacks
// routinely start the server before Redis accepts connections.
const startupWait = 15 * time.Second

// Client carries the go-redis client used for cross-replica entity locks.
type Client struct {
	*redis.Client
}

// New connects and waits for a successful PING. A nil client with a nil
// error means Redis is not configured and locks stay process-local.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = startupWait
	if err := backoff.Retry(func() error {
		return client.Ping(ctx).Err()
	}, backoff.WithContext(policy, ctx)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", opts.Addr, err)
	}
	return &Client{Client: client}, nil
}

// Health backs the readiness probe.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
