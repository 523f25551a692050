// Package redis connects the shared attestation backend.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sanctuary/internal/platform/config"
)

// scriptProbe runs a trivial script. Attestation lifecycle transitions are
// Lua scripts, so a server with EVAL disabled cannot back the store.
var scriptProbe = redis.NewScript(`return 1`)

// Client is the go-redis client the attestation store runs on, plus the key
// namespace configured for this deployment.
type Client struct {
	*redis.Client
	keyPrefix string
}

// New connects and verifies the server can run attestation scripts.
// Returns nil when no URL is configured.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts), keyPrefix: cfg.KeyPrefix}
	if err := c.Health(ctx); err != nil {
		_ = c.Client.Close()
		return nil, err
	}
	return c, nil
}

// KeyPrefix is the namespace prepended to every attestation key.
func (c *Client) KeyPrefix() string {
	return c.keyPrefix
}

// Health pings the server and checks that scripting is available.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if err := scriptProbe.Run(ctx, c.Client, nil).Err(); err != nil {
		return fmt.Errorf("redis scripting unavailable for attestations: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}
