// Package cache provides redis connection infrastructure.
// This is part of the platform layer and contains no business logic.
package cache

import (
	"context"
	"crypto/tls"

	"institute_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a redis client from the configured URL and verifies
// connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig != nil {
			opt.TLSConfig.InsecureSkipVerify = true
		} else {
			opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// PingAdapter wraps a client to satisfy health-check interfaces.
type PingAdapter struct {
	client *redis.Client
}

// NewPingAdapter creates a health-check adapter around the client.
func NewPingAdapter(client *redis.Client) *PingAdapter {
	return &PingAdapter{client: client}
}

// Ping checks redis connectivity.
func (a *PingAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}
