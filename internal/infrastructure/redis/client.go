package redisinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-auth/internal/config"
	"github.com/redis/go-redis/v9"
)

var ErrNotReady = errors.New("redis did not become ready within the given time period")

// Connect opens a Redis client from cfg.URL and pings it, retrying up to
// cfg.RetryAttempts times before giving up.
func Connect(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for range attempts {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrNotReady, lastErr)
}

// Healthcheck returns a check that pings the server.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis healthcheck: %w", err)
		}
		return nil
	}
}
