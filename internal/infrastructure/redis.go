package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/krobus00/bracket-bot/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrRedisNotConfigured = errors.New("redis cache_dsn is required")

var redisRetryDefaults = retryDefaults{
	factor:   2,
	minDelay: 100 * time.Millisecond,
	maxDelay: time.Second,
}

// NewRedisClient connects the run lock store and checks it answers a ping.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.CacheDSN) == "" {
		return nil, ErrRedisNotConfigured
	}

	options, err := redis.ParseURL(cfg.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("parse redis cache_dsn: %w", err)
	}

	client := redis.NewClient(options)

	policy := newRetryPolicy(2, 0, 0, 0, redisRetryDefaults)
	err = policy.do(ctx, "redis "+options.Addr, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	logrus.WithField("addr", options.Addr).Info("redis connection established")

	return client, nil
}
