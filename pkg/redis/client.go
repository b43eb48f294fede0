// Package redis connects the shared Redis instance that backs presence
// tracking, cross-instance chat delivery, and the offline notice queue.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crowdguru/backend/config"
)

const pingTimeout = 5 * time.Second

// NewClient connects to Redis and verifies it answers before the notice
// queue and presence set start depending on it.
func NewClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: pingTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("redis ready", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return rdb, nil
}
