package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// onlineSetKey is the Redis set of users with at least one live connection
// across all instances.
const onlineSetKey = "guru:online"

// RedisPresence tracks online users in a shared Redis set, so out-of-process
// workers can decide between live delivery and queueing.
type RedisPresence struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPresence creates a Redis-backed presence tracker.
func NewRedisPresence(client *redis.Client, logger *zap.Logger) *RedisPresence {
	return &RedisPresence{client: client, logger: logger}
}

// SetOnline marks the user online.
func (p *RedisPresence) SetOnline(ctx context.Context, user string) error {
	if err := p.client.SAdd(ctx, onlineSetKey, user).Err(); err != nil {
		return fmt.Errorf("presence sadd: %w", err)
	}
	return nil
}

// SetOffline marks the user offline.
func (p *RedisPresence) SetOffline(ctx context.Context, user string) error {
	if err := p.client.SRem(ctx, onlineSetKey, user).Err(); err != nil {
		return fmt.Errorf("presence srem: %w", err)
	}
	return nil
}

// IsOnline reports whether the user has a live connection on any instance.
func (p *RedisPresence) IsOnline(ctx context.Context, user string) (bool, error) {
	online, err := p.client.SIsMember(ctx, onlineSetKey, user).Result()
	if err != nil {
		return false, fmt.Errorf("presence sismember: %w", err)
	}
	return online, nil
}
