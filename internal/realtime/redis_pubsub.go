package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "guru:user:"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance delivery.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub implements Publisher and Subscriber over Redis pub/sub,
// one channel per user.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for user-addressed messages.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// PublishUserEvent publishes an event to the user's Redis channel.
func (r *RedisPubSub) PublishUserEvent(user, event string, payload []byte) error {
	channel := channelPrefix + user
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channel, body).Err()
}

// Send publishes a chat text to the user's channel. It satisfies the
// notifier's gateway contract for processes that hold no connections of
// their own (cmd/worker); server instances with a subscription deliver it.
func (r *RedisPubSub) Send(_ context.Context, user, text string) error {
	data, err := json.Marshal(chatPayload{Text: text})
	if err != nil {
		return err
	}
	return r.PublishUserEvent(user, "message", data)
}

// SubscribeUser subscribes to a user's Redis channel and calls handler for
// each message. Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeUser(user string, handler func(event string, payload []byte)) (cancel func(), err error) {
	channel := channelPrefix + user
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var payload redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					r.logger.Warn("invalid pubsub payload", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(payload.Event, payload.Data)
			}
		}
	}()
	return cancelCtx, nil
}
