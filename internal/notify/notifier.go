package notify

import (
	"context"

	"go.uber.org/zap"
)

// Gateway sends a chat text to a user's live connections.
type Gateway interface {
	Send(ctx context.Context, user, text string) error
}

// Presence reports whether a user is connected anywhere.
type Presence interface {
	IsOnline(ctx context.Context, user string) (bool, error)
}

// Notifier routes a notice to the gateway when the recipient is online and
// to the queue otherwise. presence and queue may be nil for single-instance
// setups without Redis; then everything goes straight to the gateway.
type Notifier struct {
	gateway  Gateway
	presence Presence
	queue    *Queue
	logger   *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(gateway Gateway, presence Presence, queue *Queue, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{gateway: gateway, presence: presence, queue: queue, logger: logger}
}

// Deliver sends a notice now or queues it for later.
func (n *Notifier) Deliver(ctx context.Context, user, text string) error {
	if n.presence != nil && n.queue != nil {
		online, err := n.presence.IsOnline(ctx, user)
		if err != nil {
			n.logger.Warn("presence check failed, queueing notice", zap.String("user", user), zap.Error(err))
			online = false
		}
		if !online {
			return n.queue.Enqueue(ctx, NoticePayload{Recipient: user, Text: text})
		}
	}
	return n.gateway.Send(ctx, user, text)
}
