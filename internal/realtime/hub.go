// Package realtime is the chat gateway: per-user WebSocket rooms with a
// Redis pub/sub bridge so a user's connections on other instances receive
// messages too. The conversation core never touches connections directly; it
// sees only the Send side.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Publisher publishes a user-addressed event to Redis for cross-instance delivery.
type Publisher interface {
	PublishUserEvent(user, event string, payload []byte) error
}

// Subscriber subscribes to a user's channel and invokes handler for incoming events.
type Subscriber interface {
	SubscribeUser(user string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// PresenceTracker records which users currently hold at least one connection.
type PresenceTracker interface {
	SetOnline(ctx context.Context, user string) error
	SetOffline(ctx context.Context, user string) error
}

// PresenceHandler is called when a user's first connection arrives or their
// last connection drops (e.g. to suspend their open question).
type PresenceHandler func(ctx context.Context, user string, online bool)

// chatPayload is the data body of a "message" event.
type chatPayload struct {
	Text string `json:"text"`
}

// Hub maintains user -> set of connections and delivers outbound messages.
type Hub struct {
	// user -> clientID -> connection
	users      map[string]map[string]*Client
	subs       map[string]func() // cancel Redis subscription per user
	mu         sync.RWMutex
	logger     *zap.Logger
	pub        Publisher
	sub        Subscriber
	presence   PresenceTracker
	onPresence PresenceHandler
}

// NewHub creates a chat gateway hub. pub, sub and presence may be nil for
// single-instance setups without Redis.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber, presence PresenceTracker) *Hub {
	return &Hub{
		users:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		pub:      pub,
		sub:      sub,
		presence: presence,
	}
}

// SetPresenceHandler sets the callback fired on a user's first join and last leave.
func (h *Hub) SetPresenceHandler(fn PresenceHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPresence = fn
}

// Register adds a connection for a user. The first connection starts the
// user's Redis subscription and marks them online.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	first := h.users[c.User] == nil
	if first {
		h.users[c.User] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeUser(c.User, func(event string, payload []byte) {
				h.deliverLocal(c.User, event, payload)
			})
			if err != nil {
				h.logger.Warn("user subscription failed; cross-instance delivery unavailable",
					zap.String("user", c.User), zap.Error(err))
			} else {
				h.subs[c.User] = cancel
			}
		}
	}
	h.users[c.User][c.ID] = c
	onPresence := h.onPresence
	h.mu.Unlock()

	if first {
		ctx := context.Background()
		if h.presence != nil {
			if err := h.presence.SetOnline(ctx, c.User); err != nil {
				h.logger.Warn("presence set online failed", zap.String("user", c.User), zap.Error(err))
			}
		}
		if onPresence != nil {
			onPresence(ctx, c.User, true)
		}
	}
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user", c.User))
}

// Unregister removes a connection. The last connection cancels the Redis
// subscription and marks the user offline.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	last := false
	if m, ok := h.users[c.User]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.users, c.User)
			if cancel, ok := h.subs[c.User]; ok {
				cancel()
				delete(h.subs, c.User)
			}
			last = true
		}
	}
	onPresence := h.onPresence
	h.mu.Unlock()

	if last {
		ctx := context.Background()
		if h.presence != nil {
			if err := h.presence.SetOffline(ctx, c.User); err != nil {
				h.logger.Warn("presence set offline failed", zap.String("user", c.User), zap.Error(err))
			}
		}
		if onPresence != nil {
			onPresence(ctx, c.User, false)
		}
	}
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user", c.User))
}

// Send delivers a chat text to every connection the user has, on any
// instance. With Redis configured it publishes only; the subscription
// callback performs the local broadcast exactly once per instance.
func (h *Hub) Send(ctx context.Context, user, text string) error {
	data, err := json.Marshal(chatPayload{Text: text})
	if err != nil {
		return err
	}
	if h.pub != nil {
		return h.pub.PublishUserEvent(user, "message", data)
	}
	h.deliverLocal(user, "message", data)
	return nil
}

// Online reports whether the user has a connection on this instance.
func (h *Hub) Online(user string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[user]) > 0
}

func (h *Hub) deliverLocal(user, event string, payload []byte) {
	msg := WSMessage{Event: event, Data: payload}

	// Copy under the lock; Register/Unregister mutate the inner map.
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.users[user]))
	for _, c := range h.users[user] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}
