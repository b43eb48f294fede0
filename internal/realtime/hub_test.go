package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestClient(id, user string) *Client {
	return &Client{ID: id, User: user, send: make(chan WSMessage, 4)}
}

func TestSendDeliversToEveryConnection(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil, nil)
	laptop := newTestClient("c1", "yuri@example.com")
	phone := newTestClient("c2", "yuri@example.com")
	hub.Register(laptop)
	hub.Register(phone)

	require.NoError(t, hub.Send(context.Background(), "yuri@example.com", "hello"))

	for _, c := range []*Client{laptop, phone} {
		msg := <-c.send
		require.Equal(t, "message", msg.Event)
		require.JSONEq(t, `{"text":"hello"}`, string(msg.Data))
	}
}

func TestSendToUnknownUserIsNoop(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil, nil)
	require.NoError(t, hub.Send(context.Background(), "nobody@example.com", "hello"))
}

func TestOnlineTracksConnections(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil, nil)
	c := newTestClient("c1", "yuri@example.com")

	require.False(t, hub.Online("yuri@example.com"))
	hub.Register(c)
	require.True(t, hub.Online("yuri@example.com"))
	hub.Unregister(c)
	require.False(t, hub.Online("yuri@example.com"))
}

func TestSendDuringConnectionChurn(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil, nil)
	const user = "yuri@example.com"

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c := newTestClient(fmt.Sprintf("conn-%d", i), user)
			hub.Register(c)
			hub.Unregister(c)
		}
	}()

	for i := 0; i < 500; i++ {
		require.NoError(t, hub.Send(context.Background(), user, "hello"))
	}
	wg.Wait()
}

// failingSubscriber refuses every subscription attempt.
type failingSubscriber struct{}

func (failingSubscriber) SubscribeUser(string, func(string, []byte)) (func(), error) {
	return nil, errors.New("subscribe refused")
}

func TestRegisterLogsSubscriptionFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hub := NewHub(zap.New(core), nil, failingSubscriber{}, nil)

	c := newTestClient("c1", "yuri@example.com")
	hub.Register(c)

	require.Equal(t, 1, logs.FilterMessage("user subscription failed; cross-instance delivery unavailable").Len())

	// local delivery still works on this instance
	require.NoError(t, hub.Send(context.Background(), "yuri@example.com", "hello"))
	msg := <-c.send
	require.Equal(t, "message", msg.Event)
}
