package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/crowdguru/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Dispatch handles one inbound chat line and returns the reply for the sender.
type Dispatch func(ctx context.Context, sender, text string) (reply string, err error)

// Client represents a single WebSocket connection of a user.
type Client struct {
	ID       string
	User     string
	hub      *Hub
	conn     *websocket.Conn
	dispatch Dispatch
	send     chan WSMessage
	logger   *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop. The user
// identity comes from the "user" query parameter and is taken as given;
// authenticating senders is outside this service.
func ServeWs(hub *Hub, logger *zap.Logger, dispatch Dispatch) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := models.Bare(c.Query("user"))
		if user == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.New().String(),
			User:     user,
			hub:      hub,
			conn:     conn,
			dispatch: dispatch,
			send:     make(chan WSMessage, 256),
			logger:   logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "chat":
			var payload chatPayload
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				continue
			}
			c.handleChat(payload.Text)
		default:
			// ignore unknown events
		}
	}
}

func (c *Client) handleChat(text string) {
	reply, err := c.dispatch(context.Background(), c.User, text)
	if err != nil {
		c.logger.Error("dispatch failed", zap.String("user", c.User), zap.Error(err))
		c.reply("error", chatPayload{Text: "The Guru is having trouble thinking right now. Please try again shortly."})
		return
	}
	if reply != "" {
		c.reply("message", chatPayload{Text: reply})
	}
}

// reply queues a message on this connection only. Replies go back on the
// connection the text arrived on; fan-out notices go through the hub.
func (c *Client) reply(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
