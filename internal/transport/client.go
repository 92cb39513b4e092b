// Package transport maintains the websocket channel to the chat backend.
//
// The channel has at-most-once delivery semantics and assigns no
// client-visible message ids; everything above it (reconciliation, replay)
// is built to cope with that. This package only dials, frames, and fans
// received messages onto the bus.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gavago/roomchat/internal/bus"
	"github.com/gavago/roomchat/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned for emits attempted without a live channel.
var ErrNotConnected = errors.New("transport not connected")

// DialTimeout bounds a single connection attempt.
const DialTimeout = 5 * time.Second

const maxBackoff = 30 * time.Second

// Client is the websocket client. One instance is shared by the whole
// session; only the replay driver and explicit user actions emit on it.
type Client struct {
	url    string
	pseudo string
	bus    *bus.Bus
	logger *zap.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	connected   bool
	connID      string
	currentRoom string

	cancel context.CancelFunc
}

// NewClient creates a transport client. Call Start (or Connect in tests) to
// open the channel.
func NewClient(url, pseudo string, b *bus.Bus, logger *zap.Logger) *Client {
	return &Client{
		url:    url,
		pseudo: pseudo,
		bus:    b,
		logger: logger,
	}
}

// Start runs the connect/reconnect loop in the background until Stop.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
}

// Stop terminates the reconnect loop and closes the channel.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) run(ctx context.Context) {
	backoff := time.Second
	for {
		closed, err := c.Connect(ctx)
		if err != nil {
			c.logger.Warn("connect failed", zap.Error(err))
		} else {
			backoff = time.Second
			select {
			case <-closed:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Connect performs a single bounded dial, starts the read pump, rejoins the
// tracked room if any, and returns a channel closed when the connection
// drops.
func (c *Client) Connect(ctx context.Context) (<-chan struct{}, error) {
	dctx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial chat server: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	if c.connID == "" {
		// Provisional id until the server's welcome frame replaces it.
		c.connID = uuid.NewString()
	}
	room := c.currentRoom
	c.mu.Unlock()

	closed := make(chan struct{})
	go c.readLoop(conn, closed)

	c.logger.Info("transport connected", zap.String("url", c.url))
	c.bus.Publish(bus.Event{Kind: "wire.connected", Timestamp: time.Now()})

	if room != "" {
		if err := c.JoinRoom(room); err != nil {
			c.logger.Warn("rejoin after reconnect failed", zap.Error(err), zap.String("room", room))
		}
	}
	return closed, nil
}

// Connected reports whether the channel is live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ConnectionID returns the transport-assigned connection id.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// CurrentRoom returns the room this channel last joined. Consumers re-check
// this against their selected room before emitting; handlers can be
// re-entered across awaits and the room may have moved underneath them.
func (c *Client) CurrentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentRoom
}

// JoinRoom announces the pseudo in a room and tracks it as current.
func (c *Client) JoinRoom(roomName string) error {
	if err := c.emit(EventJoinRoom, joinPayload{Pseudo: c.pseudo, RoomName: roomName}); err != nil {
		return err
	}
	c.mu.Lock()
	c.currentRoom = roomName
	c.mu.Unlock()
	return nil
}

// SendText emits a text message to a room.
func (c *Client) SendText(content, roomName string) error {
	return c.emit(EventMessage, textPayload{Content: content, RoomName: roomName})
}

// SendImage emits an image payload (data URL or base64) with the sender
// connection id.
func (c *Client) SendImage(content, senderID, roomName string) error {
	return c.emit(EventImage, imagePayload{Content: content, UserID: senderID, RoomName: roomName})
}

func (c *Client) emit(event string, data any) error {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return ErrNotConnected
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, closed chan struct{}) {
	defer close(closed)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasCurrent := c.conn == conn
			if wasCurrent {
				c.conn = nil
				c.connected = false
			}
			c.mu.Unlock()
			if wasCurrent {
				c.logger.Warn("transport disconnected", zap.Error(err))
				c.bus.Publish(bus.Event{Kind: "wire.disconnected", Timestamp: time.Now()})
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("unreadable frame", zap.Error(err))
		return
	}

	switch env.Event {
	case EventWelcome:
		var w welcomePayload
		if err := json.Unmarshal(env.Data, &w); err == nil && w.ID != "" {
			c.mu.Lock()
			c.connID = w.ID
			c.mu.Unlock()
		}
	case EventMessage:
		var m store.Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			c.logger.Warn("unreadable chat-msg payload", zap.Error(err))
			return
		}
		c.bus.Publish(bus.Event{Kind: "wire.message", Timestamp: time.Now(), Payload: &m})
	default:
		// Unknown events are ignored; the backend is free to add them.
	}
}
