package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "aurora/backend/pkg/errors"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// State is the lifecycle of one client connection
type State int32

const (
	StateConnected State = iota
	StateDisconnected
)

// ClientOptions bounds a client's queues
type ClientOptions struct {
	SendBuffer      int
	MaxMessageBytes int64
}

// Client is one WebSocket connection of an identity
type Client struct {
	id       string
	identity string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	opts     ClientOptions

	state      atomic.Int32
	closeOnce  sync.Once
	closeFrame []byte
	logger     *zap.Logger
}

// NewClient wraps an upgraded connection for identity
func NewClient(identity string, hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 256
	}
	if opts.MaxMessageBytes < 1 {
		opts.MaxMessageBytes = 64 * 1024
	}
	id := uuid.NewString()
	return &Client{
		id:       id,
		identity: identity,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, opts.SendBuffer),
		done:     make(chan struct{}),
		opts:     opts,
		logger: hub.logger.With(
			zap.String("identity", identity),
			zap.String("conn", id),
		),
	}
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// State reports whether the client is still connected
func (c *Client) State() State {
	return State(c.state.Load())
}

// Send queues a frame. A full queue or a closed client is a transport error,
// and a full queue also closes the client.
func (c *Client) Send(frame OutboundFrame) error {
	if c.State() == StateDisconnected {
		return apperrors.NewTransport(c.id, "connection closed", nil)
	}
	data, err := frame.Encode()
	if err != nil {
		return apperrors.NewTransport(c.id, "failed to encode frame", err)
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return apperrors.NewTransport(c.id, "connection closed", nil)
	default:
		// a peer that cannot keep up is dropped, not waited on
		c.closeWith(websocket.ClosePolicyViolation, "send queue full")
		return apperrors.NewTransport(c.id, "send queue full", nil)
	}
}

// Serve registers the client and blocks until the connection ends
func (c *Client) Serve(ctx context.Context) {
	c.hub.Connect(c.identity, c)
	defer c.hub.Disconnect(c.identity, c)

	go c.writePump()
	c.readPump(ctx)
}

// Close shuts the connection down with a normal closure
func (c *Client) Close() {
	c.closeWith(websocket.CloseNormalClosure, "")
}

func (c *Client) closeWith(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeFrame = websocket.FormatCloseMessage(code, text)
		c.state.Store(int32(StateDisconnected))
		close(c.done)
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		if err := c.hub.HandleInbound(ctx, c.identity, c, message); err != nil {
			c.closeWith(websocket.CloseProtocolError, "invalid frame")
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, c.closeFrame)
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("Failed to write frame", zap.Error(err))
				c.Close()
				return
			}

			// Flush whatever queued up meanwhile
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					c.logger.Warn("Failed to write queued frame", zap.Error(err))
					c.Close()
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
