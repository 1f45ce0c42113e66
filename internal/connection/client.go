package connection

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client represents a single WebSocket connection to the lobby.
type Client interface {
	// Connect performs the WebSocket upgrade with the bearer credential.
	Connect(ctx context.Context) error

	// Close sends a normal close frame and releases the socket.
	Close() error

	// Send writes one text frame.
	Send(data []byte) error

	// Inbound returns the queue of received frames. The last item for a
	// connection that failed carries the terminal error.
	Inbound() *Queue[Inbound]

	// IsConnected returns current connection state.
	IsConnected() bool
}

// ClientFactory builds a Client per connection attempt.
type ClientFactory func(cfg ClientConfig, logger *zap.Logger) Client

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	logger *zap.Logger

	conn    *websocket.Conn
	inbound *Queue[Inbound]
	done    chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu         sync.RWMutex
	connected  bool
	lastPongAt time.Time
	closed     bool
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &client{
		cfg:     cfg,
		logger:  logger,
		inbound: NewQueue[Inbound](cfg.BufferSize),
		done:    make(chan struct{}),
	}
}

func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if c.cfg.ClientID != "" {
		header.Set("X-Lobby-Client-Id", c.cfg.ClientID)
	}
	if c.cfg.UserAgent != "" {
		header.Set("User-Agent", c.cfg.UserAgent)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", c.cfg.URL, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastPongAt = time.Now()
	c.mu.Unlock()

	// Any ping or pong from the server counts as liveness.
	conn.SetPingHandler(func(data string) error {
		c.touch()
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop()
	if c.cfg.PingInterval > 0 {
		go c.heartbeatLoop()
	}

	c.logger.Debug("websocket connected", zap.String("url", c.cfg.URL))
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	defer c.inbound.Close()

	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *client) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(c.writeDeadline())
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) Inbound() *Queue[Inbound] {
	return c.inbound
}

func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *client) writeDeadline() time.Time {
	if c.cfg.WriteTimeout <= 0 {
		return time.Now().Add(5 * time.Second)
	}
	return time.Now().Add(c.cfg.WriteTimeout)
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastPongAt = time.Now()
	c.mu.Unlock()
}

// fail delivers a terminal error unless Close already ran.
func (c *client) fail(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.inbound.Push(Inbound{Err: err, ReceivedAt: time.Now()})
	c.inbound.Close()
}

// readLoop reads frames into the inbound queue in arrival order.
func (c *client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			c.fail(err)
			return
		}
		if !c.inbound.Push(Inbound{Data: data, ReceivedAt: receivedAt}) {
			return
		}
	}
}

// heartbeatLoop writes pings and detects a silent peer.
func (c *client) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, c.writeDeadline())
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("failed to send ping", zap.Error(err))
			}

			c.mu.RLock()
			last := c.lastPongAt
			c.mu.RUnlock()

			if c.cfg.PongTimeout > 0 && time.Since(last) > c.cfg.PongTimeout {
				c.logger.Warn("no pong received, connection stale",
					zap.Time("last_pong", last),
					zap.Duration("timeout", c.cfg.PongTimeout),
				)
				c.fail(ErrStaleConnection)
				// Unblock the reader; its error is discarded after fail.
				_ = c.conn.Close()
				return
			}
		}
	}
}
