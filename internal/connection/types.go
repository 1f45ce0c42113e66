package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnected  = errors.New("already connected or connecting")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrStaleConnection   = errors.New("connection stale (no pong)")
	ErrAlreadyClosed     = errors.New("already closed")
	ErrHandshakeRejected = errors.New("handshake rejected")
)

// Inbound is one item read from the socket. A non-nil Err is terminal and
// is always the last item delivered for a connection.
type Inbound struct {
	Data       []byte    // Raw frame bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
	Err        error
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Lobby WebSocket URL (e.g., wss://lobby.example.com/lobby/)
	Token            string        // Bearer credential sent on the upgrade request
	ClientID         string        // Sent as X-Lobby-Client-Id
	UserAgent        string        // Sent as User-Agent
	PingInterval     time.Duration // How often a ping frame is written
	PongTimeout      time.Duration // Max time without pong/ping before the connection is stale
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // WebSocket upgrade timeout
	BufferSize       int           // Initial inbound buffer capacity
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:     4 * time.Second,
		PongTimeout:      15 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Namespace        string        // Stamped on every request frame
	ConnectTimeout   time.Duration // Bound on the connectRequest handshake
	RequestTimeout   time.Duration // Per-request deadline (0 = none)
	Client           ClientConfig
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 15 * time.Second,
		Client:         DefaultClientConfig(),
	}
}
