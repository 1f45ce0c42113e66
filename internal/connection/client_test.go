package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn, *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(server *httptest.Server) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = wsURL(server)
	cfg.PingInterval = 0
	return cfg
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestClient_Connect(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) { drain(conn) })

	client := NewClient(testClientConfig(server), nil)
	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.IsConnected())

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())
}

func TestClient_UpgradeHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		headers <- r.Header.Clone()
		drain(conn)
	})

	cfg := testClientConfig(server)
	cfg.Token = "tok-123"
	cfg.ClientID = "client-abc"
	cfg.UserAgent = "lobby-client/test"

	client := NewClient(cfg, nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	h := <-headers
	assert.Equal(t, "Bearer tok-123", h.Get("Authorization"))
	assert.Equal(t, "client-abc", h.Get("X-Lobby-Client-Id"))
	assert.Equal(t, "lobby-client/test", h.Get("User-Agent"))
}

func TestClient_Send(t *testing.T) {
	received := make(chan []byte, 1)
	server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, msg, err := conn.ReadMessage()
		if err == nil {
			received <- msg
		}
		drain(conn)
	})

	client := NewClient(testClientConfig(server), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	testMsg := []byte(`{"type":"partyInfoRequest","id":1}`)
	require.NoError(t, client.Send(testMsg))

	select {
	case got := <-received:
		assert.Equal(t, testMsg, got)
	case <-time.After(time.Second):
		t.Fatal("server did not receive message")
	}
}

func TestClient_InboundPreservesOrder(t *testing.T) {
	testMessages := []string{
		`{"type":"personalChatNotif","payload":{"payload":"1"}}`,
		`{"type":"personalChatNotif","payload":{"payload":"2"}}`,
		`{"type":"personalChatNotif","payload":{"payload":"3"}}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for _, msg := range testMessages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		drain(conn)
	})

	client := NewClient(testClientConfig(server), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	for i, want := range testMessages {
		in, ok := client.Inbound().Pop()
		require.True(t, ok, "message %d", i)
		require.NoError(t, in.Err)
		assert.Equal(t, want, string(in.Data))
		assert.False(t, in.ReceivedAt.IsZero())
	}
}

func TestClient_ServerCloseIsTerminal(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dsNotif"}`))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(time.Second))
	})

	client := NewClient(testClientConfig(server), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	first, ok := client.Inbound().Pop()
	require.True(t, ok)
	assert.Equal(t, `{"type":"dsNotif"}`, string(first.Data))

	last, ok := client.Inbound().Pop()
	require.True(t, ok)
	var closeErr *websocket.CloseError
	require.True(t, errors.As(last.Err, &closeErr))
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
	assert.Equal(t, "shutdown", closeErr.Text)

	_, ok = client.Inbound().Pop()
	assert.False(t, ok, "queue closes after the terminal error")
	assert.False(t, client.IsConnected())
}

func TestClient_SendNotConnected(t *testing.T) {
	client := NewClient(ClientConfig{URL: "ws://localhost:12345"}, nil)
	assert.ErrorIs(t, client.Send([]byte("test")), ErrNotConnected)
}

func TestClient_ConnectAfterClose(t *testing.T) {
	client := NewClient(ClientConfig{URL: "ws://localhost:12345"}, nil)
	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Connect(context.Background()), ErrAlreadyClosed)
}

func TestClient_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) { drain(conn) })

	client := NewClient(testClientConfig(server), nil)
	require.NoError(t, client.Connect(context.Background()))

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	_, ok := client.Inbound().Pop()
	assert.False(t, ok, "Close must not leave a terminal error behind")
}

func TestClient_PingKeepsConnectionAlive(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) { drain(conn) })

	cfg := testClientConfig(server)
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongTimeout = 100 * time.Millisecond

	client := NewClient(cfg, nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	// The server answers pings while it reads, so the client stays healthy.
	time.Sleep(300 * time.Millisecond)
	assert.True(t, client.IsConnected())
	assert.Zero(t, client.Inbound().Len())
}

func TestClient_StaleWithoutPong(t *testing.T) {
	var once sync.Once
	release := make(chan struct{})
	t.Cleanup(func() { once.Do(func() { close(release) }) })

	// A handler that never reads never answers pings.
	server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) { <-release })

	cfg := testClientConfig(server)
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongTimeout = 60 * time.Millisecond

	client := NewClient(cfg, nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	done := make(chan Inbound, 1)
	go func() {
		in, _ := client.Inbound().Pop()
		done <- in
	}()

	select {
	case in := <-done:
		assert.ErrorIs(t, in.Err, ErrStaleConnection)
	case <-time.After(2 * time.Second):
		t.Fatal("stale connection not detected")
	}
	assert.False(t, client.IsConnected())
}

func TestDefaultConfigs(t *testing.T) {
	clientCfg := DefaultClientConfig()
	assert.Equal(t, 4*time.Second, clientCfg.PingInterval)
	assert.Equal(t, 15*time.Second, clientCfg.PongTimeout)
	assert.Equal(t, 256, clientCfg.BufferSize)

	mgrCfg := DefaultManagerConfig()
	assert.Equal(t, 10*time.Second, mgrCfg.ConnectTimeout)
	assert.Equal(t, 15*time.Second, mgrCfg.RequestTimeout)
}
