package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/dispatch"
	"github.com/rickgao/lobby-client/internal/notify"
	"github.com/rickgao/lobby-client/internal/protocol"
	"github.com/rickgao/lobby-client/internal/version"
)

// Precondition is consulted before connecting and before every request.
// A non-nil error refuses the operation without touching the socket.
type Precondition func() error

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State           State
	ConnectionID    string
	PendingRequests int
	InboundQueued   int
	Router          notify.RouterStats
}

// Manager owns the lobby socket for one session.
type Manager struct {
	cfg        ManagerConfig
	logger     *zap.Logger
	router     *notify.Router
	dispatcher *dispatch.Dispatcher

	newClient    ClientFactory
	observer     StateObserver
	precondition Precondition
	dispatchOpts []dispatch.Option
	clientID     string

	mu           sync.Mutex
	state        State
	client       Client
	gen          uint64
	closing      bool
	token        string
	userID       string
	connectionID string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) { m.newClient = f }
}

// WithStateObserver registers a state transition observer.
func WithStateObserver(o StateObserver) Option {
	return func(m *Manager) { m.observer = o }
}

// WithPrecondition installs the session validity check.
func WithPrecondition(p Precondition) Option {
	return func(m *Manager) { m.precondition = p }
}

// WithDispatchOptions forwards options to the Request Dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(m *Manager) { m.dispatchOpts = append(m.dispatchOpts, opts...) }
}

// NewManager creates a Connection Manager. Pushes are delivered through router,
// whose subscriptions survive reconnects.
func NewManager(cfg ManagerConfig, router *notify.Router, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:          cfg,
		logger:       logger.Named("connection"),
		router:       router,
		newClient:    NewClient,
		observer:     nopObserver{},
		precondition: func() error { return nil },
		clientID:     cfg.Client.ClientID,
		token:        cfg.Client.Token,
	}
	if m.clientID == "" {
		m.clientID = uuid.NewString()
	}
	for _, opt := range opts {
		opt(m)
	}

	m.dispatcher = dispatch.New(
		dispatch.Config{Timeout: cfg.RequestTimeout},
		dispatch.WriterFunc(m.write),
		m.envelope,
		logger,
		m.dispatchOpts...,
	)
	return m
}

// SetToken replaces the credential used by the next Connect.
func (m *Manager) SetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateDisconnected {
		return ErrAlreadyConnected
	}
	m.token = token
	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UserID returns the user id confirmed by the last handshake.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// Router returns the Notification Router fed by this connection.
func (m *Manager) Router() *notify.Router {
	return m.router
}

// Connect opens the socket and performs the connectRequest handshake.
// It returns once the lobby accepts the session or the attempt fails; a
// failed attempt leaves the manager Disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	if err := m.precondition(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.gen++
	gen := m.gen
	m.closing = false
	m.userID, m.connectionID = "", ""

	ccfg := m.cfg.Client
	ccfg.Token = m.token
	ccfg.ClientID = m.clientID
	if ccfg.UserAgent == "" {
		ccfg.UserAgent = version.UserAgent()
	}
	client := m.newClient(ccfg, m.logger)
	m.client = client
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	if err := client.Connect(ctx); err != nil {
		m.teardown(gen, "", err, false, false)
		return err
	}
	go m.pump(gen, client)

	hctx := ctx
	if m.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		defer cancel()
	}
	frame, err := m.dispatcher.Call(hctx, protocol.TypeConnectRequest, protocol.ConnectRequest{
		ClientID: m.clientID,
		Version:  version.Version,
	})
	if err != nil {
		var perr *protocol.ProtocolError
		if errors.As(err, &perr) {
			err = fmt.Errorf("%w: %w", ErrHandshakeRejected, err)
		}
		m.teardown(gen, "", err, false, false)
		return fmt.Errorf("lobby handshake: %w", err)
	}

	var resp protocol.ConnectResponse
	if err := frame.Decode(&resp); err != nil {
		m.teardown(gen, "", err, false, false)
		return fmt.Errorf("lobby handshake: %w", err)
	}

	m.mu.Lock()
	if m.gen != gen || m.closing {
		m.mu.Unlock()
		return ErrConnectionClosed
	}
	m.userID = resp.UserID
	m.connectionID = resp.ConnectionID
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	m.logger.Info("lobby connected",
		zap.String("user_id", resp.UserID),
		zap.String("connection_id", resp.ConnectionID),
	)
	m.router.Emit(protocol.Connected{UserID: resp.UserID, ConnectionID: resp.ConnectionID})
	return nil
}

// Disconnect closes the connection. Outstanding requests fail with
// ErrConnectionClosed. Disconnecting an idle manager is a no-op.
func (m *Manager) Disconnect(reason string) error {
	m.mu.Lock()
	if m.state == StateDisconnected || m.closing {
		m.mu.Unlock()
		return nil
	}
	gen := m.gen
	m.mu.Unlock()

	m.teardown(gen, reason, nil, true, false)
	return nil
}

// Call sends a request and waits for its outcome.
func (m *Manager) Call(ctx context.Context, msgType string, payload any) (protocol.Frame, error) {
	if err := m.ready(); err != nil {
		return protocol.Frame{}, err
	}
	return m.dispatcher.Call(ctx, msgType, payload)
}

// Send sends a request and reports its single outcome to cb.
func (m *Manager) Send(ctx context.Context, msgType string, payload any, cb dispatch.Callback) (int64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	return m.dispatcher.Send(ctx, msgType, payload, cb)
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	s := ManagerStats{State: m.state, ConnectionID: m.connectionID}
	client := m.client
	m.mu.Unlock()

	if client != nil {
		s.InboundQueued = client.Inbound().Len()
	}
	s.PendingRequests = m.dispatcher.Pending()
	s.Router = m.router.Stats()
	return s
}

// ready checks the session precondition first, so an invalidated session
// reports why rather than ErrNotConnected.
func (m *Manager) ready() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.precondition(); err != nil {
		return err
	}
	if m.state != StateConnected || m.closing {
		return ErrNotConnected
	}
	return nil
}

func (m *Manager) envelope() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Namespace, m.token
}

func (m *Manager) write(data []byte) error {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}
	return client.Send(data)
}

// pump processes one connection's inbound frames in receive order. It is the
// only goroutine that resolves requests or delivers pushes for gen.
func (m *Manager) pump(gen uint64, client Client) {
	for {
		in, ok := client.Inbound().Pop()
		if !ok {
			return
		}
		if !m.current(gen) {
			return
		}
		if in.Err != nil {
			m.handleTransportError(gen, in.Err)
			return
		}
		m.handleFrame(gen, in)
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen && !m.closing
}

func (m *Manager) handleFrame(gen uint64, in Inbound) {
	frame, err := protocol.Decode(in.Data)
	if err != nil {
		m.logger.Warn("dropping malformed frame", zap.Error(err), zap.Int("bytes", len(in.Data)))
		return
	}

	if frame.Class() == protocol.ClassResponse {
		if !m.dispatcher.Resolve(frame) {
			m.logger.Debug("response for unknown request",
				zap.Int64("id", frame.ID),
				zap.String("type", frame.Type),
			)
		}
		return
	}

	m.router.Dispatch(frame)

	if frame.Type == protocol.TypeDisconnectNotif {
		var notif protocol.DisconnectNotif
		if err := frame.Decode(&notif); err != nil {
			m.logger.Warn("malformed disconnect notification", zap.Error(err))
		}
		m.logger.Info("lobby requested disconnect",
			zap.String("reason", notif.Reason),
			zap.String("message", notif.Message),
		)
		m.teardown(gen, notif.Reason, nil, true, true)
	}
}

func (m *Manager) handleTransportError(gen uint64, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure && closeErr.Text != "" {
		m.logger.Info("lobby closed connection",
			zap.Int("code", closeErr.Code),
			zap.String("reason", closeErr.Text),
		)
		m.teardown(gen, closeErr.Text, err, true, true)
		return
	}
	m.logger.Warn("lobby connection lost", zap.Error(err))
	m.teardown(gen, "", err, false, false)
}

// teardown runs the disconnect sequence once per generation. It never waits
// for the pump goroutine, so handlers may call Disconnect.
func (m *Manager) teardown(gen uint64, reason string, cause error, announce, serverInitiated bool) bool {
	m.mu.Lock()
	if m.gen != gen || m.closing || m.state == StateDisconnected {
		m.mu.Unlock()
		return false
	}
	m.closing = true
	client := m.client
	if announce {
		m.setStateLocked(StateDisconnecting)
	}
	m.mu.Unlock()

	if announce {
		m.router.Emit(protocol.Disconnecting{Reason: reason, ServerInitiated: serverInitiated})
	}

	failure := ErrConnectionClosed
	if reason != "" {
		failure = fmt.Errorf("%w: %s", ErrConnectionClosed, reason)
	}
	if n := m.dispatcher.FailAll(failure); n > 0 {
		m.logger.Debug("failed outstanding requests", zap.Int("count", n))
	}

	if client != nil {
		if err := client.Close(); err != nil {
			m.logger.Debug("close socket", zap.Error(err))
		}
	}

	m.mu.Lock()
	m.client = nil
	m.connectionID = ""
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	m.router.Emit(protocol.Disconnected{Reason: reason, Err: cause})
	return true
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	prev := m.state
	m.state = s
	m.observer.StateChanged(prev, s)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State) {}
