package lobby

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/connection"
	"github.com/rickgao/lobby-client/internal/dispatch"
	"github.com/rickgao/lobby-client/internal/friends"
	"github.com/rickgao/lobby-client/internal/matchmaking"
	"github.com/rickgao/lobby-client/internal/notify"
	"github.com/rickgao/lobby-client/internal/party"
	"github.com/rickgao/lobby-client/internal/protocol"
	"github.com/rickgao/lobby-client/internal/session"
)

// ReasonClientClosed is the reason recorded when the caller disconnects.
const ReasonClientClosed = "client_closed"

// Client is one lobby session.
type Client struct {
	logger  *zap.Logger
	router  *notify.Router
	manager *connection.Manager
	guard   *session.Guard

	party       *party.Tracker
	friends     *friends.Tracker
	matchmaking *matchmaking.Tracker

	guardSub  *notify.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New wires a client for cred. The credential token overrides any token in
// cfg. Nothing touches the network until Connect.
func New(cfg connection.ManagerConfig, cred session.Credential, opts ...Option) *Client {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = cred.Namespace
	}
	cfg.Client.Token = cred.Token

	var routerOpts []notify.Option
	var dispatchOpts []dispatch.Option
	var managerOpts []connection.Option
	if o.metrics != nil {
		routerOpts = append(routerOpts, notify.WithObserver(o.metrics))
		dispatchOpts = append(dispatchOpts, dispatch.WithObserver(o.metrics))
		managerOpts = append(managerOpts, connection.WithStateObserver(o.metrics))
	}
	if o.tracer != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithTracer(o.tracer))
	}
	if o.clientFactory != nil {
		managerOpts = append(managerOpts, connection.WithClientFactory(o.clientFactory))
	}

	var (
		guardOpts []session.Option
		mmOpts    []matchmaking.Option
	)
	for _, src := range o.sources {
		guardOpts = append(guardOpts, session.WithRevocationSource(src))
	}
	if o.clock != nil {
		guardOpts = append(guardOpts, session.WithClock(o.clock))
		mmOpts = append(mmOpts, matchmaking.WithClock(o.clock))
	}
	guard := session.NewGuard(cred, logger, guardOpts...)

	router := notify.NewRouter(logger, routerOpts...)
	managerOpts = append(managerOpts,
		connection.WithPrecondition(guard.Valid),
		connection.WithDispatchOptions(dispatchOpts...),
	)
	manager := connection.NewManager(cfg, router, logger, managerOpts...)
	guard.Bind(manager)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		logger:      logger.Named("lobby"),
		router:      router,
		manager:     manager,
		guard:       guard,
		party:       party.NewTracker(manager, router, logger),
		friends:     friends.NewTracker(manager, router, logger),
		matchmaking: matchmaking.NewTracker(manager, router, manager.UserID, logger, mmOpts...),
		guardSub:    guard.Watch(router),
		ctx:         ctx,
		cancel:      cancel,
	}
	if o.metrics != nil {
		o.metrics.TrackManager(manager.Stats)
	}
	return c
}

// Connect starts the session guard and opens the lobby connection.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.guard.Start(c.ctx); err != nil {
		return err
	}
	return c.manager.Connect(ctx)
}

// Disconnect closes the connection. Trackers and subscriptions survive, so
// Connect may be called again while the session is valid.
func (c *Client) Disconnect() error {
	return c.manager.Disconnect(ReasonClientClosed)
}

// Close disconnects, stops the session guard and detaches the trackers.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.manager.Disconnect(ReasonClientClosed)
		c.cancel()
		if gerr := c.guard.Stop(); gerr != nil && !errors.Is(gerr, context.Canceled) {
			c.logger.Debug("session guard stopped", zap.Error(gerr))
		}
		c.guardSub.Unsubscribe()
		c.party.Close()
		c.friends.Close()
		c.matchmaking.Close()
	})
	return err
}

// State returns the connection state.
func (c *Client) State() connection.State { return c.manager.State() }

// UserID returns the user id acknowledged by the last handshake.
func (c *Client) UserID() string { return c.manager.UserID() }

// Stats returns connection statistics.
func (c *Client) Stats() connection.ManagerStats { return c.manager.Stats() }

// Session returns the session guard.
func (c *Client) Session() *session.Guard { return c.guard }

// Party returns the party tracker.
func (c *Client) Party() *party.Tracker { return c.party }

// Friends returns the friendship tracker.
func (c *Client) Friends() *friends.Tracker { return c.friends }

// Matchmaking returns the matchmaking tracker.
func (c *Client) Matchmaking() *matchmaking.Tracker { return c.matchmaking }

// Call sends an arbitrary request and waits for its response.
func (c *Client) Call(ctx context.Context, msgType string, payload any) (protocol.Frame, error) {
	return c.manager.Call(ctx, msgType, payload)
}

// Subscribe registers h for pushes tagged msgType.
func (c *Client) Subscribe(msgType string, h notify.Handler) *notify.Subscription {
	return c.router.Subscribe(msgType, h)
}

// On registers a typed push handler on c.
func On[T protocol.Push](c *Client, fn func(T)) *notify.Subscription {
	return notify.On(c.router, fn)
}
