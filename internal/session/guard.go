package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/lobby-client/internal/notify"
	"github.com/rickgao/lobby-client/internal/protocol"
)

// ErrSessionInvalid is returned for every operation after invalidation.
var ErrSessionInvalid = errors.New("session invalid")

// Invalidation reasons.
const (
	ReasonExpired    = "token_expired"
	ReasonRevoked    = protocol.ReasonRevoked
	ReasonSuperseded = protocol.ReasonSuperseded
	ReasonLoggedOut  = "logged_out"
)

// Disconnector closes the connection bound to a session.
type Disconnector interface {
	Disconnect(reason string) error
}

// Guard enforces the validity of one credential.
type Guard struct {
	cred    Credential
	logger  *zap.Logger
	sources []RevocationSource
	now     func() time.Time

	mu           sync.Mutex
	invalid      error
	disconnector Disconnector
	callbacks    []func(error)
	timer        *time.Timer
	cancel       context.CancelFunc
	group        *errgroup.Group
}

// Option configures a Guard.
type Option func(*Guard)

// WithRevocationSource adds a source watched while the guard runs.
func WithRevocationSource(s RevocationSource) Option {
	return func(g *Guard) { g.sources = append(g.sources, s) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a guard for cred.
func NewGuard(cred Credential, logger *zap.Logger, opts ...Option) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		cred:   cred,
		logger: logger.Named("session").With(zap.String("user_id", cred.UserID)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Credential returns the bound credential.
func (g *Guard) Credential() Credential {
	return g.cred
}

// Bind sets the connection closed on invalidation.
func (g *Guard) Bind(d Disconnector) {
	g.mu.Lock()
	g.disconnector = d
	g.mu.Unlock()
}

// OnInvalidated registers fn to run once the session becomes invalid. If it
// already is, fn runs immediately.
func (g *Guard) OnInvalidated(fn func(error)) {
	g.mu.Lock()
	if g.invalid != nil {
		err := g.invalid
		g.mu.Unlock()
		fn(err)
		return
	}
	g.callbacks = append(g.callbacks, fn)
	g.mu.Unlock()
}

// Valid returns nil while the session may be used. It is the connection
// precondition and must not call back into the connection.
func (g *Guard) Valid() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.invalid != nil {
		return g.invalid
	}
	if g.cred.Expired(g.now()) {
		return fmt.Errorf("%w: %s", ErrSessionInvalid, ReasonExpired)
	}
	return nil
}

// Start arms the expiry timer and starts the revocation sources.
func (g *Guard) Start(ctx context.Context) error {
	if err := g.Valid(); err != nil {
		g.Invalidate(ReasonExpired)
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return nil
	}

	if !g.cred.ExpiresAt.IsZero() {
		g.timer = time.AfterFunc(g.cred.ExpiresAt.Sub(g.now()), func() {
			g.Invalidate(ReasonExpired)
		})
	}

	ctx, g.cancel = context.WithCancel(ctx)
	g.group = new(errgroup.Group)
	for _, src := range g.sources {
		g.group.Go(func() error {
			err := src.Watch(ctx, g.cred, func(reason string) {
				g.Invalidate(reason)
			})
			if err != nil {
				g.logger.Warn("revocation source stopped", zap.Error(err))
			}
			return err
		})
	}
	return nil
}

// Watch subscribes to server disconnect notifications. A superseded or
// revoked connection invalidates the session; the connection itself is
// already being closed by the lobby.
func (g *Guard) Watch(router *notify.Router) *notify.Subscription {
	return notify.On(router, func(n protocol.DisconnectNotif) {
		switch n.Reason {
		case protocol.ReasonSuperseded, protocol.ReasonRevoked:
			g.invalidate(n.Reason, false)
		}
	})
}

// Invalidate ends the session: the connection is closed and callbacks fire.
// It returns false if the session was already invalid.
func (g *Guard) Invalidate(reason string) bool {
	return g.invalidate(reason, true)
}

func (g *Guard) invalidate(reason string, disconnect bool) bool {
	g.mu.Lock()
	if g.invalid != nil {
		g.mu.Unlock()
		return false
	}
	err := fmt.Errorf("%w: %s", ErrSessionInvalid, reason)
	g.invalid = err
	callbacks := g.callbacks
	g.callbacks = nil
	d := g.disconnector
	if g.timer != nil {
		g.timer.Stop()
	}
	if g.cancel != nil {
		g.cancel()
	}
	g.mu.Unlock()

	g.logger.Info("session invalidated", zap.String("reason", reason))

	if disconnect && d != nil {
		if derr := d.Disconnect(reason); derr != nil {
			g.logger.Warn("disconnect after invalidation", zap.Error(derr))
		}
	}
	for _, fn := range callbacks {
		fn(err)
	}
	return true
}

// Stop halts the expiry timer and revocation sources without invalidating.
func (g *Guard) Stop() error {
	g.mu.Lock()
	if g.timer != nil {
		g.timer.Stop()
	}
	cancel, group := g.cancel, g.group
	g.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return group.Wait()
}
