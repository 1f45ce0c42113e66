package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rickgao/lobby-client/internal/notify"
	"github.com/rickgao/lobby-client/internal/protocol"
)

type fakeConn struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fakeConn) Disconnect(reason string) error {
	f.mu.Lock()
	f.reasons = append(f.reasons, reason)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reasons...)
}

// manualSource revokes when told to.
type manualSource struct {
	fire    chan string
	started chan struct{}
}

func newManualSource() *manualSource {
	return &manualSource{fire: make(chan string, 1), started: make(chan struct{})}
}

func (s *manualSource) Watch(ctx context.Context, _ Credential, revoke func(string)) error {
	close(s.started)
	select {
	case <-ctx.Done():
		return nil
	case reason := <-s.fire:
		revoke(reason)
		return nil
	}
}

type failingSource struct{}

func (failingSource) Watch(context.Context, Credential, func(string)) error {
	return errors.New("redis unavailable")
}

func testCredential(ttl time.Duration) Credential {
	return Credential{
		Token:     "tok",
		UserID:    "user-1",
		Namespace: "game",
		TokenID:   "jti-1",
		ExpiresAt: time.Now().Add(ttl),
	}
}

func TestGuard_ValidUntilInvalidated(t *testing.T) {
	conn := &fakeConn{}
	g := NewGuard(testCredential(time.Hour), zaptest.NewLogger(t))
	g.Bind(conn)

	require.NoError(t, g.Valid())

	var got []error
	g.OnInvalidated(func(err error) { got = append(got, err) })

	assert.True(t, g.Invalidate(ReasonLoggedOut))
	assert.False(t, g.Invalidate(ReasonLoggedOut), "invalidation happens once")

	err := g.Valid()
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Contains(t, err.Error(), ReasonLoggedOut)
	assert.Equal(t, []string{ReasonLoggedOut}, conn.calls())
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], ErrSessionInvalid)
}

func TestGuard_OnInvalidatedAfterTheFact(t *testing.T) {
	g := NewGuard(testCredential(time.Hour), nil)
	g.Invalidate(ReasonRevoked)

	called := false
	g.OnInvalidated(func(err error) {
		called = true
		assert.ErrorIs(t, err, ErrSessionInvalid)
	})
	assert.True(t, called)
}

func TestGuard_ExpiryTimer(t *testing.T) {
	conn := &fakeConn{}
	g := NewGuard(testCredential(50*time.Millisecond), zaptest.NewLogger(t))
	g.Bind(conn)

	require.NoError(t, g.Start(context.Background()))
	t.Cleanup(func() { _ = g.Stop() })

	require.Eventually(t, func() bool { return g.Valid() != nil }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(conn.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{ReasonExpired}, conn.calls())
}

func TestGuard_ValidChecksClock(t *testing.T) {
	now := time.Now()
	g := NewGuard(testCredential(time.Minute), nil, WithClock(func() time.Time { return now }))
	require.NoError(t, g.Valid())

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, g.Valid(), ErrSessionInvalid)
}

func TestGuard_StartExpired(t *testing.T) {
	conn := &fakeConn{}
	g := NewGuard(testCredential(-time.Second), nil)
	g.Bind(conn)

	assert.ErrorIs(t, g.Start(context.Background()), ErrSessionInvalid)
	assert.Equal(t, []string{ReasonExpired}, conn.calls())
}

func TestGuard_RevocationSource(t *testing.T) {
	src := newManualSource()
	conn := &fakeConn{}
	g := NewGuard(testCredential(time.Hour), zaptest.NewLogger(t), WithRevocationSource(src))
	g.Bind(conn)

	require.NoError(t, g.Start(context.Background()))
	<-src.started
	src.fire <- ReasonRevoked

	require.Eventually(t, func() bool { return g.Valid() != nil }, time.Second, 5*time.Millisecond)
	require.NoError(t, g.Stop())
	assert.Equal(t, []string{ReasonRevoked}, conn.calls())
}

func TestGuard_StopHaltsSources(t *testing.T) {
	src := newManualSource()
	g := NewGuard(testCredential(time.Hour), nil, WithRevocationSource(src))

	require.NoError(t, g.Start(context.Background()))
	<-src.started
	require.NoError(t, g.Stop())
	assert.NoError(t, g.Valid(), "stopping does not invalidate")
}

func TestGuard_FailingSourceDoesNotInvalidate(t *testing.T) {
	src := newManualSource()
	g := NewGuard(testCredential(time.Hour), zaptest.NewLogger(t),
		WithRevocationSource(failingSource{}),
		WithRevocationSource(src),
	)
	require.NoError(t, g.Start(context.Background()))
	<-src.started

	assert.NoError(t, g.Valid())
	assert.Error(t, g.Stop())
}

func TestGuard_ServerDisconnectReasons(t *testing.T) {
	tests := []struct {
		reason      string
		invalidates bool
	}{
		{protocol.ReasonSuperseded, true},
		{protocol.ReasonRevoked, true},
		{protocol.ReasonShutdown, false},
		{protocol.ReasonIdleTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			router := notify.NewRouter(zaptest.NewLogger(t))
			conn := &fakeConn{}
			g := NewGuard(testCredential(time.Hour), nil)
			g.Bind(conn)
			g.Watch(router)

			router.Emit(protocol.DisconnectNotif{Reason: tt.reason})

			if tt.invalidates {
				assert.ErrorIs(t, g.Valid(), ErrSessionInvalid)
			} else {
				assert.NoError(t, g.Valid())
			}
			assert.Empty(t, conn.calls(), "the lobby is already closing the connection")
		})
	}
}
