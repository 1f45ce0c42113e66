package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rickgao/lobby-client/internal/iam"
)

func TestRevocation_Matches(t *testing.T) {
	cred := Credential{UserID: "user-1", TokenID: "jti-1"}

	tests := []struct {
		name   string
		ev     Revocation
		match  bool
		reason string
	}{
		{"same token", Revocation{UserID: "user-1", TokenID: "jti-1"}, true, ReasonRevoked},
		{"other token same user", Revocation{UserID: "user-1", TokenID: "jti-2"}, false, ReasonRevoked},
		{"user-wide logout", Revocation{UserID: "user-1"}, true, ReasonLoggedOut},
		{"other user", Revocation{UserID: "user-2"}, false, ReasonLoggedOut},
		{"explicit reason", Revocation{UserID: "user-1", Reason: "banned"}, true, "banned"},
		{"empty", Revocation{}, false, ReasonLoggedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, tt.ev.Matches(cred))
			assert.Equal(t, tt.reason, tt.ev.reason())
		})
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func waitSubscribed(t *testing.T, mr *miniredis.Miniredis, channel string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] > 0
	}, time.Second, 5*time.Millisecond)
}

func TestRedisRevocations_Logout(t *testing.T) {
	mr, client := newTestRedis(t)
	src := NewRedisRevocations(client, "", zaptest.NewLogger(t))
	cred := Credential{UserID: "user-1", TokenID: "jti-1"}

	reasons := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- src.Watch(context.Background(), cred, func(r string) { reasons <- r })
	}()
	waitSubscribed(t, mr, DefaultRevocationChannel)

	ctx := context.Background()
	// Unrelated and malformed events are skipped.
	require.NoError(t, PublishRevocation(ctx, client, "", Revocation{UserID: "user-2"}))
	require.NoError(t, client.Publish(ctx, DefaultRevocationChannel, "{broken").Err())
	require.NoError(t, PublishRevocation(ctx, client, "", Revocation{UserID: "user-1"}))

	select {
	case r := <-reasons:
		assert.Equal(t, ReasonLoggedOut, r)
	case <-time.After(2 * time.Second):
		t.Fatal("revocation not observed")
	}
	assert.NoError(t, <-done)
}

func TestRedisRevocations_CancelStopsWatch(t *testing.T) {
	mr, client := newTestRedis(t)
	src := NewRedisRevocations(client, "custom", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- src.Watch(ctx, Credential{UserID: "user-1"}, func(string) {
			t.Error("unexpected revoke")
		})
	}()
	waitSubscribed(t, mr, "custom")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestRedisRevocations_InvalidatesGuard(t *testing.T) {
	mr, client := newTestRedis(t)
	cred := Credential{UserID: "user-1", TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}
	conn := &fakeConn{}
	g := NewGuard(cred, zaptest.NewLogger(t),
		WithRevocationSource(NewRedisRevocations(client, "", nil)),
	)
	g.Bind(conn)
	require.NoError(t, g.Start(context.Background()))
	t.Cleanup(func() { _ = g.Stop() })

	waitSubscribed(t, mr, DefaultRevocationChannel)
	require.NoError(t, PublishRevocation(context.Background(), client, "", Revocation{UserID: "user-1", TokenID: "jti-1"}))

	require.Eventually(t, func() bool { return g.Valid() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{ReasonRevoked}, conn.calls())
}

type fakeVerifier struct {
	calls atomic.Int32
	fail  func(n int32) error
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*iam.Identity, error) {
	n := f.calls.Add(1)
	if err := f.fail(n); err != nil {
		return nil, err
	}
	return &iam.Identity{UserID: "user-1"}, nil
}

func TestPollingRevocations(t *testing.T) {
	v := &fakeVerifier{fail: func(n int32) error {
		switch {
		case n == 1:
			return errors.New("connection refused")
		case n >= 3:
			return &iam.APIError{StatusCode: 401, Message: "revoked"}
		}
		return nil
	}}
	src := NewPollingRevocations(v, 5*time.Millisecond, zaptest.NewLogger(t))

	var reason string
	err := src.Watch(context.Background(), Credential{Token: "tok"}, func(r string) { reason = r })
	require.NoError(t, err)
	assert.Equal(t, ReasonRevoked, reason)
	assert.Equal(t, int32(3), v.calls.Load(), "transient errors keep polling")
}

func TestPollingRevocations_Cancel(t *testing.T) {
	v := &fakeVerifier{fail: func(int32) error { return nil }}
	src := NewPollingRevocations(v, 5*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := src.Watch(ctx, Credential{Token: "tok"}, func(string) { t.Error("unexpected revoke") })
	assert.NoError(t, err)
	assert.Positive(t, v.calls.Load())
}
