package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/iam"
)

// RevocationSource reports when a credential stops being valid. Watch blocks
// until ctx ends or revoke has been called; it calls revoke at most once.
type RevocationSource interface {
	Watch(ctx context.Context, cred Credential, revoke func(reason string)) error
}

// Revocation is the event the identity service publishes on logout or revoke.
// An empty TokenID revokes every token of UserID.
type Revocation struct {
	UserID  string `json:"user_id"`
	TokenID string `json:"token_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Matches reports whether the event applies to cred.
func (r Revocation) Matches(cred Credential) bool {
	if r.TokenID != "" {
		return r.TokenID == cred.TokenID
	}
	return r.UserID != "" && r.UserID == cred.UserID
}

func (r Revocation) reason() string {
	if r.Reason != "" {
		return r.Reason
	}
	if r.TokenID != "" {
		return ReasonRevoked
	}
	return ReasonLoggedOut
}

// DefaultRevocationChannel is the pub/sub channel used by the identity service.
const DefaultRevocationChannel = "iam:revocations"

// RedisRevocations listens for revocation events on a Redis channel.
type RedisRevocations struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

// NewRedisRevocations creates a Redis-backed revocation source.
func NewRedisRevocations(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisRevocations {
	if channel == "" {
		channel = DefaultRevocationChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRevocations{client: client, channel: channel, logger: logger}
}

func (r *RedisRevocations) Watch(ctx context.Context, cred Credential, revoke func(reason string)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Revocation
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("malformed revocation event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if ev.Matches(cred) {
				revoke(ev.reason())
				return nil
			}
		}
	}
}

// PublishRevocation announces ev on channel.
func PublishRevocation(ctx context.Context, client redis.UniversalClient, channel string, ev Revocation) error {
	if channel == "" {
		channel = DefaultRevocationChannel
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return client.Publish(ctx, channel, data).Err()
}

// Verifier checks a token against the identity service.
type Verifier interface {
	Verify(ctx context.Context, token string) (*iam.Identity, error)
}

// PollingRevocations periodically re-verifies the token over HTTP.
type PollingRevocations struct {
	verifier Verifier
	interval time.Duration
	logger   *zap.Logger
}

// NewPollingRevocations creates a polling revocation source.
func NewPollingRevocations(v Verifier, interval time.Duration, logger *zap.Logger) *PollingRevocations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollingRevocations{verifier: v, interval: interval, logger: logger}
}

func (p *PollingRevocations) Watch(ctx context.Context, cred Credential, revoke func(reason string)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, err := p.verifier.Verify(ctx, cred.Token)
			switch {
			case err == nil:
			case errors.Is(err, iam.ErrUnauthorized):
				revoke(ReasonRevoked)
				return nil
			case ctx.Err() != nil:
				return nil
			default:
				// Transient failures leave the session valid.
				p.logger.Warn("token verification failed", zap.Error(err))
			}
		}
	}
}
