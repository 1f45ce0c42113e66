package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential is returned for tokens that cannot be bound to a session.
var ErrInvalidCredential = errors.New("invalid credential")

// Credential is an access token and the claims the client relies on. The
// signature is checked by the lobby and identity services, not here.
type Credential struct {
	Token     string
	UserID    string
	Namespace string
	TokenID   string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

type lobbyClaims struct {
	Namespace string `json:"namespace"`
	jwt.RegisteredClaims
}

// ParseCredential extracts the session claims from a JWT access token.
func ParseCredential(token string) (Credential, error) {
	if token == "" {
		return Credential{}, fmt.Errorf("%w: empty token", ErrInvalidCredential)
	}

	var claims lobbyClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return Credential{}, fmt.Errorf("%w: missing sub claim", ErrInvalidCredential)
	}

	cred := Credential{
		Token:     token,
		UserID:    claims.Subject,
		Namespace: claims.Namespace,
		TokenID:   claims.ID,
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred, nil
}

// Expired reports whether the token is past its exp claim at now.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
