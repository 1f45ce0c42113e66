package iam

import (
	"context"
	"encoding/json"
	"fmt"
)

// Verify asks the identity service whether token is still valid. A revoked or
// expired token yields an error matching ErrUnauthorized.
func (c *Client) Verify(ctx context.Context, token string) (*Identity, error) {
	body, err := c.doWithRetry(ctx, verifyPath, token)
	if err != nil {
		return nil, err
	}

	var id Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &id, nil
}

// Logout revokes token. Every live session bound to it is invalidated by the
// identity service's revocation broadcast.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.doWithRetry(ctx, logoutPath, token)
	return err
}
