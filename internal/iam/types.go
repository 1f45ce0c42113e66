package iam

import "time"

// Identity is the verified claim set returned by /iam/v1/verify.
type Identity struct {
	UserID    string    `json:"user_id"`
	Namespace string    `json:"namespace"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

type errorBody struct {
	Message string `json:"message"`
}

const (
	verifyPath = "/iam/v1/verify"
	logoutPath = "/iam/v1/logout"
)
