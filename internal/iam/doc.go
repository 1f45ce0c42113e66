// Package iam provides the HTTP client for the identity service.
//
// Endpoints:
//   - POST /iam/v1/verify  checks that an access token is still accepted
//   - POST /iam/v1/logout  revokes the token and broadcasts the revocation
package iam
