// Package session implements the Session Guard.
//
// A Guard ties one access token to one lobby connection. The session becomes
// invalid when the token expires, when a revocation source reports it revoked
// or logged out, when the lobby supersedes or revokes the connection, or on a
// local Invalidate. Invalidation is terminal: the connection is closed and
// every later request is refused before any I/O.
package session
