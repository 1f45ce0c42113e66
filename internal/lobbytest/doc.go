// Package lobbytest provides an in-process lobby and identity service for
// tests and local development.
//
// The server speaks the lobby frame protocol over gorilla WebSockets behind a
// gin router, issues HMAC-signed access tokens, and keeps party, friendship,
// presence, chat, matchmaking and offline-notification state in memory. It
// is a test double: state is lost on Close and nothing is persisted.
package lobbytest
