// Package dispatch implements the Request Dispatcher.
//
// The dispatcher:
//   - Allocates correlation ids (monotonic, never reused while outstanding)
//   - Tracks pending requests and their optional deadlines
//   - Matches response frames to the waiting callback, exactly once
//   - Fails every outstanding request when the connection drops
//
// Nothing is retried; callers re-issue explicitly.
package dispatch
