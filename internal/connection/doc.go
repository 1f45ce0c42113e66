// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single lobby WebSocket and its handshake
//   - Runs the Disconnected → Connecting → Connected → Disconnecting state machine
//   - Sends WebSocket pings and treats a missing pong as connection loss
//   - Processes inbound frames in receive order: responses to the Request
//     Dispatcher, pushes to the Notification Router
//   - Never reconnects on its own; recovery is an explicit Connect
package connection
