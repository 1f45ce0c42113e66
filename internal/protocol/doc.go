// Package protocol implements the Frame Codec for the lobby WebSocket channel.
//
// Every WebSocket text message carries one JSON frame:
//   - Request:  {"type":"partyCreateRequest","id":7,"namespace":"acme","token":"...","payload":{...}}
//   - Response: {"type":"partyCreateResponse","id":7,"code":0,"payload":{...}}
//   - Push:     {"type":"partyGetInvitedNotif","namespace":"acme","payload":{...}}
//
// Frames carrying a non-zero id are responses; frames without one are pushes.
package protocol
