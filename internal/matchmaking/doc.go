// Package matchmaking tracks matchmaking tickets through the ready consensus.
//
// Ticket lifecycle per channel:
//
//	Start ──► Searching ──matchmakingNotif(done)──► Found
//	Found ──ConfirmReady──► ReadyPending ──own setReadyConsentNotif──► Confirmed
//	Searching/Found ──Cancel or matchmakingNotif(cancel)──► Canceled
//	Confirmed ──dsNotif(ready or busy)──► Assigned
//	any ──rematchmakingNotif──► Rematching (banned) or Searching (re-queued)
//
// Canceled, Assigned and Rematching tickets free the channel for a new Start;
// a Rematching ticket refuses one locally until its ban has run out.
//
// Every matched member receives a ready confirmation for every confirming
// member, so a match of N members yields N confirmations per connection.
package matchmaking
