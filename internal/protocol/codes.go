package protocol

import "fmt"

// Response codes. CodeOK is the only success value; everything else is a
// protocol error surfaced verbatim to the caller.
const (
	CodeOK = 0

	CodeUnauthorized        = 11001
	CodeDuplicateConnection = 11002
	CodeBadRequest          = 11003
	CodeNotFound            = 11004

	CodeAlreadyInParty         = 11130
	CodeNotInParty             = 11131
	CodeInvalidInvitationToken = 11132
	CodeNotPartyLeader         = 11133
	CodePartyNotFound          = 11134
	CodeMemberNotInParty       = 11135

	CodeFriendAlreadyExists   = 11230
	CodeFriendRequestNotFound = 11231
	CodeNotFriend             = 11232
	CodeCannotFriendSelf      = 11233

	CodeUserOffline = 11330

	CodeTicketExists      = 11430
	CodeTicketNotFound    = 11431
	CodeMatchNotFound     = 11432
	CodeMatchmakingBanned = 11433
)

// ProtocolError is a non-success response reported by the lobby service.
type ProtocolError struct {
	Type    string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("lobby %s: code %d", e.Type, e.Code)
	}
	return fmt.Sprintf("lobby %s: code %d: %s", e.Type, e.Code, e.Message)
}

// Is matches any *ProtocolError carrying the same code, so callers can write
// errors.Is(err, protocol.ErrAlreadyInParty).
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrUnauthorized           = &ProtocolError{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrDuplicateConnection    = &ProtocolError{Code: CodeDuplicateConnection, Message: "duplicate connection"}
	ErrBadRequest             = &ProtocolError{Code: CodeBadRequest, Message: "bad request"}
	ErrNotFound               = &ProtocolError{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyInParty         = &ProtocolError{Code: CodeAlreadyInParty, Message: "already in a party"}
	ErrNotInParty             = &ProtocolError{Code: CodeNotInParty, Message: "not in a party"}
	ErrInvalidInvitationToken = &ProtocolError{Code: CodeInvalidInvitationToken, Message: "invalid invitation token"}
	ErrNotPartyLeader         = &ProtocolError{Code: CodeNotPartyLeader, Message: "not the party leader"}
	ErrPartyNotFound          = &ProtocolError{Code: CodePartyNotFound, Message: "party not found"}
	ErrMemberNotInParty       = &ProtocolError{Code: CodeMemberNotInParty, Message: "member not in party"}
	ErrFriendAlreadyExists    = &ProtocolError{Code: CodeFriendAlreadyExists, Message: "already friends or request pending"}
	ErrFriendRequestNotFound  = &ProtocolError{Code: CodeFriendRequestNotFound, Message: "friend request not found"}
	ErrNotFriend              = &ProtocolError{Code: CodeNotFriend, Message: "not a friend"}
	ErrCannotFriendSelf       = &ProtocolError{Code: CodeCannotFriendSelf, Message: "cannot befriend yourself"}
	ErrUserOffline            = &ProtocolError{Code: CodeUserOffline, Message: "user offline"}
	ErrTicketExists           = &ProtocolError{Code: CodeTicketExists, Message: "matchmaking ticket already active"}
	ErrTicketNotFound         = &ProtocolError{Code: CodeTicketNotFound, Message: "matchmaking ticket not found"}
	ErrMatchNotFound          = &ProtocolError{Code: CodeMatchNotFound, Message: "match not found"}
	ErrMatchmakingBanned      = &ProtocolError{Code: CodeMatchmakingBanned, Message: "banned from matchmaking"}
)

// NewError builds a protocol error for responses generated by a peer.
func NewError(msgType string, sentinel *ProtocolError) *ProtocolError {
	return &ProtocolError{Type: msgType, Code: sentinel.Code, Message: sentinel.Message}
}
