package protocol

import "time"

// Push is a decoded unsolicited frame. Each concrete type names the wire tag
// it is decoded from.
type Push interface {
	PushType() string
}

// PersonalChatReceived is a direct message addressed to the caller.
type PersonalChatReceived struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// PartyChatReceived is a message sent to the caller's party.
type PartyChatReceived struct {
	From       string    `json:"from"`
	PartyID    string    `json:"partyId"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// InvitedToParty carries the token needed to join the inviting party.
type InvitedToParty struct {
	From            string `json:"from"`
	PartyID         string `json:"partyId"`
	InvitationToken string `json:"invitationToken"`
}

// KickedFromParty is delivered to the kicked member only.
type KickedFromParty struct {
	LeaderID string `json:"leaderId"`
	PartyID  string `json:"partyId"`
	UserID   string `json:"userId"`
}

// PartyJoined echoes a new member and the resulting roster to existing members.
type PartyJoined struct {
	PartyID string   `json:"partyId"`
	UserID  string   `json:"userId"`
	Members []string `json:"members"`
}

// PartyLeft reports that a member left; LeaderID is the leader afterwards.
type PartyLeft struct {
	PartyID  string `json:"partyId"`
	UserID   string `json:"userId"`
	LeaderID string `json:"leaderId"`
}

// FriendsStatusChanged reports a friend's presence update.
type FriendsStatusChanged struct {
	UserID       string    `json:"userId"`
	Availability string    `json:"availability"`
	Activity     string    `json:"activity"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

// IncomingFriendRequest is delivered to the target of a friend request.
type IncomingFriendRequest struct {
	FriendID string `json:"friendId"`
}

// FriendRequestAccepted is delivered to the requester once accepted.
type FriendRequestAccepted struct {
	FriendID string `json:"friendId"`
}

// Matchmaking statuses reported by MatchmakingCompleted.
const (
	MatchmakingDone    = "done"
	MatchmakingCancel  = "cancel"
	MatchmakingTimeout = "timeout"
)

// MatchmakingCompleted is delivered to every member of every matched party.
type MatchmakingCompleted struct {
	Status  string `json:"status"`
	MatchID string `json:"matchId"`
	Channel string `json:"channel"`
}

// ReadyForMatchConfirmed is broadcast to all matched members per confirmation.
type ReadyForMatchConfirmed struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
}

// RematchmakingNotif is delivered to members who did not confirm in time.
type RematchmakingNotif struct {
	Channel     string `json:"channel"`
	BanDuration int    `json:"banDuration"`
}

// Dedicated server statuses reported by DSUpdated.
const (
	DSCreating = "creating"
	DSReady    = "ready"
	DSBusy     = "busy"
)

// DSUpdated reports the dedicated server assigned to a match.
type DSUpdated struct {
	MatchID string `json:"matchId"`
	Status  string `json:"status"`
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	PodName string `json:"podName"`
}

// GenericNotification is a free-form notification, including ones drained
// by offlineNotificationRequest.
type GenericNotification struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Topic   string    `json:"topic"`
	Payload string    `json:"payload"`
	SentAt  time.Time `json:"sentAt"`
}

// Disconnect reasons sent by the server.
const (
	ReasonSuperseded  = "superseded"
	ReasonRevoked     = "revoked"
	ReasonIdleTimeout = "idle_timeout"
	ReasonShutdown    = "shutdown"
)

// DisconnectNotif announces server-initiated closure.
type DisconnectNotif struct {
	ConnectionID string `json:"connectionId"`
	Reason       string `json:"reason"`
	Message      string `json:"message,omitempty"`
}

// Connected fires once the handshake is acknowledged.
type Connected struct {
	UserID       string
	ConnectionID string
}

// Disconnecting fires before the socket is torn down when a reason is known.
type Disconnecting struct {
	Reason          string
	ServerInitiated bool
}

// Disconnected is the terminal lifecycle signal. Err is nil for a clean
// caller-initiated disconnect.
type Disconnected struct {
	Reason string
	Err    error
}

func (PersonalChatReceived) PushType() string { return TypePersonalChatNotif }
func (PartyChatReceived) PushType() string { return TypePartyChatNotif }
func (InvitedToParty) PushType() string { return TypePartyGetInvitedNotif }
func (KickedFromParty) PushType() string { return TypePartyKickNotif }
func (PartyJoined) PushType() string { return TypePartyJoinNotif }
func (PartyLeft) PushType() string { return TypePartyLeaveNotif }
func (FriendsStatusChanged) PushType() string { return TypeUserStatusNotif }
func (IncomingFriendRequest) PushType() string { return TypeRequestFriendsNotif }
func (FriendRequestAccepted) PushType() string { return TypeAcceptFriendsNotif }
func (MatchmakingCompleted) PushType() string { return TypeMatchmakingNotif }
func (ReadyForMatchConfirmed) PushType() string { return TypeSetReadyConsentNotif }
func (RematchmakingNotif) PushType() string { return TypeRematchmakingNotif }
func (DSUpdated) PushType() string { return TypeDSNotif }
func (GenericNotification) PushType() string { return TypeMessageNotif }
func (DisconnectNotif) PushType() string { return TypeDisconnectNotif }
func (Connected) PushType() string { return TypeConnected }
func (Disconnecting) PushType() string { return TypeDisconnecting }
func (Disconnected) PushType() string { return TypeDisconnected }
