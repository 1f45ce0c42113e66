package protocol

import "time"

// ConnectRequest opens a lobby session; the credential travels in the frame.
type ConnectRequest struct {
	ClientID string `json:"clientId"`
	Version  string `json:"version,omitempty"`
}

// ConnectResponse acknowledges the handshake.
type ConnectResponse struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

// PartyInfo is the roster returned by create, join and info requests.
type PartyInfo struct {
	PartyID         string   `json:"partyId"`
	LeaderID        string   `json:"leaderId"`
	Members         []string `json:"members"`
	Invitees        []string `json:"invitees,omitempty"`
	InvitationToken string   `json:"invitationToken,omitempty"`
}

// PartyInviteRequest invites a user into the caller's party.
type PartyInviteRequest struct {
	FriendID string `json:"friendId"`
}

// PartyJoinRequest joins a party using the token delivered by an invitation.
type PartyJoinRequest struct {
	PartyID         string `json:"partyId"`
	InvitationToken string `json:"invitationToken"`
}

// PartyKickRequest removes a member from the caller's party.
type PartyKickRequest struct {
	MemberID string `json:"memberId"`
}

// PartyKickResponse confirms a kick.
type PartyKickResponse struct {
	PartyID  string `json:"partyId"`
	MemberID string `json:"memberId"`
}

// FriendshipStatus is the relation between the caller and another user.
type FriendshipStatus int

const (
	NotFriend FriendshipStatus = iota
	Outgoing
	Incoming
	Friend
)

func (s FriendshipStatus) String() string {
	switch s {
	case NotFriend:
		return "not_friend"
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	case Friend:
		return "friend"
	default:
		return "unknown"
	}
}

// FriendRequest targets another user for friend operations.
type FriendRequest struct {
	FriendID string `json:"friendId"`
}

// FriendListResponse lists user ids for incoming, outgoing and friends lists.
type FriendListResponse struct {
	UserIDs []string `json:"userIds"`
}

// FriendshipStatusResponse answers getFriendshipStatusRequest.
type FriendshipStatusResponse struct {
	FriendID string           `json:"friendId"`
	Status   FriendshipStatus `json:"status"`
}

// Availability values used by presence.
const (
	AvailabilityOffline   = "offline"
	AvailabilityOnline    = "online"
	AvailabilityBusy      = "busy"
	AvailabilityInvisible = "invisible"
)

// SetUserStatusRequest publishes the caller's presence.
type SetUserStatusRequest struct {
	Availability string `json:"availability"`
	Activity     string `json:"activity"`
}

// FriendStatus is one friend's presence.
type FriendStatus struct {
	UserID       string    `json:"userId"`
	Availability string    `json:"availability"`
	Activity     string    `json:"activity"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

// FriendsStatusResponse answers friendsStatusRequest.
type FriendsStatusResponse struct {
	Friends []FriendStatus `json:"friends"`
}

// PersonalChatRequest sends a direct message.
type PersonalChatRequest struct {
	To      string `json:"to"`
	Payload string `json:"payload"`
}

// PartyChatRequest sends a message to every member of the caller's party.
type PartyChatRequest struct {
	Payload string `json:"payload"`
}

// StartMatchmakingRequest enqueues a ticket in a channel.
type StartMatchmakingRequest struct {
	Channel    string         `json:"channel"`
	ServerName string         `json:"serverName,omitempty"`
	Latencies  map[string]int `json:"latencies,omitempty"`
}

// CancelMatchmakingRequest removes a still-searching ticket.
type CancelMatchmakingRequest struct {
	Channel string `json:"channel"`
}

// ReadyConsentRequest confirms readiness for a found match.
type ReadyConsentRequest struct {
	MatchID string `json:"matchId"`
}

// OfflineNotificationResponse reports how many queued notifications follow
// as messageNotif pushes.
type OfflineNotificationResponse struct {
	Count int `json:"count"`
}
