package protocol

import "strings"

// Handshake.
const (
	TypeConnectRequest  = "connectRequest"
	TypeConnectResponse = "connectResponse"
)

// Party.
const (
	TypePartyCreateRequest = "partyCreateRequest"
	TypePartyInviteRequest = "partyInviteRequest"
	TypePartyJoinRequest   = "partyJoinRequest"
	TypePartyLeaveRequest  = "partyLeaveRequest"
	TypePartyKickRequest   = "partyKickRequest"
	TypePartyInfoRequest   = "partyInfoRequest"
)

// Friends.
const (
	TypeRequestFriendsRequest      = "requestFriendsRequest"
	TypeAcceptFriendsRequest       = "acceptFriendsRequest"
	TypeRejectFriendsRequest       = "rejectFriendsRequest"
	TypeCancelFriendsRequest       = "cancelFriendsRequest"
	TypeUnfriendRequest            = "unfriendRequest"
	TypeListIncomingFriendsRequest = "listIncomingFriendsRequest"
	TypeListOutgoingFriendsRequest = "listOutgoingFriendsRequest"
	TypeListOfFriendsRequest       = "listOfFriendsRequest"
	TypeGetFriendshipStatusRequest = "getFriendshipStatusRequest"
)

// Presence, chat and offline notifications.
const (
	TypeSetUserStatusRequest       = "setUserStatusRequest"
	TypeFriendsStatusRequest       = "friendsStatusRequest"
	TypePersonalChatRequest        = "personalChatRequest"
	TypePartyChatRequest           = "partyChatRequest"
	TypeOfflineNotificationRequest = "offlineNotificationRequest"
)

// Matchmaking.
const (
	TypeStartMatchmakingRequest  = "startMatchmakingRequest"
	TypeCancelMatchmakingRequest = "cancelMatchmakingRequest"
	TypeSetReadyConsentRequest   = "setReadyConsentRequest"
)

// Pushes.
const (
	TypePersonalChatNotif    = "personalChatNotif"
	TypePartyChatNotif       = "partyChatNotif"
	TypePartyGetInvitedNotif = "partyGetInvitedNotif"
	TypePartyKickNotif       = "partyKickNotif"
	TypePartyJoinNotif       = "partyJoinNotif"
	TypePartyLeaveNotif      = "partyLeaveNotif"
	TypeUserStatusNotif      = "userStatusNotif"
	TypeRequestFriendsNotif  = "requestFriendsNotif"
	TypeAcceptFriendsNotif   = "acceptFriendsNotif"
	TypeMatchmakingNotif     = "matchmakingNotif"
	TypeSetReadyConsentNotif = "setReadyConsentNotif"
	TypeRematchmakingNotif   = "rematchmakingNotif"
	TypeDSNotif              = "dsNotif"
	TypeMessageNotif         = "messageNotif"
	TypeDisconnectNotif      = "disconnectNotif"
)

// Lifecycle signals are emitted locally by the connection manager and never
// appear on the wire.
const (
	TypeConnected     = "lifecycle.connected"
	TypeDisconnecting = "lifecycle.disconnecting"
	TypeDisconnected  = "lifecycle.disconnected"
)

// ResponseType maps a request type to the type of its response.
func ResponseType(requestType string) string {
	return strings.TrimSuffix(requestType, "Request") + "Response"
}

// RequestType maps a response type back to its request type.
func RequestType(responseType string) string {
	return strings.TrimSuffix(responseType, "Response") + "Request"
}
