package notify

import "github.com/rickgao/lobby-client/internal/protocol"

type decoder func(protocol.Frame) (protocol.Push, error)

// decoders is the dispatch table from wire tag to push variant.
var decoders = map[string]decoder{
	protocol.TypePersonalChatNotif:    decodeAs[protocol.PersonalChatReceived],
	protocol.TypePartyChatNotif:       decodeAs[protocol.PartyChatReceived],
	protocol.TypePartyGetInvitedNotif: decodeAs[protocol.InvitedToParty],
	protocol.TypePartyKickNotif:       decodeAs[protocol.KickedFromParty],
	protocol.TypePartyJoinNotif:       decodeAs[protocol.PartyJoined],
	protocol.TypePartyLeaveNotif:      decodeAs[protocol.PartyLeft],
	protocol.TypeUserStatusNotif:      decodeAs[protocol.FriendsStatusChanged],
	protocol.TypeRequestFriendsNotif:  decodeAs[protocol.IncomingFriendRequest],
	protocol.TypeAcceptFriendsNotif:   decodeAs[protocol.FriendRequestAccepted],
	protocol.TypeMatchmakingNotif:     decodeAs[protocol.MatchmakingCompleted],
	protocol.TypeSetReadyConsentNotif: decodeAs[protocol.ReadyForMatchConfirmed],
	protocol.TypeRematchmakingNotif:   decodeAs[protocol.RematchmakingNotif],
	protocol.TypeDSNotif:              decodeAs[protocol.DSUpdated],
	protocol.TypeMessageNotif:         decodeAs[protocol.GenericNotification],
	protocol.TypeDisconnectNotif:      decodeAs[protocol.DisconnectNotif],
}

func decodeAs[T protocol.Push](f protocol.Frame) (protocol.Push, error) {
	var v T
	if err := f.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Known reports whether msgType is a routable push tag.
func Known(msgType string) bool {
	_, ok := decoders[msgType]
	return ok
}
