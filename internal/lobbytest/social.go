package lobbytest

import (
	"maps"
	"slices"
	"time"

	"github.com/rickgao/lobby-client/internal/protocol"
)

func (s *Server) relation(a, b string) protocol.FriendshipStatus {
	return s.relations[a][b]
}

func (s *Server) setRelation(a, b string, status protocol.FriendshipStatus) {
	if status == protocol.NotFriend {
		delete(s.relations[a], b)
		return
	}
	if s.relations[a] == nil {
		s.relations[a] = make(map[string]protocol.FriendshipStatus)
	}
	s.relations[a][b] = status
}

func (s *Server) withRelation(userID string, status protocol.FriendshipStatus) []string {
	var out []string
	for id, st := range s.relations[userID] {
		if st == status {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func friendTarget(f protocol.Frame) (string, error) {
	var req protocol.FriendRequest
	if err := f.Decode(&req); err != nil || req.FriendID == "" {
		return "", protocol.ErrBadRequest
	}
	return req.FriendID, nil
}

func (s *Server) friendRequest(cn *conn, f protocol.Frame) (any, []delivery, error) {
	target, err := friendTarget(f)
	if err != nil {
		return nil, nil, err
	}
	if target == cn.userID {
		return nil, nil, protocol.ErrCannotFriendSelf
	}
	if s.relation(cn.userID, target) != protocol.NotFriend {
		return nil, nil, protocol.ErrFriendAlreadyExists
	}
	s.setRelation(cn.userID, target, protocol.Outgoing)
	s.setRelation(target, cn.userID, protocol.Incoming)
	return nil, s.pushTo([]string{target}, protocol.IncomingFriendRequest{FriendID: cn.userID}), nil
}

func (s *Server) friendAccept(cn *conn, f protocol.Frame) (any, []delivery, error) {
	target, err := friendTarget(f)
	if err != nil {
		return nil, nil, err
	}
	if s.relation(cn.userID, target) != protocol.Incoming {
		return nil, nil, protocol.ErrFriendRequestNotFound
	}
	s.setRelation(cn.userID, target, protocol.Friend)
	s.setRelation(target, cn.userID, protocol.Friend)
	return nil, s.pushTo([]string{target}, protocol.FriendRequestAccepted{FriendID: cn.userID}), nil
}

func (s *Server) friendReject(cn *conn, f protocol.Frame) (any, []delivery, error) {
	return s.dropRelation(cn, f, protocol.Incoming, protocol.ErrFriendRequestNotFound)
}

func (s *Server) friendCancel(cn *conn, f protocol.Frame) (any, []delivery, error) {
	return s.dropRelation(cn, f, protocol.Outgoing, protocol.ErrFriendRequestNotFound)
}

func (s *Server) unfriend(cn *conn, f protocol.Frame) (any, []delivery, error) {
	return s.dropRelation(cn, f, protocol.Friend, protocol.ErrNotFriend)
}

func (s *Server) dropRelation(cn *conn, f protocol.Frame, want protocol.FriendshipStatus, notFound error) (any, []delivery, error) {
	target, err := friendTarget(f)
	if err != nil {
		return nil, nil, err
	}
	if s.relation(cn.userID, target) != want {
		return nil, nil, notFound
	}
	s.setRelation(cn.userID, target, protocol.NotFriend)
	s.setRelation(target, cn.userID, protocol.NotFriend)
	return nil, nil, nil
}

func (s *Server) listFriends(status protocol.FriendshipStatus) handlerFunc {
	return func(cn *conn, _ protocol.Frame) (any, []delivery, error) {
		return protocol.FriendListResponse{UserIDs: s.withRelation(cn.userID, status)}, nil, nil
	}
}

func (s *Server) friendshipStatus(cn *conn, f protocol.Frame) (any, []delivery, error) {
	target, err := friendTarget(f)
	if err != nil {
		return nil, nil, err
	}
	return protocol.FriendshipStatusResponse{FriendID: target, Status: s.relation(cn.userID, target)}, nil, nil
}

// visibleStatus is userID's presence as friends see it.
func (s *Server) visibleStatus(userID string) protocol.FriendStatus {
	st, ok := s.presence[userID]
	if !ok {
		st = protocol.FriendStatus{UserID: userID}
	}
	if s.conns[userID] == nil || st.Availability == protocol.AvailabilityInvisible || st.Availability == "" {
		st.Availability = protocol.AvailabilityOffline
	}
	return st
}

func (s *Server) presenceChanged(userID string) []delivery {
	st := s.visibleStatus(userID)
	return s.pushTo(s.withRelation(userID, protocol.Friend), protocol.FriendsStatusChanged{
		UserID:       userID,
		Availability: st.Availability,
		Activity:     st.Activity,
		LastSeenAt:   st.LastSeenAt,
	})
}

func (s *Server) setUserStatus(cn *conn, f protocol.Frame) (any, []delivery, error) {
	var req protocol.SetUserStatusRequest
	if err := f.Decode(&req); err != nil {
		return nil, nil, protocol.ErrBadRequest
	}
	switch req.Availability {
	case protocol.AvailabilityOnline, protocol.AvailabilityBusy,
		protocol.AvailabilityInvisible, protocol.AvailabilityOffline:
	default:
		return nil, nil, protocol.ErrBadRequest
	}
	s.presence[cn.userID] = protocol.FriendStatus{
		UserID:       cn.userID,
		Availability: req.Availability,
		Activity:     req.Activity,
		LastSeenAt:   time.Now().UTC(),
	}
	return nil, s.presenceChanged(cn.userID), nil
}

func (s *Server) friendsStatus(cn *conn, _ protocol.Frame) (any, []delivery, error) {
	resp := protocol.FriendsStatusResponse{Friends: []protocol.FriendStatus{}}
	for _, id := range s.withRelation(cn.userID, protocol.Friend) {
		resp.Friends = append(resp.Friends, s.visibleStatus(id))
	}
	return resp, nil, nil
}

func (s *Server) personalChat(cn *conn, f protocol.Frame) (any, []delivery, error) {
	var req protocol.PersonalChatRequest
	if err := f.Decode(&req); err != nil || req.To == "" || req.Payload == "" {
		return nil, nil, protocol.ErrBadRequest
	}
	target := s.conns[req.To]
	if target == nil {
		return nil, nil, protocol.ErrUserOffline
	}
	return nil, []delivery{{to: target, push: protocol.PersonalChatReceived{
		From:       cn.userID,
		To:         req.To,
		Payload:    req.Payload,
		ReceivedAt: time.Now().UTC(),
	}}}, nil
}

func (s *Server) partyChat(cn *conn, f protocol.Frame) (any, []delivery, error) {
	var req protocol.PartyChatRequest
	if err := f.Decode(&req); err != nil || req.Payload == "" {
		return nil, nil, protocol.ErrBadRequest
	}
	p := s.partyOf(cn.userID)
	if p == nil {
		return nil, nil, protocol.ErrNotInParty
	}
	others := slices.DeleteFunc(slices.Clone(p.members), func(id string) bool { return id == cn.userID })
	return nil, s.pushTo(others, protocol.PartyChatReceived{
		From:       cn.userID,
		PartyID:    p.id,
		Payload:    req.Payload,
		ReceivedAt: time.Now().UTC(),
	}), nil
}

func (s *Server) offlineNotifications(cn *conn, _ protocol.Frame) (any, []delivery, error) {
	queued := s.offline[cn.userID]
	delete(s.offline, cn.userID)
	out := make([]delivery, 0, len(queued))
	for _, n := range queued {
		out = append(out, delivery{to: cn, push: n})
	}
	return protocol.OfflineNotificationResponse{Count: len(queued)}, out, nil
}

func (s *Server) registerHandlers() {
	s.handlers = map[string]handlerFunc{
		protocol.TypePartyCreateRequest:         s.partyCreate,
		protocol.TypePartyInviteRequest:         s.partyInvite,
		protocol.TypePartyJoinRequest:           s.partyJoin,
		protocol.TypePartyLeaveRequest:          s.partyLeave,
		protocol.TypePartyKickRequest:           s.partyKick,
		protocol.TypePartyInfoRequest:           s.partyInfo,
		protocol.TypeRequestFriendsRequest:      s.friendRequest,
		protocol.TypeAcceptFriendsRequest:       s.friendAccept,
		protocol.TypeRejectFriendsRequest:       s.friendReject,
		protocol.TypeCancelFriendsRequest:       s.friendCancel,
		protocol.TypeUnfriendRequest:            s.unfriend,
		protocol.TypeListIncomingFriendsRequest: s.listFriends(protocol.Incoming),
		protocol.TypeListOutgoingFriendsRequest: s.listFriends(protocol.Outgoing),
		protocol.TypeListOfFriendsRequest:       s.listFriends(protocol.Friend),
		protocol.TypeGetFriendshipStatusRequest: s.friendshipStatus,
		protocol.TypeSetUserStatusRequest:       s.setUserStatus,
		protocol.TypeFriendsStatusRequest:       s.friendsStatus,
		protocol.TypePersonalChatRequest:        s.personalChat,
		protocol.TypePartyChatRequest:           s.partyChat,
		protocol.TypeOfflineNotificationRequest: s.offlineNotifications,
		protocol.TypeStartMatchmakingRequest:    s.startMatchmaking,
		protocol.TypeCancelMatchmakingRequest:   s.cancelMatchmaking,
		protocol.TypeSetReadyConsentRequest:     s.readyConsent,
	}
}

// Users returns every user id the server has seen connect, sorted.
func (s *Server) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.presence))
}
