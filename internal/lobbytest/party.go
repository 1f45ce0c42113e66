package lobbytest

import (
	"slices"

	"github.com/google/uuid"

	"github.com/rickgao/lobby-client/internal/protocol"
)

type partyState struct {
	id       string
	leader   string
	token    string
	members  []string
	invitees []string
}

func (p *partyState) info() protocol.PartyInfo {
	return protocol.PartyInfo{
		PartyID:         p.id,
		LeaderID:        p.leader,
		Members:         slices.Clone(p.members),
		Invitees:        slices.Clone(p.invitees),
		InvitationToken: p.token,
	}
}

func (s *Server) partyOf(userID string) *partyState {
	return s.parties[s.memberOf[userID]]
}

func (s *Server) partyCreate(cn *conn, _ protocol.Frame) (any, []delivery, error) {
	if s.partyOf(cn.userID) != nil {
		return nil, nil, protocol.ErrAlreadyInParty
	}
	p := &partyState{
		id:      uuid.NewString(),
		leader:  cn.userID,
		token:   uuid.NewString(),
		members: []string{cn.userID},
	}
	s.parties[p.id] = p
	s.memberOf[cn.userID] = p.id
	return p.info(), nil, nil
}

func (s *Server) partyInvite(cn *conn, f protocol.Frame) (any, []delivery, error) {
	var req protocol.PartyInviteRequest
	if err := f.Decode(&req); err != nil || req.FriendID == "" {
		return nil, nil, protocol.ErrBadRequest
	}
	p := s.partyOf(cn.userID)
	if p == nil {
		return nil, nil, protocol.ErrNotInParty
	}
	target := s.conns[req.FriendID]
	if target == nil {
		return nil, nil, protocol.ErrUserOffline
	}
	if !slices.Contains(p.invitees, req.FriendID) {
		p.invitees = append(p.invitees, req.FriendID)
	}
	return nil, []delivery{{to: target, push: protocol.InvitedToParty{
		From:            cn.userID,
		PartyID:         p.id,
		InvitationToken: p.token,
	}}}, nil
}

func (s *Server) partyJoin(cn *conn, f protocol.Frame) (any, []delivery, error) {
	var req protocol.PartyJoinRequest
	if err := f.Decode(&req); err != nil {
		return nil, nil, protocol.ErrBadRequest
	}
	if s.partyOf(cn.userID) != nil {
		return nil, nil, protocol.ErrAlreadyInParty
	}
	p := s.parties[req.PartyID]
	if p == nil {
		return nil, nil, protocol.ErrPartyNotFound
	}
	if req.InvitationToken != p.token || !slices.Contains(p.invitees, cn.userID) {
		return nil, nil, protocol.ErrInvalidInvitationToken
	}

	existing := slices.Clone(p.members)
	p.invitees = slices.DeleteFunc(p.invitees, func(id string) bool { return id == cn.userID })
	p.members = append(p.members, cn.userID)
	s.memberOf[cn.userID] = p.id

	push := protocol.PartyJoined{PartyID: p.id, UserID: cn.userID, Members: slices.Clone(p.members)}
	return p.info(), s.pushTo(existing, push), nil
}

func (s *Server) partyLeave(cn *conn, _ protocol.Frame) (any, []delivery, error) {
	p := s.partyOf(cn.userID)
	if p == nil {
		return nil, nil, protocol.ErrNotInParty
	}
	return nil, s.removeMember(p, cn.userID), nil
}

func (s *Server) partyKick(cn *conn, f protocol.Frame) (any, []delivery, error) {
	var req protocol.PartyKickRequest
	if err := f.Decode(&req); err != nil || req.MemberID == "" {
		return nil, nil, protocol.ErrBadRequest
	}
	p := s.partyOf(cn.userID)
	switch {
	case p == nil:
		return nil, nil, protocol.ErrNotInParty
	case p.leader != cn.userID:
		return nil, nil, protocol.ErrNotPartyLeader
	case req.MemberID == cn.userID || !slices.Contains(p.members, req.MemberID):
		return nil, nil, protocol.ErrMemberNotInParty
	}

	out := s.removeMember(p, req.MemberID)
	out = append(out, s.pushTo([]string{req.MemberID}, protocol.KickedFromParty{
		LeaderID: p.leader,
		PartyID:  p.id,
		UserID:   req.MemberID,
	})...)
	return protocol.PartyKickResponse{PartyID: p.id, MemberID: req.MemberID}, out, nil
}

func (s *Server) partyInfo(cn *conn, _ protocol.Frame) (any, []delivery, error) {
	p := s.partyOf(cn.userID)
	if p == nil {
		return nil, nil, protocol.ErrNotInParty
	}
	return p.info(), nil, nil
}

// removeMember drops userID from p, promoting the next member when the
// leader leaves, and tells the remaining members.
func (s *Server) removeMember(p *partyState, userID string) []delivery {
	p.members = slices.DeleteFunc(p.members, func(id string) bool { return id == userID })
	delete(s.memberOf, userID)
	if len(p.members) == 0 {
		delete(s.parties, p.id)
		return nil
	}
	if p.leader == userID {
		p.leader = p.members[0]
	}
	return s.pushTo(p.members, protocol.PartyLeft{PartyID: p.id, UserID: userID, LeaderID: p.leader})
}
