// Package party tracks the caller's party membership.
//
// The tracker is updated by the outcome of its own requests and by party
// pushes. The server is authoritative; the local view is what the caller has
// observed so far.
package party

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/notify"
	"github.com/rickgao/lobby-client/internal/protocol"
)

// Requester issues one correlated request.
type Requester interface {
	Call(ctx context.Context, msgType string, payload any) (protocol.Frame, error)
}

// Party is a snapshot of the current party.
type Party struct {
	PartyID         string
	LeaderID        string
	InvitationToken string
	Members         []string
	Invitees        []string
}

// Invitation is a pending invite received from another user.
type Invitation struct {
	From            string
	PartyID         string
	InvitationToken string
}

// Tracker is the client-side view of party membership.
type Tracker struct {
	req    Requester
	logger *zap.Logger

	mu          sync.Mutex
	party       *Party
	invitations map[string]Invitation
	subs        []*notify.Subscription
}

// NewTracker creates a tracker and subscribes it to party pushes.
func NewTracker(req Requester, router *notify.Router, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		req:         req,
		logger:      logger.Named("party"),
		invitations: make(map[string]Invitation),
	}
	t.subs = []*notify.Subscription{
		notify.On(router, t.onInvited),
		notify.On(router, t.onJoined),
		notify.On(router, t.onLeft),
		notify.On(router, t.onKicked),
	}
	return t
}

// Close detaches the tracker from the router.
func (t *Tracker) Close() {
	for _, sub := range t.subs {
		sub.Unsubscribe()
	}
}

// Current returns a copy of the current party.
func (t *Tracker) Current() (Party, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.party == nil {
		return Party{}, false
	}
	return t.party.clone(), true
}

// Invitations returns pending invitations.
func (t *Tracker) Invitations() []Invitation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Invitation, 0, len(t.invitations))
	for _, inv := range t.invitations {
		out = append(out, inv)
	}
	slices.SortFunc(out, func(a, b Invitation) int { return strings.Compare(a.PartyID, b.PartyID) })
	return out
}

// Create creates a party led by the caller. It fails with
// protocol.ErrAlreadyInParty while the caller is in a party.
func (t *Tracker) Create(ctx context.Context) (Party, error) {
	t.mu.Lock()
	inParty := t.party != nil
	t.mu.Unlock()
	if inParty {
		return Party{}, protocol.NewError(protocol.ResponseType(protocol.TypePartyCreateRequest), protocol.ErrAlreadyInParty)
	}

	info, err := t.callInfo(ctx, protocol.TypePartyCreateRequest, nil)
	if err != nil {
		return Party{}, err
	}
	return t.set(info), nil
}

// Invite asks the lobby to send an invitation to friendID.
func (t *Tracker) Invite(ctx context.Context, friendID string) error {
	if _, err := t.req.Call(ctx, protocol.TypePartyInviteRequest, protocol.PartyInviteRequest{FriendID: friendID}); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.party != nil && !slices.Contains(t.party.Invitees, friendID) {
		t.party.Invitees = append(t.party.Invitees, friendID)
	}
	return nil
}

// Join joins partyID with the token from an invitation.
func (t *Tracker) Join(ctx context.Context, partyID, invitationToken string) (Party, error) {
	info, err := t.callInfo(ctx, protocol.TypePartyJoinRequest, protocol.PartyJoinRequest{
		PartyID:         partyID,
		InvitationToken: invitationToken,
	})
	if err != nil {
		return Party{}, err
	}

	t.mu.Lock()
	delete(t.invitations, partyID)
	t.mu.Unlock()
	return t.set(info), nil
}

// Leave leaves the current party. Leaving without a party succeeds.
func (t *Tracker) Leave(ctx context.Context) error {
	_, err := t.req.Call(ctx, protocol.TypePartyLeaveRequest, nil)
	if err != nil && !errors.Is(err, protocol.ErrNotInParty) {
		return err
	}
	t.clear()
	return nil
}

// Kick removes memberID from the caller's party.
func (t *Tracker) Kick(ctx context.Context, memberID string) error {
	if _, err := t.req.Call(ctx, protocol.TypePartyKickRequest, protocol.PartyKickRequest{MemberID: memberID}); err != nil {
		return err
	}
	t.removeMember("", memberID, "")
	return nil
}

// Info fetches the party from the lobby and refreshes the local view.
func (t *Tracker) Info(ctx context.Context) (Party, error) {
	info, err := t.callInfo(ctx, protocol.TypePartyInfoRequest, nil)
	if err != nil {
		if errors.Is(err, protocol.ErrNotInParty) {
			t.clear()
		}
		return Party{}, err
	}
	return t.set(info), nil
}

func (t *Tracker) callInfo(ctx context.Context, msgType string, payload any) (protocol.PartyInfo, error) {
	frame, err := t.req.Call(ctx, msgType, payload)
	if err != nil {
		return protocol.PartyInfo{}, err
	}
	var info protocol.PartyInfo
	if err := frame.Decode(&info); err != nil {
		return protocol.PartyInfo{}, err
	}
	return info, nil
}

func (t *Tracker) set(info protocol.PartyInfo) Party {
	p := &Party{
		PartyID:         info.PartyID,
		LeaderID:        info.LeaderID,
		InvitationToken: info.InvitationToken,
		Members:         slices.Clone(info.Members),
		Invitees:        slices.Clone(info.Invitees),
	}
	t.mu.Lock()
	t.party = p
	t.mu.Unlock()
	return p.clone()
}

func (t *Tracker) clear() {
	t.mu.Lock()
	t.party = nil
	t.mu.Unlock()
}

// removeMember drops userID from partyID, or from the current party when
// partyID is empty. The party is destroyed when nobody is left.
func (t *Tracker) removeMember(partyID, userID, leaderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.party == nil || (partyID != "" && t.party.PartyID != partyID) {
		return
	}
	t.party.Members = slices.DeleteFunc(t.party.Members, func(m string) bool { return m == userID })
	if leaderID != "" {
		t.party.LeaderID = leaderID
	}
	if len(t.party.Members) == 0 {
		t.party = nil
	}
}

func (t *Tracker) onInvited(p protocol.InvitedToParty) {
	t.mu.Lock()
	t.invitations[p.PartyID] = Invitation{From: p.From, PartyID: p.PartyID, InvitationToken: p.InvitationToken}
	t.mu.Unlock()
	t.logger.Debug("party invitation", zap.String("party_id", p.PartyID), zap.String("from", p.From))
}

func (t *Tracker) onJoined(p protocol.PartyJoined) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.party == nil || t.party.PartyID != p.PartyID {
		return
	}
	if len(p.Members) > 0 {
		t.party.Members = slices.Clone(p.Members)
	} else if !slices.Contains(t.party.Members, p.UserID) {
		t.party.Members = append(t.party.Members, p.UserID)
	}
	t.party.Invitees = slices.DeleteFunc(t.party.Invitees, func(id string) bool { return id == p.UserID })
}

func (t *Tracker) onLeft(p protocol.PartyLeft) {
	t.removeMember(p.PartyID, p.UserID, p.LeaderID)
}

func (t *Tracker) onKicked(p protocol.KickedFromParty) {
	t.mu.Lock()
	if t.party == nil || t.party.PartyID != p.PartyID {
		t.mu.Unlock()
		return
	}
	t.party = nil
	t.mu.Unlock()
	t.logger.Info("kicked from party", zap.String("party_id", p.PartyID), zap.String("leader_id", p.LeaderID))
}

func (p *Party) clone() Party {
	c := *p
	c.Members = slices.Clone(p.Members)
	c.Invitees = slices.Clone(p.Invitees)
	return c
}
