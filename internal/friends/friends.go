// Package friends tracks friendship relations between the caller and other users.
package friends

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/notify"
	"github.com/rickgao/lobby-client/internal/protocol"
)

// Requester issues one correlated request.
type Requester interface {
	Call(ctx context.Context, msgType string, payload any) (protocol.Frame, error)
}

// Tracker is the client-side view of friend relations.
type Tracker struct {
	req    Requester
	logger *zap.Logger

	mu        sync.Mutex
	relations map[string]protocol.FriendshipStatus
	subs      []*notify.Subscription
}

// NewTracker creates a tracker and subscribes it to friend pushes.
func NewTracker(req Requester, router *notify.Router, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		req:       req,
		logger:    logger.Named("friends"),
		relations: make(map[string]protocol.FriendshipStatus),
	}
	t.subs = []*notify.Subscription{
		notify.On(router, func(p protocol.IncomingFriendRequest) { t.set(p.FriendID, protocol.Incoming) }),
		notify.On(router, func(p protocol.FriendRequestAccepted) { t.set(p.FriendID, protocol.Friend) }),
	}
	return t
}

// Close detaches the tracker from the router.
func (t *Tracker) Close() {
	for _, sub := range t.subs {
		sub.Unsubscribe()
	}
}

// Request sends a friend request to userID.
func (t *Tracker) Request(ctx context.Context, userID string) error {
	return t.mutate(ctx, protocol.TypeRequestFriendsRequest, userID, protocol.Outgoing)
}

// Accept accepts an incoming request from userID.
func (t *Tracker) Accept(ctx context.Context, userID string) error {
	return t.mutate(ctx, protocol.TypeAcceptFriendsRequest, userID, protocol.Friend)
}

// Reject rejects an incoming request from userID.
func (t *Tracker) Reject(ctx context.Context, userID string) error {
	return t.mutate(ctx, protocol.TypeRejectFriendsRequest, userID, protocol.NotFriend)
}

// Cancel withdraws an outgoing request to userID.
func (t *Tracker) Cancel(ctx context.Context, userID string) error {
	return t.mutate(ctx, protocol.TypeCancelFriendsRequest, userID, protocol.NotFriend)
}

// Unfriend removes userID from the friend list.
func (t *Tracker) Unfriend(ctx context.Context, userID string) error {
	return t.mutate(ctx, protocol.TypeUnfriendRequest, userID, protocol.NotFriend)
}

// ListIncoming returns users who sent the caller a request.
func (t *Tracker) ListIncoming(ctx context.Context) ([]string, error) {
	return t.list(ctx, protocol.TypeListIncomingFriendsRequest, protocol.Incoming)
}

// ListOutgoing returns users the caller sent a request to.
func (t *Tracker) ListOutgoing(ctx context.Context) ([]string, error) {
	return t.list(ctx, protocol.TypeListOutgoingFriendsRequest, protocol.Outgoing)
}

// LoadFriends returns the caller's friends.
func (t *Tracker) LoadFriends(ctx context.Context) ([]string, error) {
	return t.list(ctx, protocol.TypeListOfFriendsRequest, protocol.Friend)
}

// Status asks the lobby for the relation with userID.
func (t *Tracker) Status(ctx context.Context, userID string) (protocol.FriendshipStatus, error) {
	frame, err := t.req.Call(ctx, protocol.TypeGetFriendshipStatusRequest, protocol.FriendRequest{FriendID: userID})
	if err != nil {
		return protocol.NotFriend, err
	}
	var resp protocol.FriendshipStatusResponse
	if err := frame.Decode(&resp); err != nil {
		return protocol.NotFriend, err
	}
	t.set(userID, resp.Status)
	return resp.Status, nil
}

// Relation returns the locally known relation with userID.
func (t *Tracker) Relation(userID string) protocol.FriendshipStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.relations[userID]
}

// Friends returns the locally known friends, sorted.
func (t *Tracker) Friends() []string {
	return t.withStatus(protocol.Friend)
}

func (t *Tracker) withStatus(status protocol.FriendshipStatus) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for id, s := range t.relations {
		if s == status {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func (t *Tracker) mutate(ctx context.Context, msgType, userID string, next protocol.FriendshipStatus) error {
	if _, err := t.req.Call(ctx, msgType, protocol.FriendRequest{FriendID: userID}); err != nil {
		return err
	}
	t.set(userID, next)
	return nil
}

// list replaces every relation of the listed status with the server's view.
func (t *Tracker) list(ctx context.Context, msgType string, status protocol.FriendshipStatus) ([]string, error) {
	frame, err := t.req.Call(ctx, msgType, nil)
	if err != nil {
		return nil, err
	}
	var resp protocol.FriendListResponse
	if err := frame.Decode(&resp); err != nil {
		return nil, err
	}

	t.mu.Lock()
	for id, s := range t.relations {
		if s == status {
			delete(t.relations, id)
		}
	}
	for _, id := range resp.UserIDs {
		t.relations[id] = status
	}
	t.mu.Unlock()
	return resp.UserIDs, nil
}

func (t *Tracker) set(userID string, status protocol.FriendshipStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if status == protocol.NotFriend {
		delete(t.relations, userID)
		return
	}
	t.relations[userID] = status
}
