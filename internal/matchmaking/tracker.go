package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/notify"
	"github.com/rickgao/lobby-client/internal/protocol"
)

// Requester issues one correlated request.
type Requester interface {
	Call(ctx context.Context, msgType string, payload any) (protocol.Frame, error)
}

type match struct {
	channel   string
	received  int
	confirmed map[string]struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source used for ban expiry.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker holds one ticket per channel. Match bookkeeping is kept only for
// each channel's latest match.
type Tracker struct {
	req    Requester
	self   func() string
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	tickets map[string]*Ticket
	matches map[string]*match
	changed chan struct{}
	subs    []*notify.Subscription
}

// NewTracker creates a tracker. self returns the caller's user id, used to
// recognise the caller's own ready confirmation.
func NewTracker(req Requester, router *notify.Router, self func() string, logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		req:     req,
		self:    self,
		now:     time.Now,
		logger:  logger.Named("matchmaking"),
		tickets: make(map[string]*Ticket),
		matches: make(map[string]*match),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.subs = []*notify.Subscription{
		notify.On(router, t.onCompleted),
		notify.On(router, t.onReady),
		notify.On(router, t.onRematch),
		notify.On(router, t.onServer),
	}
	return t
}

// Close detaches the tracker from the router.
func (t *Tracker) Close() {
	for _, sub := range t.subs {
		sub.Unsubscribe()
	}
}

// Start enqueues a ticket in channel. A channel holds at most one active
// ticket; a second start fails with protocol.ErrTicketExists, and a start
// during a rematch ban fails with protocol.ErrMatchmakingBanned.
func (t *Tracker) Start(ctx context.Context, channel string, opts StartOptions) error {
	t.mu.Lock()
	if tk, ok := t.tickets[channel]; ok {
		var refuse *protocol.ProtocolError
		switch {
		case tk.Status.Active():
			refuse = protocol.ErrTicketExists
		case tk.Banned(t.now()):
			refuse = protocol.ErrMatchmakingBanned
		}
		if refuse != nil {
			t.mu.Unlock()
			return protocol.NewError(protocol.ResponseType(protocol.TypeStartMatchmakingRequest), refuse)
		}
	}
	t.mu.Unlock()

	_, err := t.req.Call(ctx, protocol.TypeStartMatchmakingRequest, protocol.StartMatchmakingRequest{
		Channel:    channel,
		ServerName: opts.ServerName,
		Latencies:  opts.Latencies,
	})
	if err != nil {
		return err
	}

	t.update(channel, func(tk *Ticket) {
		if tk.Status.Active() {
			// A push for this ticket overtook the response.
			return
		}
		t.forgetMatchesLocked(channel)
		*tk = Ticket{Channel: channel, Status: StatusSearching}
	})
	return nil
}

// Cancel removes a still-searching ticket.
func (t *Tracker) Cancel(ctx context.Context, channel string) error {
	if _, err := t.req.Call(ctx, protocol.TypeCancelMatchmakingRequest, protocol.CancelMatchmakingRequest{Channel: channel}); err != nil {
		return err
	}
	t.update(channel, func(tk *Ticket) {
		t.forgetMatchesLocked(channel)
		tk.Status = StatusCanceled
	})
	return nil
}

// ConfirmReady confirms readiness for matchID.
func (t *Tracker) ConfirmReady(ctx context.Context, matchID string) error {
	channel, ok := t.channelOf(matchID)
	if ok {
		t.update(channel, func(tk *Ticket) {
			if tk.Status == StatusFound {
				tk.Status = StatusReadyPending
			}
		})
	}

	if _, err := t.req.Call(ctx, protocol.TypeSetReadyConsentRequest, protocol.ReadyConsentRequest{MatchID: matchID}); err != nil {
		if ok {
			t.update(channel, func(tk *Ticket) {
				if tk.Status == StatusReadyPending {
					tk.Status = StatusFound
				}
			})
		}
		return err
	}
	return nil
}

// Ticket returns the ticket for channel.
func (t *Tracker) Ticket(channel string) (Ticket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tickets[channel]
	if !ok {
		return Ticket{}, false
	}
	return tk.snapshot(), true
}

// ReadyCount returns how many ready confirmations this connection has
// received for matchID.
func (t *Tracker) ReadyCount(matchID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.matches[matchID]; ok {
		return m.received
	}
	return 0
}

// Confirmed returns the number of distinct members that confirmed matchID.
func (t *Tracker) Confirmed(matchID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.matches[matchID]; ok {
		return len(m.confirmed)
	}
	return 0
}

// Await blocks until the ticket for channel satisfies cond or ctx ends.
func (t *Tracker) Await(ctx context.Context, channel string, cond func(Ticket) bool) (Ticket, error) {
	for {
		t.mu.Lock()
		tk, ok := t.tickets[channel]
		var snap Ticket
		if ok {
			snap = tk.snapshot()
		}
		changed := t.changed
		t.mu.Unlock()

		if ok && cond(snap) {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return snap, fmt.Errorf("await %s ticket: %w", channel, ctx.Err())
		case <-changed:
		}
	}
}

// AwaitStatus blocks until the ticket for channel reaches status.
func (t *Tracker) AwaitStatus(ctx context.Context, channel string, status Status) (Ticket, error) {
	return t.Await(ctx, channel, func(tk Ticket) bool { return tk.Status == status })
}

func (t *Tracker) channelOf(matchID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.matches[matchID]; ok {
		return m.channel, true
	}
	for ch, tk := range t.tickets {
		if tk.MatchID == matchID {
			return ch, true
		}
	}
	return "", false
}

// update mutates the channel's ticket, creating it if needed, and wakes waiters.
func (t *Tracker) update(channel string, fn func(*Ticket)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.updateLocked(channel, fn)
}

func (t *Tracker) updateLocked(channel string, fn func(*Ticket)) {
	tk, ok := t.tickets[channel]
	if !ok {
		tk = &Ticket{Channel: channel}
		t.tickets[channel] = tk
	}
	fn(tk)
	tk.UpdatedAt = time.Now()

	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *Tracker) onCompleted(p protocol.MatchmakingCompleted) {
	t.logger.Debug("matchmaking completed",
		zap.String("channel", p.Channel),
		zap.String("match_id", p.MatchID),
		zap.String("status", p.Status),
	)

	t.mu.Lock()
	defer t.mu.Unlock()
	switch p.Status {
	case protocol.MatchmakingDone:
		m, ok := t.matches[p.MatchID]
		if !ok {
			m = &match{confirmed: make(map[string]struct{})}
		}
		t.forgetMatchesLocked(p.Channel)
		m.channel = p.Channel
		t.matches[p.MatchID] = m
		t.updateLocked(p.Channel, func(tk *Ticket) {
			tk.MatchID = p.MatchID
			tk.Status = StatusFound
			tk.BanDuration = 0
			tk.BannedUntil = time.Time{}
			tk.Server = nil
		})
	case protocol.MatchmakingCancel, protocol.MatchmakingTimeout:
		t.forgetMatchesLocked(p.Channel)
		t.updateLocked(p.Channel, func(tk *Ticket) { tk.Status = StatusCanceled })
	}
}

func (t *Tracker) onReady(p protocol.ReadyForMatchConfirmed) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.matches[p.MatchID]
	if !ok {
		m = &match{confirmed: make(map[string]struct{})}
		t.matches[p.MatchID] = m
	}
	m.received++
	m.confirmed[p.UserID] = struct{}{}

	if m.channel == "" || t.self == nil || p.UserID != t.self() {
		return
	}
	t.updateLocked(m.channel, func(tk *Ticket) {
		if tk.MatchID == p.MatchID && tk.Status != StatusAssigned {
			tk.Status = StatusConfirmed
		}
	})
}

func (t *Tracker) onRematch(p protocol.RematchmakingNotif) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.forgetMatchesLocked(p.Channel)
	t.updateLocked(p.Channel, func(tk *Ticket) {
		tk.MatchID = ""
		tk.Server = nil
		tk.BanDuration = time.Duration(p.BanDuration) * time.Second
		tk.BannedUntil = time.Time{}
		if p.BanDuration > 0 {
			tk.Status = StatusRematching
			tk.BannedUntil = t.now().Add(tk.BanDuration)
		} else {
			tk.Status = StatusSearching
		}
	})
}

func (t *Tracker) onServer(p protocol.DSUpdated) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.matches[p.MatchID]
	if !ok || m.channel == "" {
		t.logger.Debug("server update for unknown match", zap.String("match_id", p.MatchID))
		return
	}
	t.updateLocked(m.channel, func(tk *Ticket) {
		if tk.MatchID != p.MatchID {
			return
		}
		tk.Server = &DedicatedServer{Status: p.Status, IP: p.IP, Port: p.Port, PodName: p.PodName}
		if p.Status == protocol.DSReady || p.Status == protocol.DSBusy {
			tk.Status = StatusAssigned
		}
	})
}

// forgetMatchesLocked drops bookkeeping for channel's earlier matches and
// for confirmations that never found a channel.
func (t *Tracker) forgetMatchesLocked(channel string) {
	for id, m := range t.matches {
		if m.channel == channel || m.channel == "" {
			delete(t.matches, id)
		}
	}
}

func (tk *Ticket) snapshot() Ticket {
	c := *tk
	if tk.Server != nil {
		s := *tk.Server
		c.Server = &s
	}
	return c
}
