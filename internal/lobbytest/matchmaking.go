package lobbytest

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/lobby-client/internal/protocol"
)

// ticket is one queued party, or a solo player.
type ticket struct {
	channel    string
	leader     string
	members    []string
	serverName string
}

type match struct {
	id        string
	channel   string
	tickets   []*ticket
	members   []string
	confirmed map[string]bool
	timer     *time.Timer
}

// busy reports whether userID is queued or in an unconfirmed match.
func (s *Server) busy(userID string) bool {
	for _, q := range s.queues {
		for _, t := range q {
			if slices.Contains(t.members, userID) {
				return true
			}
		}
	}
	for _, m := range s.matches {
		if slices.Contains(m.members, userID) {
			return true
		}
	}
	return false
}

func (s *Server) startMatchmaking(cn *conn, f protocol.Frame) (any, []delivery, error) {
	var req protocol.StartMatchmakingRequest
	if err := f.Decode(&req); err != nil || req.Channel == "" {
		return nil, nil, protocol.ErrBadRequest
	}

	members := []string{cn.userID}
	if p := s.partyOf(cn.userID); p != nil {
		if p.leader != cn.userID {
			return nil, nil, protocol.ErrNotPartyLeader
		}
		members = slices.Clone(p.members)
	}
	for _, id := range members {
		if s.busy(id) {
			return nil, nil, protocol.ErrTicketExists
		}
		if s.now().Before(s.banned[id]) {
			return nil, nil, protocol.ErrMatchmakingBanned
		}
	}

	s.queues[req.Channel] = append(s.queues[req.Channel], &ticket{
		channel:    req.Channel,
		leader:     cn.userID,
		members:    members,
		serverName: req.ServerName,
	})
	return nil, s.formMatches(req.Channel), nil
}

// formMatches groups queued tickets in channel into matches.
func (s *Server) formMatches(channel string) []delivery {
	var out []delivery
	for len(s.queues[channel]) >= s.matchSize {
		q := s.queues[channel]
		m := &match{
			id:        uuid.NewString(),
			channel:   channel,
			tickets:   slices.Clone(q[:s.matchSize]),
			confirmed: make(map[string]bool),
		}
		s.queues[channel] = slices.Clone(q[s.matchSize:])
		for _, t := range m.tickets {
			m.members = append(m.members, t.members...)
		}
		s.matches[m.id] = m
		id := m.id
		m.timer = time.AfterFunc(s.readyWindow, func() { s.expireMatch(id) })

		out = append(out, s.pushTo(m.members, protocol.MatchmakingCompleted{
			Status:  protocol.MatchmakingDone,
			MatchID: m.id,
			Channel: channel,
		})...)
	}
	return out
}

func (s *Server) cancelMatchmaking(cn *conn, f protocol.Frame) (any, []delivery, error) {
	var req protocol.CancelMatchmakingRequest
	if err := f.Decode(&req); err != nil || req.Channel == "" {
		return nil, nil, protocol.ErrBadRequest
	}
	q := s.queues[req.Channel]
	i := slices.IndexFunc(q, func(t *ticket) bool { return slices.Contains(t.members, cn.userID) })
	if i < 0 {
		return nil, nil, protocol.ErrTicketNotFound
	}
	t := q[i]
	s.queues[req.Channel] = slices.Delete(slices.Clone(q), i, i+1)
	return nil, s.pushTo(t.members, protocol.MatchmakingCompleted{
		Status:  protocol.MatchmakingCancel,
		Channel: req.Channel,
	}), nil
}

func (s *Server) readyConsent(cn *conn, f protocol.Frame) (any, []delivery, error) {
	var req protocol.ReadyConsentRequest
	if err := f.Decode(&req); err != nil || req.MatchID == "" {
		return nil, nil, protocol.ErrBadRequest
	}
	m := s.matches[req.MatchID]
	if m == nil || !slices.Contains(m.members, cn.userID) {
		return nil, nil, protocol.ErrMatchNotFound
	}
	if m.confirmed[cn.userID] {
		return nil, nil, nil
	}
	m.confirmed[cn.userID] = true

	out := s.pushTo(m.members, protocol.ReadyForMatchConfirmed{MatchID: m.id, UserID: cn.userID})
	if len(m.confirmed) == len(m.members) {
		m.timer.Stop()
		delete(s.matches, m.id)
		out = append(out, s.allocateServer(m)...)
	}
	return nil, out, nil
}

// allocateServer reports a dedicated server for a fully confirmed match.
func (s *Server) allocateServer(m *match) []delivery {
	port := s.dsPort
	s.dsPort++
	pod := fmt.Sprintf("ds-%s", m.id[:8])
	out := s.pushTo(m.members, protocol.DSUpdated{MatchID: m.id, Status: protocol.DSCreating, PodName: pod})
	return append(out, s.pushTo(m.members, protocol.DSUpdated{
		MatchID: m.id,
		Status:  protocol.DSReady,
		IP:      "127.0.0.1",
		Port:    port,
		PodName: pod,
	})...)
}

// expireMatch dissolves a match whose ready window ended. Tickets whose
// members all confirmed are queued again; the members of the others are
// banned from starting matchmaking for banDuration seconds.
func (s *Server) expireMatch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.matches[id]
	if m == nil || s.closed {
		return
	}
	delete(s.matches, id)

	var out []delivery
	for _, t := range m.tickets {
		complete := true
		for _, uid := range t.members {
			complete = complete && m.confirmed[uid]
		}
		if complete {
			s.queues[m.channel] = append(s.queues[m.channel], t)
			out = append(out, s.pushTo(t.members, protocol.RematchmakingNotif{Channel: m.channel})...)
			continue
		}
		until := s.now().Add(time.Duration(s.banDuration) * time.Second)
		for _, uid := range t.members {
			s.banned[uid] = until
		}
		out = append(out, s.pushTo(t.members, protocol.RematchmakingNotif{
			Channel:     m.channel,
			BanDuration: s.banDuration,
		})...)
	}
	out = append(out, s.formMatches(m.channel)...)
	s.deliver(out)
}
