package matchmaking

import "time"

// Status is the state of a matchmaking ticket.
type Status int

const (
	StatusSearching Status = iota + 1
	StatusFound
	StatusReadyPending
	StatusConfirmed
	StatusCanceled
	StatusRematching
	StatusAssigned
)

func (s Status) String() string {
	switch s {
	case StatusSearching:
		return "searching"
	case StatusFound:
		return "found"
	case StatusReadyPending:
		return "ready_pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusCanceled:
		return "canceled"
	case StatusRematching:
		return "rematching"
	case StatusAssigned:
		return "assigned"
	default:
		return "unknown"
	}
}

// Active reports whether the ticket still occupies its channel: queued, or
// matched and waiting on the ready consensus. Canceled, banned and assigned
// tickets leave the channel free.
func (s Status) Active() bool {
	switch s {
	case StatusSearching, StatusFound, StatusReadyPending, StatusConfirmed:
		return true
	default:
		return false
	}
}

// DedicatedServer is the game host assigned to a match.
type DedicatedServer struct {
	Status  string
	IP      string
	Port    int
	PodName string
}

// Ticket is a snapshot of one channel's matchmaking state.
type Ticket struct {
	Channel     string
	MatchID     string
	Status      Status
	BanDuration time.Duration
	BannedUntil time.Time // zero unless Rematching
	Server      *DedicatedServer
	UpdatedAt   time.Time
}

// StartOptions configures StartMatchmaking.
type StartOptions struct {
	ServerName string
	Latencies  map[string]int // region → round trip in milliseconds
}

// Banned reports whether the ticket's rematch ban is still running at now.
func (tk Ticket) Banned(now time.Time) bool {
	return tk.Status == StatusRematching && now.Before(tk.BannedUntil)
}
