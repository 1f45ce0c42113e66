package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rickgao/lobby-client/internal/notify"
	"github.com/rickgao/lobby-client/internal/protocol"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	body  []any
	err   error
}

func (r *recorder) Call(_ context.Context, msgType string, payload any) (protocol.Frame, error) {
	r.mu.Lock()
	r.calls = append(r.calls, msgType)
	r.body = append(r.body, payload)
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return protocol.Frame{}, err
	}
	return protocol.NewFrame(protocol.ResponseType(msgType), 1, nil)
}

func newTestTracker(t *testing.T, opts ...Option) (*Tracker, *recorder, *notify.Router) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	router := notify.NewRouter(logger)
	req := &recorder{}
	tr := NewTracker(req, router, func() string { return "me" }, logger, opts...)
	t.Cleanup(tr.Close)
	return tr, req, router
}

func TestTracker_StartSendsOptions(t *testing.T) {
	tr, req, _ := newTestTracker(t)

	err := tr.Start(context.Background(), "ranked", StartOptions{
		ServerName: "local-ds",
		Latencies:  map[string]int{"us-east-1": 40},
	})
	require.NoError(t, err)

	tk, ok := tr.Ticket("ranked")
	require.True(t, ok)
	assert.Equal(t, StatusSearching, tk.Status)
	assert.Equal(t, protocol.StartMatchmakingRequest{
		Channel:    "ranked",
		ServerName: "local-ds",
		Latencies:  map[string]int{"us-east-1": 40},
	}, req.body[0])
}

func TestTracker_OneActiveTicketPerChannel(t *testing.T) {
	tr, req, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Start(ctx, "ranked", StartOptions{}))
	assert.ErrorIs(t, tr.Start(ctx, "ranked", StartOptions{}), protocol.ErrTicketExists)
	require.NoError(t, tr.Start(ctx, "casual", StartOptions{}), "other channels are independent")

	require.NoError(t, tr.Cancel(ctx, "ranked"))
	tk, _ := tr.Ticket("ranked")
	assert.Equal(t, StatusCanceled, tk.Status)

	require.NoError(t, tr.Start(ctx, "ranked", StartOptions{}), "a canceled ticket frees the channel")
	assert.Len(t, req.calls, 4)
}

func TestTracker_StartErrorLeavesNoTicket(t *testing.T) {
	tr, req, _ := newTestTracker(t)
	req.err = protocol.NewError("startMatchmakingResponse", protocol.ErrTicketExists)

	assert.ErrorIs(t, tr.Start(context.Background(), "ranked", StartOptions{}), protocol.ErrTicketExists)
	_, ok := tr.Ticket("ranked")
	assert.False(t, ok)
}

func TestTracker_ReadyConsensus(t *testing.T) {
	tr, _, router := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.Start(ctx, "ranked", StartOptions{}))

	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-1", Channel: "ranked"})
	tk, _ := tr.Ticket("ranked")
	assert.Equal(t, StatusFound, tk.Status)
	assert.Equal(t, "m-1", tk.MatchID)

	require.NoError(t, tr.ConfirmReady(ctx, "m-1"))
	tk, _ = tr.Ticket("ranked")
	assert.Equal(t, StatusReadyPending, tk.Status)

	members := []string{"me", "b", "c"}
	for _, m := range members {
		router.Emit(protocol.ReadyForMatchConfirmed{MatchID: "m-1", UserID: m})
	}

	tk, _ = tr.Ticket("ranked")
	assert.Equal(t, StatusConfirmed, tk.Status)
	assert.Equal(t, len(members), tr.ReadyCount("m-1"))
	assert.Equal(t, len(members), tr.Confirmed("m-1"))
	assert.Zero(t, tr.ReadyCount("unknown"))
}

func TestTracker_ConfirmErrorRestoresFound(t *testing.T) {
	tr, req, router := newTestTracker(t)
	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-1", Channel: "ranked"})

	req.err = protocol.NewError("setReadyConsentResponse", protocol.ErrMatchNotFound)
	assert.ErrorIs(t, tr.ConfirmReady(context.Background(), "m-1"), protocol.ErrMatchNotFound)

	tk, _ := tr.Ticket("ranked")
	assert.Equal(t, StatusFound, tk.Status)
}

func TestTracker_PartyMemberTicketFromPush(t *testing.T) {
	tr, _, router := newTestTracker(t)

	// A party member never called Start but still receives the result.
	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-1", Channel: "ranked"})
	tk, ok := tr.Ticket("ranked")
	require.True(t, ok)
	assert.Equal(t, StatusFound, tk.Status)
}

func TestTracker_CancelAndTimeoutPushes(t *testing.T) {
	for _, status := range []string{protocol.MatchmakingCancel, protocol.MatchmakingTimeout} {
		t.Run(status, func(t *testing.T) {
			tr, _, router := newTestTracker(t)
			require.NoError(t, tr.Start(context.Background(), "ranked", StartOptions{}))

			router.Emit(protocol.MatchmakingCompleted{Status: status, Channel: "ranked"})
			tk, _ := tr.Ticket("ranked")
			assert.Equal(t, StatusCanceled, tk.Status)
		})
	}
}

func TestTracker_Rematchmaking(t *testing.T) {
	tr, _, router := newTestTracker(t)
	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-1", Channel: "ranked"})

	router.Emit(protocol.RematchmakingNotif{Channel: "ranked", BanDuration: 30})
	tk, _ := tr.Ticket("ranked")
	assert.Equal(t, StatusRematching, tk.Status)
	assert.Equal(t, 30*time.Second, tk.BanDuration)
	assert.False(t, tk.BannedUntil.IsZero())
	assert.Empty(t, tk.MatchID)

	router.Emit(protocol.RematchmakingNotif{Channel: "ranked"})
	tk, _ = tr.Ticket("ranked")
	assert.Equal(t, StatusSearching, tk.Status)
}

func TestTracker_DedicatedServer(t *testing.T) {
	tr, _, router := newTestTracker(t)
	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-1", Channel: "ranked"})

	router.Emit(protocol.DSUpdated{MatchID: "m-1", Status: protocol.DSCreating})
	router.Emit(protocol.DSUpdated{MatchID: "m-1", Status: protocol.DSReady, IP: "10.0.0.5", Port: 7777, PodName: "ds-abc"})
	router.Emit(protocol.DSUpdated{MatchID: "unknown", Status: protocol.DSBusy})

	tk, _ := tr.Ticket("ranked")
	require.NotNil(t, tk.Server)
	assert.Equal(t, StatusAssigned, tk.Status)
	assert.Equal(t, DedicatedServer{Status: protocol.DSReady, IP: "10.0.0.5", Port: 7777, PodName: "ds-abc"}, *tk.Server)

	tk.Server.IP = "mutated"
	again, _ := tr.Ticket("ranked")
	assert.Equal(t, "10.0.0.5", again.Server.IP)
}

func TestTracker_AwaitStatus(t *testing.T) {
	tr, _, router := newTestTracker(t)
	require.NoError(t, tr.Start(context.Background(), "ranked", StartOptions{}))

	go func() {
		time.Sleep(10 * time.Millisecond)
		router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-1", Channel: "ranked"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tk, err := tr.AwaitStatus(ctx, "ranked", StatusFound)
	require.NoError(t, err)
	assert.Equal(t, "m-1", tk.MatchID)
}

func TestTracker_AwaitTimeout(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.AwaitStatus(ctx, "ranked", StatusFound)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "searching", StatusSearching.String())
	assert.Equal(t, "ready_pending", StatusReadyPending.String())
	assert.Equal(t, "rematching", StatusRematching.String())
	assert.Equal(t, "unknown", Status(0).String())
	assert.Equal(t, "assigned", StatusAssigned.String())

	for _, s := range []Status{StatusSearching, StatusFound, StatusReadyPending, StatusConfirmed} {
		assert.True(t, s.Active(), s.String())
	}
	for _, s := range []Status{0, StatusCanceled, StatusRematching, StatusAssigned} {
		assert.False(t, s.Active(), s.String())
	}
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTracker_StartAfterAssigned(t *testing.T) {
	tr, req, router := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.Start(ctx, "ranked", StartOptions{}))

	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-1", Channel: "ranked"})
	require.NoError(t, tr.ConfirmReady(ctx, "m-1"))
	router.Emit(protocol.ReadyForMatchConfirmed{MatchID: "m-1", UserID: "me"})
	router.Emit(protocol.DSUpdated{MatchID: "m-1", Status: protocol.DSReady, IP: "10.0.0.5", Port: 7777})

	tk, _ := tr.Ticket("ranked")
	require.Equal(t, StatusAssigned, tk.Status)
	assert.Equal(t, 1, tr.ReadyCount("m-1"))

	require.NoError(t, tr.Start(ctx, "ranked", StartOptions{}), "a finished match frees the channel")
	tk, _ = tr.Ticket("ranked")
	assert.Equal(t, StatusSearching, tk.Status)
	assert.Nil(t, tk.Server)
	assert.Empty(t, tk.MatchID)
	assert.Zero(t, tr.ReadyCount("m-1"))
	assert.Len(t, req.calls, 3)
}

func TestTracker_BusyServerFreesChannel(t *testing.T) {
	tr, _, router := newTestTracker(t)
	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-1", Channel: "ranked"})
	router.Emit(protocol.DSUpdated{MatchID: "m-1", Status: protocol.DSBusy})

	tk, _ := tr.Ticket("ranked")
	assert.Equal(t, StatusAssigned, tk.Status)
	assert.NoError(t, tr.Start(context.Background(), "ranked", StartOptions{}))
}

func TestTracker_BanBlocksStartUntilItEnds(t *testing.T) {
	clock := &manualClock{now: time.Now()}
	tr, req, router := newTestTracker(t, WithClock(clock.Now))
	ctx := context.Background()
	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-1", Channel: "ranked"})
	router.Emit(protocol.RematchmakingNotif{Channel: "ranked", BanDuration: 30})

	assert.ErrorIs(t, tr.Start(ctx, "ranked", StartOptions{}), protocol.ErrMatchmakingBanned)
	assert.Empty(t, req.calls, "a banned start is refused before any request")

	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, tr.Start(ctx, "ranked", StartOptions{}), protocol.ErrMatchmakingBanned)

	clock.Advance(2 * time.Second)
	require.NoError(t, tr.Start(ctx, "ranked", StartOptions{}))
	tk, _ := tr.Ticket("ranked")
	assert.Equal(t, StatusSearching, tk.Status)
	assert.Len(t, req.calls, 1)
}

func TestTracker_ForgetsFinishedMatches(t *testing.T) {
	tr, _, router := newTestTracker(t)
	matches := func() int {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return len(tr.matches)
	}

	for i := range 5 {
		id := fmt.Sprintf("m-%d", i)
		router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: id, Channel: "ranked"})
		router.Emit(protocol.ReadyForMatchConfirmed{MatchID: id, UserID: "me"})
		router.Emit(protocol.DSUpdated{MatchID: id, Status: protocol.DSReady})
	}
	assert.Equal(t, 1, matches(), "only the latest match per channel is kept")

	router.Emit(protocol.RematchmakingNotif{Channel: "ranked", BanDuration: 30})
	assert.Zero(t, matches())

	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-9", Channel: "casual"})
	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingCancel, Channel: "casual"})
	assert.Zero(t, matches())
}

func TestTracker_EarlyConfirmationAdoptsChannel(t *testing.T) {
	tr, _, router := newTestTracker(t)

	router.Emit(protocol.ReadyForMatchConfirmed{MatchID: "m-1", UserID: "b"})
	router.Emit(protocol.MatchmakingCompleted{Status: protocol.MatchmakingDone, MatchID: "m-1", Channel: "ranked"})
	router.Emit(protocol.DSUpdated{MatchID: "m-1", Status: protocol.DSReady})

	assert.Equal(t, 1, tr.ReadyCount("m-1"))
	tk, _ := tr.Ticket("ranked")
	assert.Equal(t, StatusAssigned, tk.Status)
}
