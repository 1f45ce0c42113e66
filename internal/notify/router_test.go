package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/protocol"
)

func pushFrame(t *testing.T, msgType string, payload any) protocol.Frame {
	t.Helper()
	f, err := protocol.NewFrame(msgType, 0, payload)
	require.NoError(t, err)
	return f
}

func TestRouter_DispatchInSubscriptionOrder(t *testing.T) {
	r := NewRouter(zap.NewNop())

	var order []string
	r.Subscribe(protocol.TypePersonalChatNotif, func(protocol.Push) { order = append(order, "first") })
	r.Subscribe(protocol.TypePersonalChatNotif, func(protocol.Push) { order = append(order, "second") })
	On(r, func(msg protocol.PersonalChatReceived) {
		order = append(order, "typed:"+msg.Payload)
	})

	r.Dispatch(pushFrame(t, protocol.TypePersonalChatNotif, protocol.PersonalChatReceived{From: "a", To: "b", Payload: "hello"}))

	assert.Equal(t, []string{"first", "second", "typed:hello"}, order)

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.PushesReceived)
	assert.Equal(t, int64(1), stats.PushesRouted)
	assert.Equal(t, 3, stats.Subscriptions)
}

func TestRouter_UnknownTypeIgnored(t *testing.T) {
	r := NewRouter(nil)

	called := false
	r.Subscribe("futureNotif", func(protocol.Push) { called = true })
	r.Dispatch(protocol.Frame{Type: "futureNotif", Payload: []byte(`{"x":1}`)})

	assert.False(t, called)
	assert.Equal(t, int64(1), r.Stats().UnknownPushes)
	assert.False(t, Known("futureNotif"))
	assert.True(t, Known(protocol.TypeDSNotif))
}

func TestRouter_ParseErrorDropped(t *testing.T) {
	r := NewRouter(nil)

	called := false
	On(r, func(protocol.KickedFromParty) { called = true })
	r.Dispatch(protocol.Frame{Type: protocol.TypePartyKickNotif, Payload: []byte(`["not","an","object"]`)})

	assert.False(t, called)
	assert.Equal(t, int64(1), r.Stats().ParseErrors)
}

func TestRouter_UnsubscribeIsIdempotent(t *testing.T) {
	r := NewRouter(nil)

	count := 0
	sub := On(r, func(protocol.DSUpdated) { count++ })
	other := On(r, func(protocol.DSUpdated) { count += 10 })

	frame := pushFrame(t, protocol.TypeDSNotif, protocol.DSUpdated{MatchID: "m", Status: protocol.DSReady})
	r.Dispatch(frame)
	assert.Equal(t, 11, count)

	sub.Unsubscribe()
	sub.Unsubscribe()
	r.Unsubscribe(sub)
	r.Dispatch(frame)
	assert.Equal(t, 21, count)

	other.Unsubscribe()
	r.Dispatch(frame)
	assert.Equal(t, 21, count)
	assert.Equal(t, 0, r.Stats().Subscriptions)
	assert.Equal(t, protocol.TypeDSNotif, sub.Type())
}

func TestRouter_UnsubscribeDuringDispatch(t *testing.T) {
	r := NewRouter(nil)

	var calls []string
	var second *Subscription
	r.Subscribe(protocol.TypeMessageNotif, func(protocol.Push) {
		calls = append(calls, "first")
		second.Unsubscribe()
	})
	second = r.Subscribe(protocol.TypeMessageNotif, func(protocol.Push) { calls = append(calls, "second") })

	frame := pushFrame(t, protocol.TypeMessageNotif, protocol.GenericNotification{Topic: "t"})
	r.Dispatch(frame)
	r.Dispatch(frame)

	// The snapshot taken at dispatch time still includes the second handler.
	assert.Equal(t, []string{"first", "second", "first"}, calls)
}

func TestRouter_HandlerPanicDoesNotStopDelivery(t *testing.T) {
	r := NewRouter(nil)

	delivered := false
	r.Subscribe(protocol.TypeMessageNotif, func(protocol.Push) { panic("boom") })
	r.Subscribe(protocol.TypeMessageNotif, func(protocol.Push) { delivered = true })

	r.Dispatch(pushFrame(t, protocol.TypeMessageNotif, protocol.GenericNotification{}))
	assert.True(t, delivered)
}

func TestRouter_EmitLifecycle(t *testing.T) {
	r := NewRouter(nil)

	var got protocol.Disconnecting
	On(r, func(d protocol.Disconnecting) { got = d })
	r.Emit(protocol.Disconnecting{Reason: protocol.ReasonSuperseded, ServerInitiated: true})

	assert.Equal(t, protocol.ReasonSuperseded, got.Reason)
	assert.True(t, got.ServerInitiated)
}

func TestRouter_DecodersCoverEveryWirePush(t *testing.T) {
	pushes := []protocol.Push{
		protocol.PersonalChatReceived{},
		protocol.PartyChatReceived{},
		protocol.InvitedToParty{},
		protocol.KickedFromParty{},
		protocol.PartyJoined{},
		protocol.PartyLeft{},
		protocol.FriendsStatusChanged{},
		protocol.IncomingFriendRequest{},
		protocol.FriendRequestAccepted{},
		protocol.MatchmakingCompleted{},
		protocol.ReadyForMatchConfirmed{},
		protocol.RematchmakingNotif{},
		protocol.DSUpdated{},
		protocol.GenericNotification{},
		protocol.DisconnectNotif{},
	}
	for _, p := range pushes {
		decode, ok := decoders[p.PushType()]
		require.True(t, ok, p.PushType())
		got, err := decode(pushFrame(t, p.PushType(), p))
		require.NoError(t, err)
		assert.IsType(t, p, got)
	}
}

func TestRouter_ConcurrentSubscribeAndDispatch(t *testing.T) {
	r := NewRouter(nil)
	frame := pushFrame(t, protocol.TypeUserStatusNotif, protocol.FriendsStatusChanged{UserID: "u"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := On(r, func(protocol.FriendsStatusChanged) {})
			sub.Unsubscribe()
		}()
		go func() {
			defer wg.Done()
			r.Dispatch(frame)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), r.Stats().PushesRouted)
	assert.Equal(t, 0, r.Stats().Subscriptions)
}
