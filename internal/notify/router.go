package notify

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/protocol"
)

// Handler receives a decoded push.
type Handler func(protocol.Push)

// Observer receives routing accounting; internal/metrics implements it.
type Observer interface {
	PushRouted(msgType string)
	PushDropped(msgType, reason string)
}

// Drop reasons reported to the Observer.
const (
	DropUnknown    = "unknown_type"
	DropParseError = "parse_error"
)

// RouterStats contains runtime statistics.
type RouterStats struct {
	PushesReceived int64
	PushesRouted   int64
	ParseErrors    int64
	UnknownPushes  int64
	Subscriptions  int
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	router  *Router
	id      uint64
	msgType string
	handler Handler
}

// Type returns the type tag the subscription listens to.
func (s *Subscription) Type() string {
	return s.msgType
}

// Unsubscribe removes the subscription. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.router == nil {
		return
	}
	s.router.Unsubscribe(s)
}

// Router maps type tags to subscribed handlers.
type Router struct {
	logger   *zap.Logger
	observer Observer

	mu     sync.RWMutex
	subs   map[string][]*Subscription // copy-on-write per tag
	nextID uint64

	received    atomic.Int64
	routed      atomic.Int64
	parseErrors atomic.Int64
	unknown     atomic.Int64
}

// Option configures a Router.
type Option func(*Router)

// WithObserver sets the routing observer.
func WithObserver(o Observer) Option {
	return func(r *Router) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewRouter creates a Notification Router.
func NewRouter(logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		logger:   logger.Named("notify"),
		observer: nopObserver{},
		subs:     make(map[string][]*Subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers h for pushes tagged msgType.
func (r *Router) Subscribe(msgType string, h Handler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := &Subscription{router: r, id: r.nextID, msgType: msgType, handler: h}

	list := r.subs[msgType]
	next := make([]*Subscription, len(list), len(list)+1)
	copy(next, list)
	r.subs[msgType] = append(next, sub)
	return sub
}

// On registers a handler for one push variant.
func On[T protocol.Push](r *Router, fn func(T)) *Subscription {
	var zero T
	return r.Subscribe(zero.PushType(), func(p protocol.Push) {
		if v, ok := p.(T); ok {
			fn(v)
		}
	})
}

// Unsubscribe removes sub if it is still registered.
func (r *Router) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.subs[sub.msgType]
	for i, existing := range list {
		if existing.id != sub.id {
			continue
		}
		next := make([]*Subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(r.subs, sub.msgType)
		} else {
			r.subs[sub.msgType] = next
		}
		return
	}
}

// Dispatch decodes a push frame and delivers it. Unknown tags are ignored;
// undecodable payloads are logged and dropped.
func (r *Router) Dispatch(frame protocol.Frame) {
	r.received.Add(1)

	decode, ok := decoders[frame.Type]
	if !ok {
		r.unknown.Add(1)
		r.observer.PushDropped(frame.Type, DropUnknown)
		r.logger.Debug("skipping push type", zap.String("type", frame.Type))
		return
	}

	push, err := decode(frame)
	if err != nil {
		r.parseErrors.Add(1)
		r.observer.PushDropped(frame.Type, DropParseError)
		r.logger.Warn("failed to decode push", zap.String("type", frame.Type), zap.Error(err))
		return
	}

	r.Emit(push)
}

// Emit delivers an already decoded push, including local lifecycle signals.
func (r *Router) Emit(push protocol.Push) {
	msgType := push.PushType()

	r.mu.RLock()
	handlers := r.subs[msgType]
	r.mu.RUnlock()

	r.routed.Add(1)
	r.observer.PushRouted(msgType)

	for _, sub := range handlers {
		r.deliver(sub, push)
	}
}

func (r *Router) deliver(sub *Subscription, push protocol.Push) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("push handler panicked",
				zap.String("type", sub.msgType),
				zap.Any("panic", rec),
			)
		}
	}()
	sub.handler(push)
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	r.mu.RLock()
	count := 0
	for _, list := range r.subs {
		count += len(list)
	}
	r.mu.RUnlock()

	return RouterStats{
		PushesReceived: r.received.Load(),
		PushesRouted:   r.routed.Load(),
		ParseErrors:    r.parseErrors.Load(),
		UnknownPushes:  r.unknown.Load(),
		Subscriptions:  count,
	}
}

type nopObserver struct{}

func (nopObserver) PushRouted(string) {}
func (nopObserver) PushDropped(string, string) {}
