package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/protocol"
)

// Errors
var (
	ErrRequestTimeout = errors.New("request timed out")
	ErrWriteFailed    = errors.New("write failed")
)

// Outcome labels reported to the Observer.
const (
	OutcomeOK        = "ok"
	OutcomeProtocol  = "protocol_error"
	OutcomeTimeout   = "timeout"
	OutcomeTransport = "transport_error"
	OutcomeCanceled  = "canceled"
)

// Writer hands encoded frames to the connection.
type Writer interface {
	WriteMessage(data []byte) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(data []byte) error

func (f WriterFunc) WriteMessage(data []byte) error { return f(data) }

// Envelope supplies the namespace and credential stamped on every request.
type Envelope func() (namespace, token string)

// Result is the single terminal outcome of a request. Err is a
// *protocol.ProtocolError for server-reported failures.
type Result struct {
	Frame protocol.Frame
	Err   error
}

// Callback receives a request's Result exactly once.
type Callback func(Result)

// Observer receives request accounting; internal/metrics implements it.
type Observer interface {
	RequestStarted(msgType string)
	RequestDone(msgType, outcome string, elapsed time.Duration)
}

// Config configures a Dispatcher.
type Config struct {
	Timeout time.Duration // Per-request deadline (0 = none)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,
	}
}

// Option configures optional Dispatcher collaborators.
type Option func(*Dispatcher)

// WithObserver sets the request observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithTracer overrides the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

type pending struct {
	id       int64
	msgType  string
	issuedAt time.Time
	deadline time.Time
	cb       Callback
	timer    *time.Timer
	span     trace.Span
}

// Dispatcher correlates requests with responses.
type Dispatcher struct {
	cfg      Config
	writer   Writer
	envelope Envelope
	logger   *zap.Logger
	observer Observer
	tracer   trace.Tracer

	mu      sync.Mutex
	nextID  int64
	pending map[int64]*pending
}

// New creates a Dispatcher writing through w.
func New(cfg Config, w Writer, envelope Envelope, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if envelope == nil {
		envelope = func() (string, string) { return "", "" }
	}

	d := &Dispatcher{
		cfg:      cfg,
		writer:   w,
		envelope: envelope,
		logger:   logger.Named("dispatch"),
		observer: nopObserver{},
		tracer:   otel.Tracer("github.com/rickgao/lobby-client/internal/dispatch"),
		pending:  make(map[int64]*pending),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send frames and writes a request. It returns an error only when nothing
// was registered; once the id is returned, every outcome (including a
// failed write) reaches cb exactly once.
func (d *Dispatcher) Send(ctx context.Context, msgType string, payload any, cb Callback) (int64, error) {
	if cb == nil {
		cb = func(Result) {}
	}

	frame, err := protocol.NewFrame(msgType, 0, payload)
	if err != nil {
		return 0, err
	}
	frame.Namespace, frame.Token = d.envelope()

	_, span := d.tracer.Start(ctx, msgType, trace.WithSpanKind(trace.SpanKindClient))

	d.mu.Lock()
	id := d.allocateID()
	frame.ID = id
	data, err := protocol.Encode(frame)
	if err != nil {
		d.mu.Unlock()
		span.End()
		return 0, err
	}

	now := time.Now()
	p := &pending{
		id:       id,
		msgType:  msgType,
		issuedAt: now,
		cb:       cb,
		span:     span,
	}
	if d.cfg.Timeout > 0 {
		p.deadline = now.Add(d.cfg.Timeout)
		p.timer = time.AfterFunc(d.cfg.Timeout, func() {
			d.resolve(id, Result{Err: fmt.Errorf("%s: %w", msgType, ErrRequestTimeout)}, OutcomeTimeout)
		})
	}
	d.pending[id] = p
	d.mu.Unlock()

	span.SetAttributes(
		attribute.Int64("lobby.correlation_id", id),
		attribute.String("lobby.message_type", msgType),
	)
	d.observer.RequestStarted(msgType)

	if err := d.writer.WriteMessage(data); err != nil {
		d.resolve(id, Result{Err: fmt.Errorf("%s: %w: %w", msgType, ErrWriteFailed, err)}, OutcomeTransport)
	}

	return id, nil
}

// Call sends a request and waits for its result or ctx. When ctx ends first
// the pending entry is cancelled so the callback still fires exactly once.
func (d *Dispatcher) Call(ctx context.Context, msgType string, payload any) (protocol.Frame, error) {
	done := make(chan Result, 1)
	id, err := d.Send(ctx, msgType, payload, func(r Result) { done <- r })
	if err != nil {
		return protocol.Frame{}, err
	}

	select {
	case r := <-done:
		return r.Frame, r.Err
	case <-ctx.Done():
		d.Cancel(id, ctx.Err())
		r := <-done
		return r.Frame, r.Err
	}
}

// Resolve completes the request a response frame belongs to. It returns
// false when no request with that id is outstanding.
func (d *Dispatcher) Resolve(frame protocol.Frame) bool {
	res := Result{Frame: frame, Err: frame.Err()}
	outcome := OutcomeOK
	if res.Err != nil {
		outcome = OutcomeProtocol
	}

	if !d.resolve(frame.ID, res, outcome) {
		d.logger.Debug("response for unknown request",
			zap.Int64("id", frame.ID),
			zap.String("type", frame.Type),
		)
		return false
	}
	return true
}

// Cancel fails a single outstanding request with err.
func (d *Dispatcher) Cancel(id int64, err error) bool {
	return d.resolve(id, Result{Err: err}, OutcomeCanceled)
}

// FailAll resolves every outstanding request with err. Requests are failed
// in id order.
func (d *Dispatcher) FailAll(err error) int {
	d.mu.Lock()
	all := make([]*pending, 0, len(d.pending))
	for _, p := range d.pending {
		all = append(all, p)
	}
	d.pending = make(map[int64]*pending)
	d.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].id < all[j].id })
	for _, p := range all {
		d.complete(p, Result{Err: fmt.Errorf("%s: %w", p.msgType, err)}, OutcomeTransport)
	}

	if len(all) > 0 {
		d.logger.Debug("failed pending requests", zap.Int("count", len(all)), zap.Error(err))
	}
	return len(all)
}

// Pending returns the number of outstanding requests.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// allocateID returns the next free id. Must be called with lock held.
func (d *Dispatcher) allocateID() int64 {
	for {
		d.nextID++
		if d.nextID <= 0 {
			d.nextID = 1
		}
		if _, busy := d.pending[d.nextID]; !busy {
			return d.nextID
		}
	}
}

func (d *Dispatcher) resolve(id int64, res Result, outcome string) bool {
	d.mu.Lock()
	p, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	d.complete(p, res, outcome)
	return true
}

// complete runs outside the lock; p has already been removed from the map.
func (d *Dispatcher) complete(p *pending, res Result, outcome string) {
	if p.timer != nil {
		p.timer.Stop()
	}

	if res.Err != nil {
		p.span.RecordError(res.Err)
		p.span.SetStatus(codes.Error, outcome)
	}
	p.span.End()
	d.observer.RequestDone(p.msgType, outcome, time.Since(p.issuedAt))

	p.cb(res)
}

type nopObserver struct{}

func (nopObserver) RequestStarted(string) {}
func (nopObserver) RequestDone(string, string, time.Duration) {}
