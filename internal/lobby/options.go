package lobby

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/config"
	"github.com/rickgao/lobby-client/internal/connection"
	"github.com/rickgao/lobby-client/internal/metrics"
	"github.com/rickgao/lobby-client/internal/session"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	sources       []session.RevocationSource
	clientFactory connection.ClientFactory
	clock         func() time.Time
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records requests, pushes and state transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer records a span per request.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithRevocationSource adds a source that can invalidate the session.
func WithRevocationSource(s session.RevocationSource) Option {
	return func(o *options) { o.sources = append(o.sources, s) }
}

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f connection.ClientFactory) Option {
	return func(o *options) { o.clientFactory = f }
}

// WithClock overrides the time source used for credential expiry and
// matchmaking bans.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// ConfigFrom maps file configuration onto the connection manager.
func ConfigFrom(cfg *config.Config) connection.ManagerConfig {
	mc := connection.DefaultManagerConfig()
	mc.Namespace = cfg.Lobby.Namespace
	mc.ConnectTimeout = cfg.Connection.ConnectTimeout
	mc.RequestTimeout = cfg.Connection.RequestTimeout
	mc.Client.URL = cfg.Lobby.URL
	mc.Client.Token = cfg.Lobby.Token
	mc.Client.ClientID = cfg.Lobby.ClientID
	mc.Client.PingInterval = cfg.Connection.PingInterval
	mc.Client.PongTimeout = cfg.Connection.PongTimeout
	mc.Client.WriteTimeout = cfg.Connection.WriteTimeout
	mc.Client.BufferSize = cfg.Connection.BufferSize
	return mc
}
