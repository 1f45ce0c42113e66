// Package metrics exposes Prometheus collectors for the lobby client.
//
// A Metrics value implements the observer interfaces of the dispatcher, the
// push router and the connection manager, so it can be handed to each of
// them directly.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/lobby-client/internal/connection"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "lobby_client"

// Metrics holds the client's collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	requestsInflight *prometheus.GaugeVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	pushesRouted     *prometheus.CounterVec
	pushesDropped    *prometheus.CounterVec
	state            *prometheus.GaugeVec
	transitions      *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers all collectors under namespace ns.
func New(ns string) *Metrics {
	if ns == "" {
		ns = DefaultNamespace
	}
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry:  r,
		namespace: ns,
		requestsInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "requests_inflight",
			Help: "Requests awaiting a response.",
		}, []string{"type"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "requests_total",
			Help: "Completed requests by outcome.",
		}, []string{"type", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "request_duration_seconds",
			Help:    "Time from send to outcome.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"type", "outcome"}),
		pushesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "pushes_routed_total",
			Help: "Server pushes delivered to handlers.",
		}, []string{"type"}),
		pushesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "pushes_dropped_total",
			Help: "Server pushes discarded before delivery.",
		}, []string{"type", "reason"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "connection_state",
			Help: "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "connection_transitions_total",
			Help: "Connection state transitions.",
		}, []string{"from", "to"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "http_requests_total",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "http_request_duration_seconds",
		}, []string{"method", "route", "status"}),
	}
	r.MustRegister(
		m.requestsInflight, m.requestsTotal, m.requestDuration,
		m.pushesRouted, m.pushesDropped,
		m.state, m.transitions,
		m.httpRequests, m.httpDuration,
	)
	m.StateChanged(connection.StateDisconnected, connection.StateDisconnected)
	return m
}

// RequestStarted implements dispatch.Observer.
func (m *Metrics) RequestStarted(msgType string) {
	m.requestsInflight.WithLabelValues(msgType).Inc()
}

// RequestDone implements dispatch.Observer.
func (m *Metrics) RequestDone(msgType, outcome string, elapsed time.Duration) {
	m.requestsInflight.WithLabelValues(msgType).Dec()
	m.requestsTotal.WithLabelValues(msgType, outcome).Inc()
	m.requestDuration.WithLabelValues(msgType, outcome).Observe(elapsed.Seconds())
}

// PushRouted implements notify.Observer.
func (m *Metrics) PushRouted(msgType string) {
	m.pushesRouted.WithLabelValues(msgType).Inc()
}

// PushDropped implements notify.Observer.
func (m *Metrics) PushDropped(msgType, reason string) {
	m.pushesDropped.WithLabelValues(msgType, reason).Inc()
}

// StateChanged implements connection.StateObserver.
func (m *Metrics) StateChanged(from, to connection.State) {
	for _, s := range []connection.State{
		connection.StateDisconnected,
		connection.StateConnecting,
		connection.StateConnected,
		connection.StateDisconnecting,
	} {
		v := 0.0
		if s == to {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
	if from != to {
		m.transitions.WithLabelValues(from.String(), to.String()).Inc()
	}
}

// TrackManager exports live gauges read from a manager's stats.
func (m *Metrics) TrackManager(stats func() connection.ManagerStats) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace, Name: "pending_requests",
			Help: "Requests registered in the dispatcher.",
		}, func() float64 { return float64(stats().PendingRequests) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace, Name: "inbound_queue_depth",
			Help: "Frames received but not yet processed.",
		}, func() float64 { return float64(stats().InboundQueued) }),
	)
}

// Middleware records HTTP request counts and latency for gin routes.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
