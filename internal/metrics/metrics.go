// Package metrics exposes broker counters to Prometheus.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is nil-safe: every method on a nil *Metrics does nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	RoomsLive           prometheus.Gauge
	RoomsCreated        prometheus.Counter
	WsConnections       prometheus.Gauge
	SignalsTotal        *prometheus.CounterVec
	ChatMessagesTotal   prometheus.Counter
	ChatDeliveriesTotal *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to stay off the global registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		RoomsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meet_rooms_live",
			Help: "Rooms currently present in the registry",
		}),
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meet_rooms_created_total",
			Help: "Rooms created on first join",
		}),
		WsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meet_ws_connections",
			Help: "Current number of active websocket connections",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meet_signals_total",
			Help: "Directed negotiation messages by kind and outcome",
		}, []string{"kind", "outcome"}),
		ChatMessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meet_chat_messages_total",
			Help: "Chat messages appended to history",
		}),
		ChatDeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meet_chat_deliveries_total",
			Help: "Chat fan-out deliveries by outcome",
		}, []string{"outcome"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meet_errors_total",
			Help: "Errors reported to clients by kind",
		}, []string{"kind"}),
		HttpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HttpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	reg.MustRegister(
		m.RoomsLive, m.RoomsCreated, m.WsConnections, m.SignalsTotal,
		m.ChatMessagesTotal, m.ChatDeliveriesTotal, m.ErrorsTotal,
		m.HttpRequestsTotal, m.HttpRequestDuration,
	)
	return m
}

func (m *Metrics) RoomCreated(string) {
	if m == nil {
		return
	}
	m.RoomsLive.Inc()
	m.RoomsCreated.Inc()
}

func (m *Metrics) RoomRemoved(string) {
	if m == nil {
		return
	}
	m.RoomsLive.Dec()
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.WsConnections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.WsConnections.Dec()
	}
}

func (m *Metrics) Signal(kind, outcome string) {
	if m != nil {
		m.SignalsTotal.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) ChatAppended() {
	if m != nil {
		m.ChatMessagesTotal.Inc()
	}
}

func (m *Metrics) ChatDelivered(ok bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !ok {
		outcome = "dropped"
	}
	m.ChatDeliveriesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Error(kind string) {
	if m != nil {
		m.ErrorsTotal.WithLabelValues(kind).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		labels := prometheus.Labels{"method": r.Method, "path": path, "status": strconv.Itoa(sw.status)}
		m.HttpRequestsTotal.With(labels).Inc()
		m.HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack keeps websocket upgrades working behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
