package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instrumentation for the assistant.
// Everything registers on a private registry so tests can construct
// multiple instances without collisions.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	chatMessages *prometheus.CounterVec

	sessionsAuthenticated prometheus.Counter
	sessionsExpired       prometheus.Counter
	sessionsEnded         prometheus.Counter
	activeSessions        prometheus.GaugeFunc
}

// NewMetrics builds and registers all collectors. activeSessions is
// polled on scrape; nil disables the gauge.
func NewMetrics(activeSessions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankassist",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bankassist",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		chatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankassist",
			Name:      "chat_messages_total",
			Help:      "Chat turns processed by channel and outcome.",
		}, []string{"channel", "outcome"}),
		sessionsAuthenticated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bankassist",
			Name:      "sessions_authenticated_total",
			Help:      "Sessions that completed PIN authentication.",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bankassist",
			Name:      "sessions_expired_total",
			Help:      "Sessions removed by inactivity timeout.",
		}),
		sessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bankassist",
			Name:      "sessions_ended_total",
			Help:      "Sessions ended explicitly by the caller.",
		}),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.chatMessages,
		m.sessionsAuthenticated, m.sessionsExpired, m.sessionsEnded)

	if activeSessions != nil {
		m.activeSessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "bankassist",
			Name:      "active_sessions",
			Help:      "Sessions currently holding authentication state.",
		}, func() float64 { return float64(activeSessions()) })
		reg.MustRegister(m.activeSessions)
	}

	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one completed HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// ObserveChatMessage records one processed chat turn.
func (m *Metrics) ObserveChatMessage(channel, outcome string) {
	m.chatMessages.WithLabelValues(channel, outcome).Inc()
}

// SessionAuthenticated increments the authentication counter.
func (m *Metrics) SessionAuthenticated() { m.sessionsAuthenticated.Inc() }

// SessionsExpired adds n expired sessions.
func (m *Metrics) SessionsExpired(n int) { m.sessionsExpired.Add(float64(n)) }

// SessionEnded increments the explicit-teardown counter.
func (m *Metrics) SessionEnded() { m.sessionsEnded.Inc() }
