package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics bundles the Prometheus collectors exposed on /metrics.
type metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	decisions *prometheus.CounterVec
	bulkItems *prometheus.CounterVec
}

// newMetrics builds a self-contained registry so parallel test servers
// never collide on collector registration.
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_http_requests_total",
				Help: "Total count of HTTP requests received.",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "switchboard_http_request_duration_seconds",
				Help:    "Histogram of request durations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "switchboard_http_inflight_requests",
			Help: "Number of requests currently being handled.",
		}),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_routing_decisions_total",
				Help: "Assignment decisions by outcome.",
			},
			[]string{"outcome"},
		),
		bulkItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_bulk_items_total",
				Help: "Bulk operation items by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.inFlight, m.decisions, m.bulkItems)
	return m
}

// handler exposes /metrics from this server's registry.
func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// instrument counts and times every request. Route templates keep the
// label cardinality bounded; unmatched paths collapse into one bucket.
func (m *metrics) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		c.Next()
		elapsed := time.Since(start).Seconds()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := []string{c.Request.Method, path, strconv.Itoa(c.Writer.Status())}
		m.requests.WithLabelValues(labels...).Inc()
		m.duration.WithLabelValues(labels...).Observe(elapsed)
	}
}

// countDecision records one assignment outcome.
func (m *metrics) countDecision(outcome string) {
	m.decisions.WithLabelValues(outcome).Inc()
}

// countBulk records bulk item outcomes for one action.
func (m *metrics) countBulk(action string, succeeded, failed int) {
	if succeeded > 0 {
		m.bulkItems.WithLabelValues(action, "succeeded").Add(float64(succeeded))
	}
	if failed > 0 {
		m.bulkItems.WithLabelValues(action, "failed").Add(float64(failed))
	}
}
