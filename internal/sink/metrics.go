package sink

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels recorded per submission.
const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Metrics holds the sink's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	quotes   *prometheus.CounterVec   // by form and outcome
	duration *prometheus.HistogramVec // by route
}

// NewMetrics creates and registers the sink collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formwizard",
			Subsystem: "sink",
			Name:      "quotes_total",
			Help:      "Quote requests received, by form and outcome",
		}, []string{"form", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "formwizard",
			Subsystem: "sink",
			Name:      "request_duration_seconds",
			Help:      "Time spent handling sink requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(m.quotes, m.duration)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) recordQuote(form, outcome string) {
	m.quotes.WithLabelValues(form, outcome).Inc()
}

func (m *Metrics) observe(route string, start time.Time) {
	m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
