package serve

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Request results.
const (
	resultHit         = "hit"
	resultMiss        = "miss"
	resultNotModified = "not_modified"
	resultError       = "error"
)

// Metrics are the Prometheus collectors of a Handler.
type Metrics struct {
	requests       *prometheus.CounterVec
	minifyDuration prometheus.Histogram
	bytesServed    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsmin_requests_total",
				Help: "Requests by result: hit, miss, not_modified or error",
			}, []string{"result"},
		),
		minifyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jsmin_minify_duration_seconds",
				Help:    "Time spent combining and minifying a build",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		bytesServed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jsmin_served_bytes_total",
				Help: "Bytes written in response bodies",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.minifyDuration, m.bytesServed)
	}
	return m
}
