package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricNameRequestsTotal   = "izposoja_api_requests_total"
	MetricNameRequestDuration = "izposoja_api_request_duration_seconds"

	LabelOperation = "operation"
	LabelCode      = "code"
)

// codeTransportError labels requests that never got a response.
const codeTransportError = "error"

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNameRequestsTotal,
				Help: "API requests by operation and response code",
			},
			[]string{LabelOperation, LabelCode},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricNameRequestDuration,
				Help:    "API request latency by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{LabelOperation},
		),
	}
}

// observe is a no-op on a nil receiver so the client works without metrics.
func (m *metrics) observe(op, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, code).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
