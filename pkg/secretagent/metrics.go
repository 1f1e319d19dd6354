package secretagent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records secret requests made through a Client. A nil *Metrics
// records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the client collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secagent_requests_total",
				Help: "Total number of secret requests by outcome",
			},
			[]string{"outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secagent_request_duration_seconds",
				Help:    "Duration of secret requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) record(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := outcomeLabel(err)
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	switch KindOf(err) {
	case KindBadRequest:
		return "bad_request"
	case KindConnectionFailed:
		return "connection_failed"
	case KindIO:
		return "io_error"
	case KindProtocol:
		return "protocol_error"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
