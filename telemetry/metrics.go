package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the process-wide Prometheus collectors the gateway
// registers on startup, generalizing the donor main.go's single
// RequestsRouted counter with a request-duration histogram.
type Metrics struct {
	RequestsRouted   *prometheus.CounterVec
	RequestsDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		RequestsRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_routed_total",
			Help: "The total number of routed requests",
		}, []string{"method", "path", "code"}),
		RequestsDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "gateway_request_duration_seconds",
			Help: "Request handling duration in seconds",
		}),
	}
}
