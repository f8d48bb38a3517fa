package httpexec

import (
	"time"

	"archie-core-marketplace-layer/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_requests_total",
		Help: "Total number of outbound marketplace requests",
	}, []string{"marketplace", "status_class"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_request_duration_seconds",
		Help:    "Duration of outbound marketplace requests",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"marketplace"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_request_retries_total",
		Help: "Total number of retried marketplace request attempts",
	}, []string{"marketplace"})
)

func recordRequest(m domain.Marketplace, statusCode int, err error, d time.Duration) {
	requestsTotal.WithLabelValues(string(m), classifyStatus(statusCode, err)).Inc()
	requestDuration.WithLabelValues(string(m)).Observe(d.Seconds())
}

func classifyStatus(statusCode int, err error) string {
	switch {
	case err != nil && statusCode == 0:
		return "error"
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}
