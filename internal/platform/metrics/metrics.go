package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RequestsCreated   prometheus.Counter
	RequestsApproved  *prometheus.CounterVec
	RequestsRejected  prometheus.Counter
	RequestsExpired   prometheus.Counter
	RequestsCompleted prometheus.Counter

	FieldsRevealed      prometheus.Counter
	MatchAttempts       *prometheus.CounterVec
	OwnershipVerified   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "askme_requests_created_total",
			Help: "Total number of verification requests created",
		}),
		RequestsApproved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "askme_requests_approved_total",
			Help: "Total number of verification requests approved, by disclosure mode",
		}, []string{"mode"}),
		RequestsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "askme_requests_rejected_total",
			Help: "Total number of verification requests rejected",
		}),
		RequestsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "askme_requests_expired_total",
			Help: "Total number of verification requests expired by the sweep",
		}),
		RequestsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "askme_requests_completed_total",
			Help: "Total number of verification requests completed",
		}),
		FieldsRevealed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "askme_fields_revealed_total",
			Help: "Total number of field values disclosed to verifiers",
		}),
		MatchAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "askme_match_attempts_total",
			Help: "Total number of no-reveal guess attempts, by outcome",
		}, []string{"outcome"}),
		OwnershipVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "askme_ownership_verifications_total",
			Help: "Total number of name ownership verification attempts, by outcome",
		}, []string{"outcome"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "askme_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
