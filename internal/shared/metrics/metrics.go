package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Webhook metrics
	WebhookEventsTotal *prometheus.CounterVec

	// Worker metrics
	WorkerOrdersTotal *prometheus.CounterVec
	WorkerStepsTotal  *prometheus.CounterVec

	// Mailer metrics
	EmailsTotal *prometheus.CounterVec
}

// Webhook outcome labels.
const (
	WebhookRejectedSignature  = "rejected_signature"
	WebhookUnmatchedOrder     = "unmatched_order"
	WebhookVerificationFailed = "verification_failed"
	WebhookApplied            = "applied"
	WebhookNoStatus           = "no_status"
	WebhookFailed             = "failed"
)

// New creates a new Metrics instance with all metrics registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "printforge"
	}

	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		WebhookEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Total number of payment webhook notifications by outcome",
			},
			[]string{"provider", "outcome"},
		),

		WorkerOrdersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "worker",
				Name:      "orders_total",
				Help:      "Total number of orders claimed by the post-payment worker",
			},
			[]string{"outcome"}, // processed, failed
		),
		WorkerStepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "worker",
				Name:      "steps_total",
				Help:      "Total number of post-payment side-effect steps by result",
			},
			[]string{"step", "result"}, // step: previews, confirmation_email, tracking_email
		),

		EmailsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mailer",
				Name:      "emails_total",
				Help:      "Total number of outbound emails by kind and result",
			},
			[]string{"kind", "result"},
		),
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusLabel(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWebhookEvent records a webhook notification outcome.
func (m *Metrics) RecordWebhookEvent(provider, outcome string) {
	m.WebhookEventsTotal.WithLabelValues(provider, outcome).Inc()
}

func statusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
