// Package metrics provides Prometheus metrics for CloudMigrate Pro.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SignupsTotal      *prometheus.CounterVec
	LimitDenialsTotal *prometheus.CounterVec
	ReportsTotal      prometheus.Counter

	WebhooksTotal      *prometheus.CounterVec
	ProposalsSentTotal prometheus.Counter
	PDFRendersTotal    prometheus.Counter
	PDFRenderDuration  prometheus.Histogram
}

// Get returns the singleton Metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudmigrate_http_requests_total",
			Help: "Total HTTP requests by endpoint, method and status",
		}, []string{"endpoint", "method", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cloudmigrate_http_request_duration_seconds",
			Help:    "HTTP request latency by endpoint and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cloudmigrate_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),

		SignupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudmigrate_signups_total",
			Help: "Account signups by chosen plan",
		}, []string{"plan"}),
		LimitDenialsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudmigrate_limit_denials_total",
			Help: "Entitlement denials by limit dimension",
		}, []string{"dimension"}),
		ReportsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cloudmigrate_reports_generated_total",
			Help: "Migration reports generated",
		}),

		WebhooksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cloudmigrate_stripe_webhooks_total",
			Help: "Stripe webhook deliveries by type and outcome",
		}, []string{"type", "outcome"}),
		ProposalsSentTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cloudmigrate_proposals_sent_total",
			Help: "Proposals transitioned to sent",
		}),
		PDFRendersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cloudmigrate_pdf_renders_total",
			Help: "Proposal PDF documents rendered",
		}),
		PDFRenderDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cloudmigrate_pdf_render_duration_seconds",
			Help:    "Proposal PDF render latency",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(endpoint, method string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, statusLabel(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// RecordLimitDenial records one entitlement denial.
func (m *Metrics) RecordLimitDenial(dimension string) {
	m.LimitDenialsTotal.WithLabelValues(dimension).Inc()
}

// RecordWebhook records one processed webhook delivery.
func (m *Metrics) RecordWebhook(eventType, outcome string) {
	m.WebhooksTotal.WithLabelValues(eventType, outcome).Inc()
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
