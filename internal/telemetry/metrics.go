package telemetry

import (
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tournevent/addressbridge/pkg/bridge"
)

// Webhook verification results.
const (
	WebhookAccepted         = "accepted"
	WebhookInvalidSignature = "invalid_signature"
	WebhookInvalidPayload   = "invalid_payload"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	WebhooksTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers metrics with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "addressbridge_requests_total",
				Help: "Total number of Bridge API requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "addressbridge_request_duration_seconds",
				Help:    "Bridge API request duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "addressbridge_webhooks_total",
				Help: "Total webhook deliveries received by event and result",
			},
			[]string{"event", "result"},
		),
	}
}

// ObserveRequest records one Bridge API request. A zero status means the
// request never got a response.
func (m *Metrics) ObserveRequest(operation string, status int, duration time.Duration) {
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(operation, label).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWebhook records a webhook delivery. The event label is limited to
// bridge.WebhookEvents: an empty event is "unknown" and anything else "other".
func (m *Metrics) RecordWebhook(event, result string) {
	m.WebhooksTotal.WithLabelValues(webhookEventLabel(event), result).Inc()
}

func webhookEventLabel(event string) string {
	switch {
	case event == "":
		return "unknown"
	case slices.Contains(bridge.WebhookEvents, event):
		return event
	default:
		return "other"
	}
}

var _ bridge.Observer = (*Metrics)(nil)
