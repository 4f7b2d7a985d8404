package telemetry_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/addressbridge/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, telemetry.ParseLevel(tt.in))
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := telemetry.NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

// counterValue returns the value of the counter name with the given labels.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetrics_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetricsWith(reg)

	m.ObserveRequest("get_address", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest("get_address", http.StatusOK, 10*time.Millisecond)
	m.ObserveRequest("get_address", 0, time.Millisecond)

	assert.Equal(t, float64(2), counterValue(t, reg, "addressbridge_requests_total",
		map[string]string{"operation": "get_address", "status": "200"}))
	assert.Equal(t, float64(1), counterValue(t, reg, "addressbridge_requests_total",
		map[string]string{"operation": "get_address", "status": "error"}))
}

func TestMetrics_RecordWebhook(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetricsWith(reg)

	m.RecordWebhook("address.updated", telemetry.WebhookAccepted)
	m.RecordWebhook("", telemetry.WebhookInvalidSignature)

	assert.Equal(t, float64(1), counterValue(t, reg, "addressbridge_webhooks_total",
		map[string]string{"event": "address.updated", "result": telemetry.WebhookAccepted}))
	assert.Equal(t, float64(1), counterValue(t, reg, "addressbridge_webhooks_total",
		map[string]string{"event": "unknown", "result": telemetry.WebhookInvalidSignature}))

	m.RecordWebhook("made.up", telemetry.WebhookAccepted)
	m.RecordWebhook("also.made.up", telemetry.WebhookAccepted)
	assert.Equal(t, float64(2), counterValue(t, reg, "addressbridge_webhooks_total",
		map[string]string{"event": "other", "result": telemetry.WebhookAccepted}))
}

func TestInitTracer_InvalidEndpoint(t *testing.T) {
	_, _, err := telemetry.InitTracer(context.Background(), "::not a url", "svc", "1.0.0")
	assert.Error(t, err)
}

func TestInitTracer(t *testing.T) {
	tracer, shutdown, err := telemetry.InitTracer(context.Background(), "http://127.0.0.1:4318", "svc", "1.0.0",
		attribute.String("bridge.app_id", "app_123"))
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}
