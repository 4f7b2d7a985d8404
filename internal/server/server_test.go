package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/addressbridge/internal/server"
	"github.com/tournevent/addressbridge/internal/telemetry"
	"github.com/tournevent/addressbridge/pkg/bridge"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const testSecret = "whsec_test"

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	srv, _ := newTestServerWithRegistry(t)
	return srv
}

func newTestServerWithRegistry(t *testing.T) (*server.Server, *prometheus.Registry) {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	client := bridge.NewWithHTTPClient(bridge.Config{AppID: "app_123"}, bridge.NewMockHTTPClient(), logger, nil)
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetricsWith(reg)

	return server.New(server.Config{Port: 8080, WebhookSecret: testSecret}, client, logger, metrics), reg
}

// webhookSeries returns the label sets recorded for addressbridge_webhooks_total.
func webhookSeries(t *testing.T, reg *prometheus.Registry) []map[string]string {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var series []map[string]string
	for _, mf := range families {
		if mf.GetName() != "addressbridge_webhooks_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			series = append(series, labels)
		}
	}
	return series
}

func postWebhook(t *testing.T, srv *server.Server, body, signature, event string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(bridge.SignatureHeader, signature)
	}
	if event != "" {
		req.Header.Set(server.EventHeader, event)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Webhook_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, false, resp["received"])
	assert.NotEmpty(t, resp["error"])
}

func TestServer_Webhook_Accepted(t *testing.T) {
	srv := newTestServer(t)
	body := `{"event":"address.updated","data":{"user_id":"u_1"}}`

	rec := postWebhook(t, srv, body, bridge.SignWebhookPayload([]byte(body), testSecret), "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["received"])
	id, _ := resp["delivery_id"].(string)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestServer_Webhook_EventHeader(t *testing.T) {
	srv := newTestServer(t)
	body := `{"user_id":"u_1"}`

	rec := postWebhook(t, srv, body, bridge.SignWebhookPayload([]byte(body), testSecret), "permission.revoked")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Webhook_InvalidSignature(t *testing.T) {
	srv := newTestServer(t)
	body := `{"event":"address.updated"}`

	tests := []struct {
		name      string
		signature string
	}{
		{"missing", ""},
		{"wrong secret", bridge.SignWebhookPayload([]byte(body), "other")},
		{"signed different body", bridge.SignWebhookPayload([]byte(body+" "), testSecret)},
		{"garbage", "not-base64!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(t, srv, body, tt.signature, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestServer_Webhook_InvalidJSON(t *testing.T) {
	srv := newTestServer(t)
	body := `{invalid`

	rec := postWebhook(t, srv, body, bridge.SignWebhookPayload([]byte(body), testSecret), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp["error"], "Invalid JSON")
}

func TestServer_Webhook_UnsignedEventsShareOneSeries(t *testing.T) {
	srv, reg := newTestServerWithRegistry(t)
	body := `{"event":"address.updated"}`

	for i := 0; i < 50; i++ {
		rec := postWebhook(t, srv, body, "bogus", fmt.Sprintf("junk-%d", i))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	series := webhookSeries(t, reg)
	require.Len(t, series, 1)
	assert.Equal(t, "unknown", series[0]["event"])
	assert.Equal(t, telemetry.WebhookInvalidSignature, series[0]["result"])
}

func TestServer_Webhook_SignedUnknownEventsShareOneSeries(t *testing.T) {
	srv, reg := newTestServerWithRegistry(t)

	for i := 0; i < 10; i++ {
		body := fmt.Sprintf(`{"event":"custom.%d"}`, i)
		rec := postWebhook(t, srv, body, bridge.SignWebhookPayload([]byte(body), testSecret), "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	body := `{"event":"address.updated"}`
	postWebhook(t, srv, body, bridge.SignWebhookPayload([]byte(body), testSecret), "")

	events := map[string]bool{}
	for _, labels := range webhookSeries(t, reg) {
		events[labels["event"]] = true
	}
	assert.Equal(t, map[string]bool{"other": true, bridge.EventAddressUpdated: true}, events)
}

func TestServer_Webhook_PayloadTooLarge(t *testing.T) {
	srv := newTestServer(t)
	body := `{"event":"address.updated","data":"` + strings.Repeat("a", 1<<20) + `"}`

	rec := postWebhook(t, srv, body, bridge.SignWebhookPayload([]byte(body), testSecret), "")

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
