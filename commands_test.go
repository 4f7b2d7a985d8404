package main

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/addressbridge/pkg/bridge"
)

func newTrackingClient(mockHTTP *bridge.MockHTTPClient) *bridge.Client {
	return bridge.NewWithHTTPClient(bridge.Config{AppID: "app", BaseURL: "https://api.test"}, mockHTTP, nil, nil)
}

func TestTrackAll_PreservesOrder(t *testing.T) {
	mockHTTP := bridge.NewMockHTTPClient()
	mockHTTP.OnDo = func(req *http.Request) (*http.Response, error) {
		number := req.URL.Query().Get("number")
		return bridge.JSONResponse(http.StatusOK, map[string]any{
			"tracking_number": number,
			"status":          "in_transit",
		}), nil
	}

	numbers := []string{"A1", "B2", "C3", "D4", "E5", "F6"}
	results, err := trackAll(context.Background(), newTrackingClient(mockHTTP), "usps", numbers)
	require.NoError(t, err)
	require.Len(t, results, len(numbers))
	for i, info := range results {
		assert.Equal(t, numbers[i], info.TrackingNumber)
	}
	assert.Equal(t, len(numbers), mockHTTP.Calls())
}

func TestTrackAll_Error(t *testing.T) {
	mockHTTP := bridge.NewMockHTTPClient()
	mockHTTP.OnDo = func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("number") == "BAD" {
			return bridge.JSONResponse(http.StatusNotFound, map[string]any{"error": "Shipment not found"}), nil
		}
		return bridge.JSONResponse(http.StatusOK, map[string]any{"status": "delivered"}), nil
	}

	_, err := trackAll(context.Background(), newTrackingClient(mockHTTP), "fedex", []string{"OK1", "BAD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracking BAD")
	assert.True(t, bridge.IsRemote(err))
}

func TestTrackAll_ValidationStopsBeforeTransport(t *testing.T) {
	mockHTTP := bridge.NewMockHTTPClient()

	_, err := trackAll(context.Background(), newTrackingClient(mockHTTP), "dhl", []string{"A1"})
	require.Error(t, err)
	assert.True(t, bridge.IsValidation(err))
	assert.Zero(t, mockHTTP.Calls())
}

func TestTrackAll_QueryEncoding(t *testing.T) {
	mockHTTP := bridge.NewMockHTTPClient()

	_, err := trackAll(context.Background(), newTrackingClient(mockHTTP), "ups", []string{"1Z 999&x"})
	require.NoError(t, err)

	u, err := url.Parse(mockHTTP.LastRequest().URL)
	require.NoError(t, err)
	assert.Equal(t, "1Z 999&x", u.Query().Get("number"))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]bool{"valid": true}))
	assert.Equal(t, "{\n  \"valid\": true\n}\n", buf.String())
}

func TestVerifySignature(t *testing.T) {
	client := newTrackingClient(bridge.NewMockHTTPClient())
	payload := []byte(`{"event":"address.updated"}`)

	out, err := verifySignature(client, bridge.SignWebhookPayload(payload, "whsec"), payload, "whsec")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"valid": true}, out)

	out, err = verifySignature(client, bridge.SignWebhookPayload(payload, "other"), payload, "whsec")
	assert.ErrorIs(t, err, errInvalidSignature)
	assert.Nil(t, out)
}
