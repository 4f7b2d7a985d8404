package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
)

// RecordedRequest is a request captured by MockHTTPClient, with its body
// already read.
type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// MockHTTPClient is an HTTPClient for tests. By default it answers every
// request with 200 and an empty JSON object.
type MockHTTPClient struct {
	SimulateErrors bool

	// OnDo overrides the response for each request.
	OnDo func(req *http.Request) (*http.Response, error)

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewMockHTTPClient creates a mock HTTP client with default behavior.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// Do records req and returns the mocked response.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	rec := RecordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
	}
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		rec.Body = body
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	m.mu.Unlock()

	if m.SimulateErrors {
		return nil, errors.New("simulated transport error")
	}
	if m.OnDo != nil {
		return m.OnDo(req)
	}
	return JSONResponse(http.StatusOK, map[string]any{}), nil
}

// Calls returns the number of requests received.
func (m *MockHTTPClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests in arrival order.
func (m *MockHTTPClient) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or nil if none arrived.
func (m *MockHTTPClient) LastRequest() *RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	r := m.requests[len(m.requests)-1]
	return &r
}

// JSONResponse builds an *http.Response with v encoded as the JSON body.
func JSONResponse(status int, v any) *http.Response {
	body, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

var _ HTTPClient = (*MockHTTPClient)(nil)
