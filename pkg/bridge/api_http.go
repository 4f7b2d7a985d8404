package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// call describes a single API request.
type call struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
	// token is sent as a bearer token when non-empty.
	token string
	// fallback is the error message used when the server gives none.
	fallback string
}

// endpoint returns the absolute URL for path under the configured version.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + c.apiVersion + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do performs the request described by cl and decodes a successful body into out.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	ctx, span := c.tracer.Start(ctx, "bridge."+cl.operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", cl.method),
			attribute.String("url.path", "/"+c.apiVersion+cl.path),
		),
	)
	defer span.End()

	req, err := c.newRequest(ctx, cl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(cl.operation, 0, time.Since(start))
		c.logger.Ctx(ctx).Error("Bridge API request failed",
			zap.String("operation", cl.operation),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return &RemoteError{
			Operation: cl.operation,
			Code:      "TRANSPORT",
			Message:   cl.fallback,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	c.observe(cl.operation, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remoteErr := parseError(cl, resp)
		c.logger.Ctx(ctx).Warn("Bridge API returned an error",
			zap.String("operation", cl.operation),
			zap.Int("status", resp.StatusCode),
			zap.String("message", remoteErr.Message),
		)
		span.SetStatus(codes.Error, remoteErr.Message)
		return remoteErr
	}

	if err := decodeBody(resp.Body, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode error")
		return &RemoteError{
			Operation:  cl.operation,
			StatusCode: resp.StatusCode,
			Code:       "DECODE",
			Message:    "invalid response body",
			Cause:      err,
		}
	}
	return nil
}

// newRequest builds the HTTP request with the standard bridge headers.
func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, error) {
	var bodyReader io.Reader
	if cl.body != nil {
		jsonBody, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request body: %w", cl.operation, err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.endpoint(cl.path, cl.query), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", cl.operation, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-App-ID", c.appID)
	req.Header.Set("X-SDK-Version", SDKVersion)
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	return req, nil
}

func (c *Client) observe(operation string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(operation, status, d)
	}
}

// envelope is the {"success":..,"data":..} wrapper some endpoints use.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// decodeBody decodes body into out, unwrapping the success envelope when present.
func decodeBody(body io.Reader, out any) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Success != nil && len(env.Data) > 0 {
		raw = env.Data
	}
	return json.Unmarshal(raw, out)
}

// parseError extracts the server-provided message from an error response.
// It understands {"error":"msg"}, {"error":{"code":..,"message":..}} and
// {"message":"msg"}.
func parseError(cl call, resp *http.Response) *RemoteError {
	remoteErr := &RemoteError{
		Operation:  cl.operation,
		StatusCode: resp.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    cl.fallback,
	}

	body, _ := io.ReadAll(resp.Body)

	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Code    string          `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return remoteErr
	}

	if payload.Code != "" {
		remoteErr.Code = payload.Code
	}

	var msg string
	if len(payload.Error) > 0 {
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil {
			msg = s
		} else {
			var detail struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(payload.Error, &detail); err == nil {
				msg = detail.Message
				if detail.Code != "" {
					remoteErr.Code = detail.Code
				}
			}
		}
	}
	if msg == "" {
		msg = payload.Message
	}
	if msg != "" {
		remoteErr.Message = msg
	}
	return remoteErr
}
