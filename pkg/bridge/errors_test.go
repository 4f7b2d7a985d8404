package bridge_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/addressbridge/pkg/bridge"
)

func TestValidationError_Is(t *testing.T) {
	err := &bridge.ValidationError{Field: "carrier", Message: "invalid or unsupported carrier"}

	assert.True(t, errors.Is(err, bridge.ErrValidation))
	assert.True(t, errors.Is(err, &bridge.ValidationError{Field: "carrier"}))
	assert.False(t, errors.Is(err, &bridge.ValidationError{Field: "service"}))
	assert.False(t, errors.Is(err, bridge.ErrRemote))
	assert.Equal(t, "invalid or unsupported carrier", err.Error())
}

func TestAuthenticationRequiredError(t *testing.T) {
	err := &bridge.AuthenticationRequiredError{Operation: "get_usage_stats"}

	assert.True(t, bridge.IsAuthenticationRequired(err))
	assert.False(t, bridge.IsValidation(err))
	assert.Contains(t, err.Error(), "get_usage_stats")
}

func TestRemoteError_Error(t *testing.T) {
	err := &bridge.RemoteError{Operation: "get_address", StatusCode: 401, Code: "unauthorized", Message: "Invalid access token"}
	assert.Equal(t, "get_address (401): Invalid access token", err.Error())
}

func TestRemoteError_ErrorWithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := &bridge.RemoteError{Operation: "authenticate", Code: "TRANSPORT", Message: "failed to authenticate", Cause: cause}

	assert.Contains(t, err.Error(), "failed to authenticate")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause))
}

func TestRemoteError_Is(t *testing.T) {
	err1 := &bridge.RemoteError{Operation: "get_address", Code: "rate_limit_exceeded"}
	err2 := &bridge.RemoteError{Operation: "link_wallet", Code: "rate_limit_exceeded"}
	err3 := &bridge.RemoteError{Operation: "link_wallet", Code: "server_error"}

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
	assert.True(t, bridge.IsRemote(err1))
}

func TestErrorKinds_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("creating token: %w", &bridge.ValidationError{Field: "carriers", Message: "bad"})

	assert.True(t, bridge.IsValidation(wrapped))
	assert.False(t, bridge.IsRemote(wrapped))
	assert.False(t, bridge.IsAuthenticationRequired(wrapped))

	var vErr *bridge.ValidationError
	assert.True(t, errors.As(wrapped, &vErr))
	assert.Equal(t, "carriers", vErr.Field)
}
