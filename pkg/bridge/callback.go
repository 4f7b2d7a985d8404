package bridge

import (
	"crypto/subtle"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Callback error codes.
const (
	CallbackMissingToken = "missing_token"
	CallbackInvalidState = "invalid_state"
	CallbackInvalidURL   = "invalid_url"
)

// CallbackResult is the outcome of a successful authorization redirect.
// Either AccessToken or Code is set, depending on the grant.
type CallbackResult struct {
	AccessToken string
	Code        string
	State       string
}

// CallbackError is returned when the redirect reports a failure or cannot be trusted.
type CallbackError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	if e.Description == "" {
		return "authorization callback: " + e.Code
	}
	return fmt.Sprintf("authorization callback: %s: %s", e.Code, e.Description)
}

// NewState returns a random value for the authorization state parameter.
func NewState() string {
	return uuid.NewString()
}

// ParseCallback reads the authorization redirect URL. When expectedState is
// non-empty the returned state must match it.
func ParseCallback(rawURL, expectedState string) (*CallbackResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &CallbackError{Code: CallbackInvalidURL, Description: err.Error()}
	}
	q := u.Query()

	if e := q.Get("error"); e != "" {
		return nil, &CallbackError{Code: e, Description: q.Get("error_description")}
	}

	result := &CallbackResult{
		AccessToken: q.Get("access_token"),
		Code:        q.Get("code"),
		State:       q.Get("state"),
	}
	if result.AccessToken == "" && result.Code == "" {
		return nil, &CallbackError{
			Code:        CallbackMissingToken,
			Description: "no access token or code found in the callback URL",
		}
	}

	if expectedState != "" &&
		subtle.ConstantTimeCompare([]byte(result.State), []byte(expectedState)) != 1 {
		return nil, &CallbackError{
			Code:        CallbackInvalidState,
			Description: "state parameter does not match the one sent in the request",
		}
	}

	return result, nil
}

// HandleCallback parses the redirect and stores the access token it carries,
// if any. A code-only redirect leaves the client token untouched; pass the
// code to ExchangeCode.
func (c *Client) HandleCallback(rawURL, expectedState string) (*CallbackResult, error) {
	result, err := ParseCallback(rawURL, expectedState)
	if err != nil {
		return nil, err
	}
	if result.AccessToken != "" {
		c.SetAccessToken(result.AccessToken)
	}
	return result, nil
}
