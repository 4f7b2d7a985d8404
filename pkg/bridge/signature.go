package bridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// SignatureHeader carries the webhook signature on deliveries.
const SignatureHeader = "X-Signature"

// Webhook event types.
const (
	EventAddressVerified   = "address.verified"
	EventAddressUpdated    = "address.updated"
	EventAddressAccessed   = "address.accessed"
	EventPermissionCreated = "permission.created"
	EventPermissionRevoked = "permission.revoked"
)

// WebhookEvents lists every event type a webhook can subscribe to.
var WebhookEvents = []string{
	EventAddressVerified,
	EventAddressUpdated,
	EventAddressAccessed,
	EventPermissionCreated,
	EventPermissionRevoked,
}

// SignWebhookPayload returns base64(HMAC-SHA256(secret, payload)), the value
// the API sends in SignatureHeader.
func SignWebhookPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature reports whether signature matches the raw payload
// under secret. The comparison runs in constant time. It never panics; any
// internal failure counts as a mismatch.
func VerifyWebhookSignature(signature string, payload []byte, secret string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	expected := SignWebhookPayload(payload, secret)
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}
