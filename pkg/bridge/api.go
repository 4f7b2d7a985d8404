package bridge

import (
	"net/http"
	"time"
)

// HTTPClient is the transport collaborator every remote call goes through.
// *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer is notified once per remote call. Status is the HTTP status code,
// or zero when no response was received.
type Observer interface {
	ObserveRequest(operation string, status int, duration time.Duration)
}

// ============================================================================
// Wire payloads
// ============================================================================

// API paths, relative to /{version}.
const (
	pathAuth                = "/auth"
	pathToken               = "/token"
	pathAddress             = "/address"
	pathValidateToken       = "/validate-token"
	pathWebhooks            = "/webhooks"
	pathLinkWallet          = "/link-wallet"
	pathUsageStats          = "/usage-stats"
	pathCreateShippingToken = "/create-shipping-token"
	pathRequestShipment     = "/request-shipment"
	pathTracking            = "/tracking"
	pathConfirmDelivery     = "/confirm-delivery"
)

type authRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenRequest struct {
	AppID       string `json:"app_id"`
	AppSecret   string `json:"app_secret"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
	GrantType   string `json:"grant_type"`
}

type webhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

type linkWalletRequest struct {
	WalletAddress string `json:"wallet_address"`
	ChainID       int64  `json:"chain_id"`
	CreateVC      bool   `json:"create_vc"`
}

type shippingTokenRequest struct {
	Carriers            []string `json:"carriers"`
	ShippingMethods     []string `json:"shipping_methods"`
	RequireConfirmation bool     `json:"require_confirmation"`
	ExpiryDays          int      `json:"expiry_days"`
	MaxUses             int      `json:"max_uses"`
}

type shipmentRequest struct {
	ShippingToken string         `json:"shipping_token"`
	Carrier       string         `json:"carrier"`
	Service       string         `json:"service"`
	Package       map[string]any `json:"package"`
}

type confirmDeliveryRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}
