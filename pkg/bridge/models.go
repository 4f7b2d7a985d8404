package bridge

// ============================================================================
// Request options
// ============================================================================

// AuthorizationOptions describes the consent page a user is sent to.
type AuthorizationOptions struct {
	RedirectURI string
	// Scope lists the address fields requested; joined with single spaces.
	Scope []string
	// RawScope is used verbatim when set and takes precedence over Scope.
	RawScope         string
	ExpiryDays       int // 0 means 30
	MaxAccesses      int // 0 means unlimited, omitted from the URL
	PreferredChain   string
	State            string
	UseWalletConnect bool
}

// AddressOptions narrows an address lookup.
type AddressOptions struct {
	Fields                  []string
	IncludeVerificationInfo bool
	// AccessToken overrides the client token for this call only.
	AccessToken string
}

// WebhookOptions registers a webhook endpoint.
type WebhookOptions struct {
	URL    string
	Events []string
	Secret string
}

// LinkWalletOptions links the verified address to a blockchain wallet.
type LinkWalletOptions struct {
	WalletAddress              string
	ChainID                    int64
	CreateVerifiableCredential bool
}

// ShippingTokenOptions describes a blind shipping token.
type ShippingTokenOptions struct {
	Carriers            []string
	ShippingMethods     []string
	RequireConfirmation bool
	ExpiryDays          int // 0 means 7
	MaxUses             int // 0 means 1
}

// ShipmentOptions requests a shipment against a blind shipping token.
type ShipmentOptions struct {
	ShippingToken string
	Carrier       string
	Service       string
	// Package is forwarded as-is and must carry a "type" entry.
	Package map[string]any
}

// ============================================================================
// Responses
// ============================================================================

// TokenResponse is returned by Authenticate and ExchangeCode.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Address holds the fields the user agreed to share. Unshared fields are empty.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Permission describes the grant an access token carries.
type Permission struct {
	AccessExpiry   string `json:"access_expiry,omitempty"`
	AccessCount    int    `json:"access_count"`
	MaxAccessCount *int   `json:"max_access_count,omitempty"`
}

// Verification describes how the address was verified.
type Verification struct {
	Status         string `json:"status,omitempty"`
	Method         string `json:"method,omitempty"`
	Date           string `json:"date,omitempty"`
	PostalVerified bool   `json:"postal_verified"`
}

// AddressResponse is returned by GetAddress.
type AddressResponse struct {
	Address      Address       `json:"address"`
	Permission   *Permission   `json:"permission,omitempty"`
	Verification *Verification `json:"verification,omitempty"`
}

// TokenValidation is the result of ValidateToken. Error and Status are set
// only when Valid is false.
type TokenValidation struct {
	Valid          bool            `json:"valid"`
	Error          string          `json:"error,omitempty"`
	Status         int             `json:"status,omitempty"`
	AppID          string          `json:"app_id,omitempty"`
	AppName        string          `json:"app_name,omitempty"`
	AccessCount    int             `json:"access_count,omitempty"`
	MaxAccessCount *int            `json:"max_access_count,omitempty"`
	AccessExpiry   string          `json:"access_expiry,omitempty"`
	Permissions    map[string]bool `json:"permissions,omitempty"`
}

// WebhookRegistration is returned by RegisterWebhook.
type WebhookRegistration struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
	Secret    string   `json:"secret,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// WalletLink is returned by LinkWallet.
type WalletLink struct {
	LinkID               string         `json:"link_id"`
	ZKPVerified          bool           `json:"zkp_verified"`
	VerifiableCredential map[string]any `json:"verifiable_credential,omitempty"`
}

// UsageStats is returned by GetUsageStats.
type UsageStats struct {
	AccessCount    int    `json:"access_count"`
	MaxAccessCount *int   `json:"max_access_count,omitempty"`
	AccessExpiry   string `json:"access_expiry,omitempty"`
	LastAccessedAt string `json:"last_accessed_at,omitempty"`
	RequestsToday  int    `json:"requests_today,omitempty"`
}

// ShippingToken is returned by CreateBlindShippingToken.
type ShippingToken struct {
	ShippingToken       string   `json:"shipping_token"`
	ExpiresAt           string   `json:"expires_at,omitempty"`
	Carriers            []string `json:"carriers,omitempty"`
	ShippingMethods     []string `json:"shipping_methods,omitempty"`
	RequireConfirmation bool     `json:"require_confirmation"`
	MaxUses             int      `json:"max_uses,omitempty"`
}

// Shipment is returned by RequestShipment.
type Shipment struct {
	ShipmentID     string `json:"shipment_id,omitempty"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier,omitempty"`
	Service        string `json:"service,omitempty"`
	Status         string `json:"status,omitempty"`
	LabelURL       string `json:"label_url,omitempty"`
}

// TrackingEvent is one entry in a shipment's history.
type TrackingEvent struct {
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// TrackingInfo is returned by GetTrackingInfo.
type TrackingInfo struct {
	TrackingNumber    string          `json:"tracking_number"`
	Carrier           string          `json:"carrier,omitempty"`
	Status            string          `json:"status"`
	EstimatedDelivery string          `json:"estimated_delivery,omitempty"`
	History           []TrackingEvent `json:"tracking_history,omitempty"`
}

// DeliveryConfirmation is returned by ConfirmDelivery.
type DeliveryConfirmation struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier,omitempty"`
	Confirmed      bool   `json:"confirmed"`
	ConfirmedAt    string `json:"confirmed_at,omitempty"`
}
