// Package bridge is a client for the SecureAddress Bridge API: verified
// address access, wallet linking, blind shipping and webhook signatures.
package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SDKVersion is sent in the X-SDK-Version header.
const SDKVersion = "1.0.0"

const (
	DefaultBaseURL    = "https://api.secureaddress.bridge"
	DefaultAPIVersion = "v1"
	DefaultTimeout    = 30 * time.Second

	defaultAuthorizationExpiryDays = 30
	defaultShippingExpiryDays      = 7
	defaultShippingMaxUses         = 1
)

const tracerName = "github.com/tournevent/addressbridge/pkg/bridge"

// Config holds client configuration. Zero values select the defaults.
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string
	// APIVersion is the path prefix for every endpoint, e.g. "v1".
	APIVersion        string
	SupportedChains   []string
	SupportedCarriers []string
	// ShippingMethods replaces the built-in carrier table when non-empty.
	ShippingMethods CarrierTable
	AccessToken     string
	// Timeout applies to the default HTTP client only.
	Timeout time.Duration
}

// Client is the SecureAddress Bridge API client. Every remote method performs
// exactly one synchronous HTTP request. The access token may be replaced
// between calls; everything else is fixed at construction.
type Client struct {
	appID      string
	appSecret  string
	baseURL    string
	apiVersion string
	chains     []string
	carriers   []string
	methods    CarrierTable

	httpClient HTTPClient
	observer   Observer
	logger     *otelzap.Logger
	tracer     trace.Tracer

	mu          sync.RWMutex
	accessToken string
}

// New creates a client that talks to the API over net/http.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return NewWithHTTPClient(cfg, &http.Client{Timeout: timeout}, logger, tracer)
}

// NewWithHTTPClient creates a client with a custom transport.
// This is useful for injecting mock clients in tests.
func NewWithHTTPClient(cfg Config, httpClient HTTPClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	chains := slices.Clone(cfg.SupportedChains)
	if len(chains) == 0 {
		chains = []string{"ethereum"}
	}
	carriers := slices.Clone(cfg.SupportedCarriers)
	if len(carriers) == 0 {
		carriers = []string{CarrierUSPS, CarrierFedEx, CarrierUPS}
	}
	methods := cfg.ShippingMethods
	if methods.Len() == 0 {
		methods = DefaultCarrierTable()
	}

	return &Client{
		appID:       cfg.AppID,
		appSecret:   cfg.AppSecret,
		baseURL:     baseURL,
		apiVersion:  apiVersion,
		chains:      chains,
		carriers:    carriers,
		methods:     methods,
		httpClient:  httpClient,
		logger:      logger,
		tracer:      tracer,
		accessToken: cfg.AccessToken,
	}
}

// WithObserver sets the request observer and returns the client.
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// SetAccessToken replaces the token used by authenticated calls.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// AccessToken returns the current access token, or "" if none is set.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// AppID returns the configured application ID.
func (c *Client) AppID() string {
	return c.appID
}

// Chains returns the supported chain identifiers.
func (c *Client) Chains() []string {
	return slices.Clone(c.chains)
}

// Carriers returns the supported carrier identifiers.
func (c *Client) Carriers() []string {
	return slices.Clone(c.carriers)
}

// ShippingMethods returns the valid shipping methods for carrier.
func (c *Client) ShippingMethods(carrier string) []string {
	return c.methods.Methods(carrier)
}

// SupportsCarrier reports whether carrier is in the supported set.
func (c *Client) SupportsCarrier(carrier string) bool {
	return slices.Contains(c.carriers, carrier)
}

// SupportsChain reports whether chain is in the supported set.
func (c *Client) SupportsChain(chain string) bool {
	return slices.Contains(c.chains, chain)
}

// requireToken returns the current token or an AuthenticationRequiredError.
func (c *Client) requireToken(operation string) (string, error) {
	token := c.AccessToken()
	if token == "" {
		return "", &AuthenticationRequiredError{Operation: operation}
	}
	return token, nil
}

// ============================================================================
// Authorization
// ============================================================================

// Authenticate exchanges the app credentials for an access token and stores it.
func (c *Client) Authenticate(ctx context.Context) (*TokenResponse, error) {
	c.logger.Ctx(ctx).Info("Authenticating with Bridge API", zap.String("app_id", c.appID))

	var resp TokenResponse
	err := c.do(ctx, call{
		operation: "authenticate",
		method:    http.MethodPost,
		path:      pathAuth,
		body:      authRequest{AppID: c.appID, AppSecret: c.appSecret},
		fallback:  "failed to authenticate",
	}, &resp)
	if err != nil {
		return nil, err
	}

	c.SetAccessToken(resp.AccessToken)
	return &resp, nil
}

// AuthorizationURL builds the consent page URL a user is redirected to.
// An unsupported PreferredChain is dropped rather than rejected.
func (c *Client) AuthorizationURL(opts AuthorizationOptions) (string, error) {
	if opts.RedirectURI == "" {
		return "", newValidationError("redirect_uri", "redirect_uri is required")
	}

	scope := opts.RawScope
	if scope == "" {
		scope = strings.Join(opts.Scope, " ")
	}
	if scope == "" {
		return "", newValidationError("scope", "scope is required")
	}

	expiryDays := opts.ExpiryDays
	if expiryDays == 0 {
		expiryDays = defaultAuthorizationExpiryDays
	}

	params := url.Values{}
	params.Set("app_id", c.appID)
	params.Set("redirect_uri", opts.RedirectURI)
	params.Set("scope", scope)
	params.Set("expiry_days", strconv.Itoa(expiryDays))
	params.Set("version", c.apiVersion)
	if opts.MaxAccesses > 0 {
		params.Set("max_accesses", strconv.Itoa(opts.MaxAccesses))
	}
	if opts.UseWalletConnect {
		params.Set("wallet_connect", "true")
	}
	if opts.PreferredChain != "" && c.SupportsChain(opts.PreferredChain) {
		params.Set("preferred_chain", opts.PreferredChain)
	}
	if opts.State != "" {
		params.Set("state", opts.State)
	}

	return c.baseURL + "/authorize?" + params.Encode(), nil
}

// ExchangeCode trades an authorization code for an access token and stores it.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	if code == "" {
		return nil, newValidationError("code", "code is required")
	}
	if redirectURI == "" {
		return nil, newValidationError("redirect_uri", "redirect_uri is required")
	}

	c.logger.Ctx(ctx).Info("Exchanging authorization code", zap.String("app_id", c.appID))

	var resp TokenResponse
	err := c.do(ctx, call{
		operation: "exchange_code",
		method:    http.MethodPost,
		path:      pathToken,
		body: tokenRequest{
			AppID:       c.appID,
			AppSecret:   c.appSecret,
			Code:        code,
			RedirectURI: redirectURI,
			GrantType:   "authorization_code",
		},
		fallback: "failed to exchange code",
	}, &resp)
	if err != nil {
		return nil, err
	}

	c.SetAccessToken(resp.AccessToken)
	return &resp, nil
}

// ValidateToken checks token with the API, falling back to the client token
// when token is empty. It never returns an error: failures are reported in
// the result.
func (c *Client) ValidateToken(ctx context.Context, token string) *TokenValidation {
	if token == "" {
		token = c.AccessToken()
	}
	if token == "" {
		return &TokenValidation{Valid: false, Error: "No access token provided"}
	}

	// Valid shadows the embedded field so an absent "valid" can be told apart.
	var resp struct {
		TokenValidation
		Valid *bool `json:"valid"`
	}
	err := c.do(ctx, call{
		operation: "validate_token",
		method:    http.MethodGet,
		path:      pathValidateToken,
		token:     token,
		fallback:  "Token validation failed",
	}, &resp)
	if err != nil {
		result := &TokenValidation{Valid: false, Error: err.Error()}
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) {
			result.Status = remoteErr.StatusCode
			if remoteErr.Cause == nil {
				result.Error = remoteErr.Message
			}
		}
		return result
	}

	result := resp.TokenValidation
	result.Valid = resp.Valid == nil || *resp.Valid
	return &result
}

// ============================================================================
// Address & wallet
// ============================================================================

// GetAddress fetches the user's shared address fields.
func (c *Client) GetAddress(ctx context.Context, opts AddressOptions) (*AddressResponse, error) {
	token := opts.AccessToken
	if token == "" {
		token = c.AccessToken()
	}
	if token == "" {
		return nil, &AuthenticationRequiredError{Operation: "get_address"}
	}

	query := url.Values{}
	if len(opts.Fields) > 0 {
		query.Set("fields", strings.Join(opts.Fields, ","))
	}
	if opts.IncludeVerificationInfo {
		query.Set("include_verification", "true")
	}

	c.logger.Ctx(ctx).Info("Fetching address",
		zap.Strings("fields", opts.Fields),
		zap.Bool("include_verification", opts.IncludeVerificationInfo),
	)

	var resp AddressResponse
	err := c.do(ctx, call{
		operation: "get_address",
		method:    http.MethodGet,
		path:      pathAddress,
		query:     query,
		token:     token,
		fallback:  "failed to get address",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkWallet links the verified address to a blockchain wallet.
func (c *Client) LinkWallet(ctx context.Context, opts LinkWalletOptions) (*WalletLink, error) {
	token, err := c.requireToken("link_wallet")
	if err != nil {
		return nil, err
	}
	if opts.WalletAddress == "" {
		return nil, newValidationError("wallet_address", "wallet address is required")
	}
	if opts.ChainID == 0 {
		return nil, newValidationError("chain_id", "chain ID is required")
	}

	c.logger.Ctx(ctx).Info("Linking address to wallet",
		zap.String("wallet_address", opts.WalletAddress),
		zap.Int64("chain_id", opts.ChainID),
	)

	var resp WalletLink
	err = c.do(ctx, call{
		operation: "link_wallet",
		method:    http.MethodPost,
		path:      pathLinkWallet,
		body: linkWalletRequest{
			WalletAddress: opts.WalletAddress,
			ChainID:       opts.ChainID,
			CreateVC:      opts.CreateVerifiableCredential,
		},
		token:    token,
		fallback: "failed to link address to wallet",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetUsageStats returns permission usage statistics for the current token.
func (c *Client) GetUsageStats(ctx context.Context) (*UsageStats, error) {
	token, err := c.requireToken("get_usage_stats")
	if err != nil {
		return nil, err
	}

	var resp UsageStats
	err = c.do(ctx, call{
		operation: "get_usage_stats",
		method:    http.MethodGet,
		path:      pathUsageStats,
		token:     token,
		fallback:  "failed to get usage statistics",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ============================================================================
// Webhooks
// ============================================================================

// RegisterWebhook subscribes url to the given events.
func (c *Client) RegisterWebhook(ctx context.Context, opts WebhookOptions) (*WebhookRegistration, error) {
	token, err := c.requireToken("register_webhook")
	if err != nil {
		return nil, err
	}
	if opts.URL == "" {
		return nil, newValidationError("url", "webhook URL is required")
	}
	if len(opts.Events) == 0 {
		return nil, newValidationError("events", "at least one event type must be specified")
	}

	c.logger.Ctx(ctx).Info("Registering webhook",
		zap.String("url", opts.URL),
		zap.Strings("events", opts.Events),
	)

	var resp WebhookRegistration
	err = c.do(ctx, call{
		operation: "register_webhook",
		method:    http.MethodPost,
		path:      pathWebhooks,
		body: webhookRequest{
			URL:    opts.URL,
			Events: opts.Events,
			Secret: opts.Secret,
		},
		token:    token,
		fallback: "failed to register webhook",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyWebhookSignature is VerifyWebhookSignature with failures logged.
func (c *Client) VerifyWebhookSignature(signature string, payload []byte, secret string) bool {
	ok := VerifyWebhookSignature(signature, payload, secret)
	if !ok {
		c.logger.Warn("Webhook signature verification failed",
			zap.Int("payload_bytes", len(payload)),
		)
	}
	return ok
}

// ============================================================================
// Blind shipping
// ============================================================================

// CreateBlindShippingToken issues a token that lets a carrier ship to the
// user without revealing the address. Every method must be valid for every
// selected carrier.
func (c *Client) CreateBlindShippingToken(ctx context.Context, opts ShippingTokenOptions) (*ShippingToken, error) {
	token, err := c.requireToken("create_shipping_token")
	if err != nil {
		return nil, err
	}
	if err := c.validateShippingToken(opts); err != nil {
		return nil, err
	}

	expiryDays := opts.ExpiryDays
	if expiryDays == 0 {
		expiryDays = defaultShippingExpiryDays
	}
	maxUses := opts.MaxUses
	if maxUses == 0 {
		maxUses = defaultShippingMaxUses
	}

	c.logger.Ctx(ctx).Info("Creating blind shipping token",
		zap.Strings("carriers", opts.Carriers),
		zap.Strings("shipping_methods", opts.ShippingMethods),
		zap.Int("expiry_days", expiryDays),
		zap.Int("max_uses", maxUses),
	)

	var resp ShippingToken
	err = c.do(ctx, call{
		operation: "create_shipping_token",
		method:    http.MethodPost,
		path:      pathCreateShippingToken,
		body: shippingTokenRequest{
			Carriers:            opts.Carriers,
			ShippingMethods:     opts.ShippingMethods,
			RequireConfirmation: opts.RequireConfirmation,
			ExpiryDays:          expiryDays,
			MaxUses:             maxUses,
		},
		token:    token,
		fallback: "failed to create blind shipping token",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) validateShippingToken(opts ShippingTokenOptions) error {
	if len(opts.Carriers) == 0 {
		return newValidationError("carriers", "at least one carrier must be specified")
	}
	if len(opts.ShippingMethods) == 0 {
		return newValidationError("shipping_methods", "at least one shipping method must be specified")
	}

	var unsupported []string
	for _, carrier := range opts.Carriers {
		if !c.SupportsCarrier(carrier) {
			unsupported = append(unsupported, carrier)
		}
	}
	if len(unsupported) > 0 {
		return newValidationError("carriers", "unsupported carriers: %s", strings.Join(unsupported, ", "))
	}

	if invalid := c.methods.invalidMethods(opts.Carriers, opts.ShippingMethods); len(invalid) > 0 {
		return newValidationError("shipping_methods", "unsupported shipping methods: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// RequestShipment asks a carrier to ship against a blind shipping token. No
// access token is sent: the shipping token carries the authority.
func (c *Client) RequestShipment(ctx context.Context, opts ShipmentOptions) (*Shipment, error) {
	if err := c.validateShipment(opts); err != nil {
		return nil, err
	}

	c.logger.Ctx(ctx).Info("Requesting shipment",
		zap.String("carrier", opts.Carrier),
		zap.String("service", opts.Service),
	)

	var resp Shipment
	err := c.do(ctx, call{
		operation: "request_shipment",
		method:    http.MethodPost,
		path:      pathRequestShipment,
		body: shipmentRequest{
			ShippingToken: opts.ShippingToken,
			Carrier:       opts.Carrier,
			Service:       opts.Service,
			Package:       opts.Package,
		},
		fallback: "failed to request shipment",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) validateShipment(opts ShipmentOptions) error {
	if opts.ShippingToken == "" {
		return newValidationError("shipping_token", "shipping token is required")
	}
	if opts.Carrier == "" || !c.SupportsCarrier(opts.Carrier) {
		return newValidationError("carrier", "invalid or unsupported carrier: %q", opts.Carrier)
	}
	if opts.Service == "" || !c.methods.Allows(opts.Carrier, opts.Service) {
		return newValidationError("service", "invalid or unsupported shipping service: %q", opts.Service)
	}
	if opts.Package == nil {
		return newValidationError("package", "package type is required")
	}
	if _, ok := opts.Package["type"]; !ok {
		return newValidationError("package", "package type is required")
	}
	return nil
}

// GetTrackingInfo looks up a shipment. No access token is required.
func (c *Client) GetTrackingInfo(ctx context.Context, trackingNumber, carrier string) (*TrackingInfo, error) {
	if err := c.validateTracking(trackingNumber, carrier); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("number", trackingNumber)
	query.Set("carrier", carrier)

	var resp TrackingInfo
	err := c.do(ctx, call{
		operation: "get_tracking_info",
		method:    http.MethodGet,
		path:      pathTracking,
		query:     query,
		fallback:  "failed to get tracking information",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmDelivery confirms receipt of a shipment that requires confirmation.
func (c *Client) ConfirmDelivery(ctx context.Context, trackingNumber, carrier string) (*DeliveryConfirmation, error) {
	token, err := c.requireToken("confirm_delivery")
	if err != nil {
		return nil, err
	}
	if err := c.validateTracking(trackingNumber, carrier); err != nil {
		return nil, err
	}

	c.logger.Ctx(ctx).Info("Confirming delivery",
		zap.String("tracking_number", trackingNumber),
		zap.String("carrier", carrier),
	)

	var resp DeliveryConfirmation
	err = c.do(ctx, call{
		operation: "confirm_delivery",
		method:    http.MethodPost,
		path:      pathConfirmDelivery,
		body: confirmDeliveryRequest{
			TrackingNumber: trackingNumber,
			Carrier:        carrier,
		},
		token:    token,
		fallback: "failed to confirm delivery",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) validateTracking(trackingNumber, carrier string) error {
	if trackingNumber == "" {
		return newValidationError("tracking_number", "tracking number is required")
	}
	if carrier == "" || !c.SupportsCarrier(carrier) {
		return newValidationError("carrier", "invalid or unsupported carrier: %q", carrier)
	}
	return nil
}
