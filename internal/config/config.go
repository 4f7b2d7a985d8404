package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/addressbridge/pkg/bridge"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the CLI and the webhook receiver.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Bridge API
	AppID             string        `envconfig:"BRIDGE_APP_ID"`
	AppSecret         string        `envconfig:"BRIDGE_APP_SECRET"`
	BaseURL           string        `envconfig:"BRIDGE_BASE_URL" default:"https://api.secureaddress.bridge"`
	APIVersion        string        `envconfig:"BRIDGE_API_VERSION" default:"v1"`
	AccessToken       string        `envconfig:"BRIDGE_ACCESS_TOKEN"`
	SupportedChains   []string      `envconfig:"BRIDGE_SUPPORTED_CHAINS" default:"ethereum"`
	SupportedCarriers []string      `envconfig:"BRIDGE_SUPPORTED_CARRIERS" default:"usps,fedex,ups"`
	Timeout           time.Duration `envconfig:"BRIDGE_TIMEOUT" default:"30s"`
	WebhookSecret     string        `envconfig:"BRIDGE_WEBHOOK_SECRET"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"addressbridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"1.0.0"`
}

// dotenvFiles are loaded in order; earlier files win over later ones and the
// environment wins over both.
var dotenvFiles = []string{".env.local", ".env"}

// Load reads configuration from environment variables. Values from .env.local
// and .env are applied first without overriding the environment. Missing
// files are skipped.
func Load() (*Config, error) {
	for _, f := range dotenvFiles {
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// BridgeConfig returns the SDK client configuration.
func (c *Config) BridgeConfig() bridge.Config {
	return bridge.Config{
		AppID:             c.AppID,
		AppSecret:         c.AppSecret,
		BaseURL:           c.BaseURL,
		APIVersion:        c.APIVersion,
		SupportedChains:   c.SupportedChains,
		SupportedCarriers: c.SupportedCarriers,
		AccessToken:       c.AccessToken,
		Timeout:           c.Timeout,
	}
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("bridge.app_id", c.AppID),
		attribute.String("bridge.api_version", c.APIVersion),
		attribute.StringSlice("bridge.carriers", c.SupportedCarriers),
		attribute.Bool("bridge.webhook_secret_set", c.WebhookSecret != ""),
	}
}
