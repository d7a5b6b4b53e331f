package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Carrier variants selectable with SHIPPING_CARRIER.
const (
	CarrierUSPSLegacy = "usps-legacy"
	CarrierUSPSV3     = "usps-v3"
)

// Order store backends selectable with STORE_BACKEND.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port        int           `envconfig:"PORT" default:"3000"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`

	// POS
	POSBaseURL              string        `envconfig:"POS_BASE_URL"`
	POSClientID             string        `envconfig:"POS_CLIENT_ID"`
	POSClientSecret         string        `envconfig:"POS_CLIENT_SECRET"`
	POSScope                string        `envconfig:"POS_SCOPE"`
	POSRestaurantGUID       string        `envconfig:"POS_RESTAURANT_GUID"`
	POSAuthURLs             []string      `envconfig:"POS_AUTH_URLS"`
	POSTimeout              time.Duration `envconfig:"POS_TIMEOUT" default:"30s"`
	POSUseMock              bool          `envconfig:"POS_USE_MOCK" default:"false"`
	POSVoidOnPaymentFailure bool          `envconfig:"POS_VOID_ON_PAYMENT_FAILURE" default:"false"`

	// Shipping
	ShippingCarrier string `envconfig:"SHIPPING_CARRIER" default:"usps-v3"`

	// USPS Web Tools (legacy)
	USPSUsername        string   `envconfig:"USPS_USERNAME"`
	USPSLegacyEndpoints []string `envconfig:"USPS_LEGACY_ENDPOINTS"`

	// USPS REST (v3)
	USPSClientID     string        `envconfig:"USPS_CLIENT_ID"`
	USPSClientSecret string        `envconfig:"USPS_CLIENT_SECRET"`
	USPSScope        string        `envconfig:"USPS_SCOPE"`
	USPSTokenURL     string        `envconfig:"USPS_TOKEN_URL"`
	USPSRevokeURL    string        `envconfig:"USPS_REVOKE_URL"`
	USPSPricesURL    string        `envconfig:"USPS_PRICES_URL"`
	USPSLabelsURL    string        `envconfig:"USPS_LABELS_URL"`
	USPSTrackingURL  string        `envconfig:"USPS_TRACKING_URL"`
	USPSAddressesURL string        `envconfig:"USPS_ADDRESSES_URL"`
	USPSPaymentToken string        `envconfig:"USPS_PAYMENT_TOKEN"`
	USPSTimeout      time.Duration `envconfig:"USPS_TIMEOUT" default:"30s"`
	USPSUseMock      bool          `envconfig:"USPS_USE_MOCK" default:"false"`

	// Sender address printed on labels
	OriginName    string `envconfig:"ORIGIN_NAME" default:"Wicked Donuts"`
	OriginCompany string `envconfig:"ORIGIN_COMPANY"`
	OriginStreet  string `envconfig:"ORIGIN_STREET"`
	OriginCity    string `envconfig:"ORIGIN_CITY" default:"Las Vegas"`
	OriginState   string `envconfig:"ORIGIN_STATE" default:"NV"`
	OriginZIP     string `envconfig:"ORIGIN_ZIP" default:"89101"`
	OriginPhone   string `envconfig:"ORIGIN_PHONE"`

	// Order store
	StoreBackend   string `envconfig:"STORE_BACKEND" default:"memory"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"storefront:"`

	// Order events; empty brokers log events instead of publishing them.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"storefront-order-events"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"storefront"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads an optional .env file, then configuration from environment variables.
// Variables already set in the environment take precedence over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot be wired at startup.
func (c *Config) Validate() error {
	switch c.ShippingCarrier {
	case CarrierUSPSLegacy, CarrierUSPSV3:
	default:
		return fmt.Errorf("invalid SHIPPING_CARRIER %q: must be %s or %s", c.ShippingCarrier, CarrierUSPSLegacy, CarrierUSPSV3)
	}

	switch c.StoreBackend {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: must be %s or %s", c.StoreBackend, StoreMemory, StoreRedis)
	}

	if !c.POSUseMock && c.POSBaseURL == "" {
		return errors.New("POS_BASE_URL is required unless POS_USE_MOCK is set")
	}
	return nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("shipping.carrier", c.ShippingCarrier),
		attribute.String("store.backend", c.StoreBackend),
		attribute.Bool("pos.mock", c.POSUseMock),
		attribute.Bool("usps.mock", c.USPSUseMock),
		attribute.Bool("events.kafka", len(c.KafkaBrokers) > 0),
	}
}
