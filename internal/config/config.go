package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/mahmoodamara/storefront/pkg/config"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout int `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"storefront_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis (cart storage)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	CartTTLHours  int    `env:"CART_TTL_HOURS" envDefault:"168"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT authentication
	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTAccessExpiryHours int    `env:"JWT_ACCESS_EXPIRY_HOURS" envDefault:"24"`

	// Pricing
	Currency            string `env:"CURRENCY" envDefault:"ILS"`
	VATBasisPoints      int64  `env:"VAT_RATE_BASIS_POINTS" envDefault:"1800"`
	StorePickupFeeMinor int64  `env:"STORE_PICKUP_FEE_MINOR" envDefault:"0"`

	// Checkout
	ReservationTTLMins int    `env:"RESERVATION_TTL_MINUTES" envDefault:"15"`
	PaymentSuccessURL  string `env:"PAYMENT_SUCCESS_URL" envDefault:"http://localhost:3000/checkout/success"`
	PaymentCancelURL   string `env:"PAYMENT_CANCEL_URL" envDefault:"http://localhost:3000/checkout/cancel"`

	// Reservation sweeper
	SweepIntervalSecs int `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	SweepBatchSize    int `env:"SWEEP_BATCH_SIZE" envDefault:"500"`

	// Payment gateway. Provider "mock" approves everything and is only for
	// local development; "hosted" talks to the real provider API.
	GatewayProvider      string `env:"GATEWAY_PROVIDER" envDefault:"mock"`
	GatewayBaseURL       string `env:"GATEWAY_BASE_URL" envDefault:"http://localhost:8090"`
	GatewayAPIKey        string `env:"GATEWAY_API_KEY" envDefault:""`
	GatewayWebhookSecret string `env:"GATEWAY_WEBHOOK_SECRET" envDefault:"whsec-dev"`

	// Webhook processing
	AutoRefundOnStockFailure bool `env:"REFUND_AUTO_ON_STOCK_FAILURE" envDefault:"true"`

	// Circuit breaker settings for gateway calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.VATBasisPoints < 0 || c.VATBasisPoints > 10000 {
		return fmt.Errorf("VAT_RATE_BASIS_POINTS must be between 0 and 10000, got %d", c.VATBasisPoints)
	}
	if c.StorePickupFeeMinor < 0 {
		return fmt.Errorf("STORE_PICKUP_FEE_MINOR must not be negative")
	}
	if c.ReservationTTLMins < 1 {
		return fmt.Errorf("RESERVATION_TTL_MINUTES must be at least 1, got %d", c.ReservationTTLMins)
	}
	if c.GatewayProvider != "mock" && c.GatewayProvider != "hosted" {
		return fmt.Errorf("GATEWAY_PROVIDER must be mock or hosted, got %q", c.GatewayProvider)
	}
	if c.GatewayProvider == "hosted" && c.GatewayAPIKey == "" {
		return fmt.Errorf("GATEWAY_API_KEY is required when GATEWAY_PROVIDER is hosted")
	}
	if c.GatewayWebhookSecret == "" {
		return fmt.Errorf("GATEWAY_WEBHOOK_SECRET is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	for name, rawURL := range map[string]string{
		"PAYMENT_SUCCESS_URL": c.PaymentSuccessURL,
		"PAYMENT_CANCEL_URL":  c.PaymentCancelURL,
		"GATEWAY_BASE_URL":    c.GatewayBaseURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
