package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Store drivers
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config is the process configuration read from the environment
type Config struct {
	Port   string
	AppURL string

	ShopifyAPIKey     string
	ShopifyAPISecret  string
	ShopifyScopes     []string
	ShopifyAPIVersion string
	UpstreamTimeout   time.Duration
	ChargeTestMode    bool
	EncryptionKey     string

	StoreDriver     string
	MongoURI        string
	MongoDatabase   string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	ChargeGuardTTL  time.Duration
	SweepSchedule   string
	SweepBatchSize  int
	SweepLockExpiry time.Duration

	GapAlertQueueURL string
	AWSRegion        string
	AWSAccessKey     string
	AWSSecretKey     string

	CORSOrigins []string
	LogLevel    string
	LogFormat   string
}

// Load reads .env when present and then the environment
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup and checks the required settings
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Port:   get("PORT", "8080"),
		AppURL: strings.TrimSuffix(get("APP_URL", "http://localhost:8080"), "/"),

		ShopifyAPIKey:     get("SHOPIFY_API_KEY", ""),
		ShopifyAPISecret:  get("SHOPIFY_API_SECRET", ""),
		ShopifyScopes:     splitList(get("SHOPIFY_SCOPES", "read_themes,write_themes")),
		ShopifyAPIVersion: get("SHOPIFY_API_VERSION", "2024-01"),
		UpstreamTimeout:   cast.ToDuration(get("UPSTREAM_TIMEOUT", "10s")),
		ChargeTestMode:    cast.ToBool(get("CHARGE_TEST_MODE", "false")),
		EncryptionKey:     get("ENCRYPTION_KEY", ""),

		StoreDriver:     strings.ToLower(get("STORE_DRIVER", DriverMongo)),
		MongoURI:        get("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:   get("MONGODB_DATABASE", "sectionhub"),
		DatabaseURL:     get("DATABASE_URL", ""),
		RedisAddr:       get("REDIS_ADDR", ""),
		RedisPassword:   get("REDIS_PASSWORD", ""),
		ChargeGuardTTL:  cast.ToDuration(get("CHARGE_GUARD_TTL", "30s")),
		SweepSchedule:   get("SWEEP_SCHEDULE", "@every 10m"),
		SweepBatchSize:  cast.ToInt(get("SWEEP_BATCH_SIZE", "100")),
		SweepLockExpiry: cast.ToDuration(get("SWEEP_LOCK_EXPIRY", "5m")),

		GapAlertQueueURL: get("GAP_ALERT_QUEUE_URL", ""),
		AWSRegion:        get("AWS_REGION", "us-east-1"),
		AWSAccessKey:     get("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:     get("AWS_SECRET_ACCESS_KEY", ""),

		CORSOrigins: splitList(get("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:    get("LOG_LEVEL", "info"),
		LogFormat:   get("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.ShopifyAPIKey == "" {
		missing = append(missing, "SHOPIFY_API_KEY")
	}
	if c.ShopifyAPISecret == "" {
		missing = append(missing, "SHOPIFY_API_SECRET")
	}
	if c.EncryptionKey == "" {
		missing = append(missing, "ENCRYPTION_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	switch c.StoreDriver {
	case DriverMongo:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = 100
	}
	return nil
}

// RedirectURL is the OAuth callback registered with the platform
func (c *Config) RedirectURL() string {
	return c.AppURL + "/auth/callback"
}

// BillingReturnURL is where the platform sends merchants after checkout
func (c *Config) BillingReturnURL() string {
	return c.AppURL + "/billing/callback"
}

// WebhookURL is the address webhooks are registered against
func (c *Config) WebhookURL() string {
	return c.AppURL + "/webhooks/shopify"
}

// SecureCookies is true when the app is served over TLS
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.AppURL, "https://")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
