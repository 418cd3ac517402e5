package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// EnvFileVar names the variable that points at an optional .env file.
const EnvFileVar = "STOREFRONT_ENV_FILE"

// Config holds all configuration for the storefront client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend API
	APIURL         string        `env:"STOREFRONT_API_URL" envDefault:"http://localhost:8080"`
	APIPrefix      string        `env:"STOREFRONT_API_PREFIX" envDefault:"/api/"`
	HTTPTimeout    time.Duration `env:"STOREFRONT_HTTP_TIMEOUT" envDefault:"30s"`
	MaxRetries     int           `env:"STOREFRONT_MAX_RETRIES" envDefault:"2"`
	RequestLogging bool          `env:"STOREFRONT_REQUEST_LOGGING" envDefault:"false"`
	LoginPath      string        `env:"STOREFRONT_LOGIN_PATH" envDefault:"/login"`

	// Resilience
	CircuitBreaker bool    `env:"STOREFRONT_CIRCUIT_BREAKER" envDefault:"true"`
	RateLimitRPS   float64 `env:"STOREFRONT_RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst int     `env:"STOREFRONT_RATE_LIMIT_BURST" envDefault:"10"`

	// Stores
	StoreTimeout time.Duration `env:"STOREFRONT_STORE_TIMEOUT" envDefault:"30s"`
	ProductTTL   time.Duration `env:"STOREFRONT_PRODUCT_TTL" envDefault:"5m"`

	// Persisted state
	Storage          string `env:"STOREFRONT_STORAGE" envDefault:"memory"`
	StoragePath      string `env:"STOREFRONT_STORAGE_PATH" envDefault:"storefront-state.json"`
	StorageNamespace string `env:"STOREFRONT_STORAGE_NAMESPACE" envDefault:"default"`

	// Redis
	RedisAddr   string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass   string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB     int           `env:"REDIS_DB" envDefault:"0"`
	RedisSlowOp time.Duration `env:"REDIS_SLOW_OP_THRESHOLD" envDefault:"0s"`

	// Local HTTP surface
	HTTPPort       int           `env:"STOREFRONT_HTTP_PORT" envDefault:"8090"`
	RequestTimeout time.Duration `env:"STOREFRONT_REQUEST_TIMEOUT" envDefault:"30s"`
	CORSOrigins    string        `env:"STOREFRONT_CORS_ORIGINS" envDefault:"*"`
	CatalogMaxAge  int           `env:"STOREFRONT_CATALOG_MAX_AGE" envDefault:"60"`
	PprofCIDRs     []string      `env:"STOREFRONT_PPROF_CIDRS" envSeparator:","`

	// OpenTelemetry
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from the environment, after loading the .env file
// named by STOREFRONT_ENV_FILE when it is set.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithDotenv(cfg, os.Getenv(EnvFileVar)); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid API URL: %q", c.APIURL)
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("API prefix must start with '/': %q", c.APIPrefix)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid HTTP timeout: %s", c.HTTPTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d", c.MaxRetries)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("invalid store timeout: %s", c.StoreTimeout)
	}
	if c.CatalogMaxAge < 0 {
		return fmt.Errorf("invalid catalog max age: %d", c.CatalogMaxAge)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.Storage {
	case StorageMemory, StorageRedis:
	case StorageFile:
		if c.StoragePath == "" {
			return fmt.Errorf("file storage requires STOREFRONT_STORAGE_PATH")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage)
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("invalid OTel sample rate: %v", c.OTelSampleRate)
	}
	return nil
}
