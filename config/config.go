package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	// StoreURL selects the store: postgres://, mysql:// or memory://.
	StoreURL        string `envconfig:"STORE_URL" required:"true"`
	StoreServiceKey string `envconfig:"STORE_SERVICE_KEY"`
	AutoMigrate     bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	BodyLimitBytes int    `envconfig:"BODY_LIMIT_BYTES"`
	BodyLimitMB    int    `envconfig:"BODY_LIMIT_MB" default:"4"`

	RateLimitMax           int    `envconfig:"RATE_LIMIT_MAX" default:"60"`
	RateLimitWindowSeconds int    `envconfig:"RATE_LIMIT_WINDOW_SECONDS" default:"60"`
	RedisURL               string `envconfig:"REDIS_URL"`

	JWTSecretKey string `envconfig:"JWT_SECRET_KEY"`
	JWTSecret    string `envconfig:"JWT_SECRET"`

	EnforceHWID bool `envconfig:"VERIFY_ENFORCE_HWID" default:"true"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"APP_ENV" default:"development"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments inject the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.StoreURL)
	if err != nil {
		return fmt.Errorf("invalid STORE_URL: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql", "mysql", "memory":
	default:
		return fmt.Errorf("unsupported STORE_URL scheme %q", u.Scheme)
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindowSeconds <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	if strings.TrimSpace(c.Secret()) == "" {
		return errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}
	return nil
}

// Secret prefers JWT_SECRET_KEY and falls back to JWT_SECRET.
func (c *Config) Secret() string {
	if strings.TrimSpace(c.JWTSecretKey) != "" {
		return c.JWTSecretKey
	}
	return c.JWTSecret
}

// BodyLimit is the request body limit in bytes.
func (c *Config) BodyLimit() int {
	if c.BodyLimitBytes > 0 {
		return c.BodyLimitBytes
	}
	return c.BodyLimitMB * 1024 * 1024
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
