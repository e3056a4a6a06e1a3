// Package config loads potionshop settings from the environment.
//
// A .env file in the working directory is read first if present; variables
// already set in the process environment win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, so DBPath is SHOP_DB_PATH.
const Prefix = "SHOP"

// Cache backends accepted by CatalogCache.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheOff    = "off"
)

// Config holds all settings of one potionshop process.
type Config struct {
	DBPath      string `envconfig:"DB_PATH" default:"potionshop.db"`
	RetryBudget int    `envconfig:"RETRY_BUDGET" default:"5"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// CheckoutLease is how long a cart may stay CHECKING_OUT before a
	// starting process reopens it.
	CheckoutLease time.Duration `envconfig:"CHECKOUT_LEASE" default:"1m"`

	// PricingFile is a CUE capacity pricing policy. Empty means the built-in
	// flat price.
	PricingFile string `envconfig:"PRICING_FILE"`

	CatalogCache string        `envconfig:"CATALOG_CACHE" default:"memory"`
	CatalogTTL   time.Duration `envconfig:"CATALOG_TTL" default:"30s"`

	// Redis fields are read as SHOP_REDIS_ADDR, SHOP_REDIS_PASSWORD and
	// SHOP_REDIS_DB.
	Redis RedisConfig

	// AMQPURL enables ledger event publishing when set.
	AMQPURL     string `envconfig:"AMQP_URL"`
	EventsQueue string `envconfig:"EVENTS_QUEUE" default:"potionshop.ledger"`
}

// RedisConfig is used when CatalogCache is "redis".
type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

// Load reads the given .env files (default ".env"), then the environment.
// Missing env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c.RetryBudget < 1 {
		return fmt.Errorf("%s_RETRY_BUDGET must be at least 1, got %d", Prefix, c.RetryBudget)
	}
	switch c.CatalogCache {
	case CacheMemory, CacheRedis, CacheOff:
	default:
		return fmt.Errorf("%s_CATALOG_CACHE must be memory, redis or off, got %q", Prefix, c.CatalogCache)
	}
	if c.CheckoutLease <= 0 {
		return fmt.Errorf("%s_CHECKOUT_LEASE must be positive", Prefix)
	}
	if c.CatalogTTL < 0 {
		return fmt.Errorf("%s_CATALOG_TTL must not be negative", Prefix)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level is the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
