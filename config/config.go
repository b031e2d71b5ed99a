// Package config loads server configuration from the environment, an
// optional .env file and an optional config.yaml.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Storage: sqlite, mongo or memory.
	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	// Empty RedisAddr selects the in-process backfill lock.
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	LockTTL       time.Duration `mapstructure:"LOCK_TTL"`

	// Limiter rate for the backfill trigger, ulule format ("10-M").
	BackfillRate string `mapstructure:"BACKFILL_RATE"`

	TierPolicy            string `mapstructure:"TIER_POLICY"`
	TierDoubleAt          string `mapstructure:"TIER_DOUBLE_AT"`
	TierRequireTarget     bool   `mapstructure:"TIER_REQUIRE_TARGET"`
	DefaultTargetBaseline string `mapstructure:"DEFAULT_TARGET_BASELINE"`

	SyncEnabled  bool          `mapstructure:"SYNC_ENABLED"`
	SyncInterval time.Duration `mapstructure:"SYNC_INTERVAL"`
	SyncTenants  string        `mapstructure:"SYNC_TENANTS"`
}

// Load reads .env (if present), config.yaml (if present) and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("SQLITE_PATH", "incentives.db")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "incentives")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "2m")
	v.SetDefault("BACKFILL_RATE", "10-M")
	v.SetDefault("TIER_POLICY", "flat")
	v.SetDefault("TIER_DOUBLE_AT", "1")
	v.SetDefault("TIER_REQUIRE_TARGET", false)
	v.SetDefault("DEFAULT_TARGET_BASELINE", "0")
	v.SetDefault("SYNC_ENABLED", false)
	v.SetDefault("SYNC_INTERVAL", "1h")
	v.SetDefault("SYNC_TENANTS", "")
}

// Validate checks enum values and numeric strings.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite", "mongo", "memory":
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q (use sqlite, mongo or memory)", c.StoreDriver)
	}
	if _, err := decimal.NewFromString(c.TierDoubleAt); err != nil {
		return fmt.Errorf("invalid TIER_DOUBLE_AT %q: %w", c.TierDoubleAt, err)
	}
	if _, err := decimal.NewFromString(c.DefaultTargetBaseline); err != nil {
		return fmt.Errorf("invalid DEFAULT_TARGET_BASELINE %q: %w", c.DefaultTargetBaseline, err)
	}
	if c.SyncEnabled && c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive when SYNC_ENABLED")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DoubleAt is TierDoubleAt parsed. Validate guarantees it parses.
func (c *Config) DoubleAt() decimal.Decimal {
	return decimal.RequireFromString(c.TierDoubleAt)
}

func (c *Config) TargetBaseline() decimal.Decimal {
	return decimal.RequireFromString(c.DefaultTargetBaseline)
}

// Tenants splits SYNC_TENANTS on commas.
func (c *Config) Tenants() []string {
	var out []string
	for _, t := range strings.Split(c.SyncTenants, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
