// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// per user; 0 disables the limiter
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL            string        `yaml:"url"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	TTL            time.Duration `yaml:"ttl"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// CatalogConfig selects where plans come from.
type CatalogConfig struct {
	Source         string        `yaml:"source"` // file | postgres
	Path           string        `yaml:"path"`
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

type CardConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	MerchantID string `yaml:"merchant_id"`
}

type PaymentConfig struct {
	Provider       string        `yaml:"provider"` // sandbox | card
	ChargeTimeout  time.Duration `yaml:"charge_timeout"`
	PersistTimeout time.Duration `yaml:"persist_timeout"`
	Breaker        BreakerConfig `yaml:"breaker"`
	Card           CardConfig    `yaml:"card"`
}

type WorkersConfig struct {
	Concurrency int `yaml:"concurrency"`
	Queue       int `yaml:"queue"`
}

type SchedulerConfig struct {
	StatsInterval time.Duration `yaml:"stats_interval"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Payment   PaymentConfig   `yaml:"payment"`
	Workers   WorkersConfig   `yaml:"workers"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. A .env file next to the working
// directory is loaded first (if present) and ${VAR} references in the YAML
// are expanded from the environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes, defaults and validates a YAML document.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 20
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL, time.Hour)
	c.Redis.IdempotencyTTL = normalizeTTL(c.Redis.IdempotencyTTL, 24*time.Hour)

	c.Catalog.Source = strings.ToLower(c.Catalog.Source)
	if c.Catalog.Source == "" {
		c.Catalog.Source = "file"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "plans.yaml"
	}

	c.Payment.Provider = strings.ToLower(c.Payment.Provider)
	if c.Payment.Provider == "" {
		c.Payment.Provider = "sandbox"
	}
	if c.Payment.ChargeTimeout <= 0 {
		c.Payment.ChargeTimeout = 30 * time.Second
	}
	if c.Payment.PersistTimeout <= 0 {
		c.Payment.PersistTimeout = 10 * time.Second
	}
	if c.Payment.Breaker.MaxRequests == 0 {
		c.Payment.Breaker.MaxRequests = 1
	}
	if c.Payment.Breaker.Interval <= 0 {
		c.Payment.Breaker.Interval = time.Minute
	}
	if c.Payment.Breaker.Timeout <= 0 {
		c.Payment.Breaker.Timeout = 30 * time.Second
	}
	if c.Payment.Breaker.ConsecutiveFailures == 0 {
		c.Payment.Breaker.ConsecutiveFailures = 5
	}

	if c.Workers.Concurrency <= 0 {
		c.Workers.Concurrency = 16
	}
	if c.Workers.Queue <= 0 {
		c.Workers.Queue = 4 * c.Workers.Concurrency
	}
	if c.Scheduler.StatsInterval <= 0 {
		c.Scheduler.StatsInterval = 30 * time.Second
	}
}

// IdempotencyLockTTL bounds how long a creation request may hold its
// Idempotency-Key: queue wait (up to the request timeout), then the charge,
// then the detached persist.
func (c *Config) IdempotencyLockTTL() time.Duration {
	return c.Server.RequestTimeout + c.Payment.ChargeTimeout + c.Payment.PersistTimeout
}

// Validate performs minimal validation.
func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case "file":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for catalog.source=postgres")
		}
	default:
		return fmt.Errorf("catalog.source must be file or postgres, got %q", c.Catalog.Source)
	}
	switch c.Payment.Provider {
	case "sandbox":
	case "card":
		if c.Payment.Card.BaseURL == "" {
			return errors.New("payment.card.base_url is required")
		}
		if c.Payment.Card.APIKey == "" {
			return errors.New("payment.card.api_key is required")
		}
	default:
		return fmt.Errorf("payment.provider must be sandbox or card, got %q", c.Payment.Provider)
	}
	return nil
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
