package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Sandbox   SandboxConfig
	Approval  ApprovalConfig
	Cache     CacheConfig
	Store     StoreConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// SandboxConfig holds rendering sandbox configuration.
type SandboxConfig struct {
	RenderTimeout time.Duration `envconfig:"SANDBOX_RENDER_TIMEOUT" default:"5s"`
	SettleDelay   time.Duration `envconfig:"SANDBOX_SETTLE_DELAY" default:"50ms"`
	ScriptTimeout time.Duration `envconfig:"SANDBOX_SCRIPT_TIMEOUT" default:"2s"`
}

// ApprovalConfig holds approval gate configuration.
type ApprovalConfig struct {
	// DecisionTimeout bounds how long a gated tool call waits for a human
	// decision. Zero means wait forever.
	DecisionTimeout time.Duration `envconfig:"APPROVAL_DECISION_TIMEOUT" default:"0"`
	// StaleAfter controls when Reconcile rejects persisted pending requests
	// left over from a previous run.
	StaleAfter time.Duration `envconfig:"APPROVAL_STALE_AFTER" default:"24h"`
}

// CacheConfig holds tool result cache configuration.
type CacheConfig struct {
	TTL time.Duration `envconfig:"CACHE_TTL" default:"1h"`
}

// StoreConfig holds result store configuration.
type StoreConfig struct {
	Path    string `envconfig:"STORE_PATH" default:"curio.db"`
	Enabled bool   `envconfig:"STORE_ENABLED" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Sandbox: SandboxConfig{
			RenderTimeout: 5 * time.Second,
			SettleDelay:   50 * time.Millisecond,
			ScriptTimeout: 2 * time.Second,
		},
		Approval: ApprovalConfig{
			DecisionTimeout: 0,
			StaleAfter:      24 * time.Hour,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Store: StoreConfig{
			Path:    "curio.db",
			Enabled: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
