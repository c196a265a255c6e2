// Package config provides configuration loading for the dashboard server.
// Configuration sources (in priority order): env vars > config file > defaults.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// Listen address (default ":8080")
	ListenAddr string `json:"listen_addr"`
	// Data directory for SQLite databases (default "/var/lib/dashboard")
	DataDir string `json:"data_dir"`

	// Signing key for token HMAC (hex-encoded, 64+ chars)
	SigningKey string `json:"signing_key,omitempty"`
	// Token lifetime as a duration string (default "24h")
	TokenTTL string `json:"token_ttl,omitempty"`

	// Password for the seeded admin account on first startup. Empty means
	// a random password is generated and logged once.
	BootstrapAdminPassword string `json:"bootstrap_admin_password,omitempty"`

	// Rate limiting for the login endpoint
	RateLimit RateLimitConfig `json:"rate_limit,omitempty"`

	// Audit retention in days (default 90)
	AuditRetentionDays int `json:"audit_retention_days,omitempty"`

	// Log level (debug, info, warn, error)
	LogLevel string `json:"log_level"`
}

// RateLimitConfig configures per-client login throttling.
type RateLimitConfig struct {
	AttemptsPerMinute int `json:"attempts_per_minute"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		ListenAddr:         ":8080",
		DataDir:            "/var/lib/dashboard",
		TokenTTL:           "24h",
		AuditRetentionDays: 90,
		LogLevel:           "info",
		RateLimit: RateLimitConfig{
			AttemptsPerMinute: 10,
		},
	}
}

// Load reads configuration from a file, then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("DASHBOARD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DASHBOARD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DASHBOARD_SIGNING_KEY"); v != "" {
		cfg.SigningKey = v
	}
	if v := os.Getenv("DASHBOARD_TOKEN_TTL"); v != "" {
		cfg.TokenTTL = v
	}
	if v := os.Getenv("DASHBOARD_ADMIN_PASSWORD"); v != "" {
		cfg.BootstrapAdminPassword = v
	}
	if v := os.Getenv("DASHBOARD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DASHBOARD_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimit.AttemptsPerMinute = n
		}
	}
	if v := os.Getenv("DASHBOARD_AUDIT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AuditRetentionDays = n
		}
	}

	return cfg, nil
}

// DecodeSigningKey decodes and validates the configured signing key.
// A missing or weak key is a startup error, not a runtime one.
func (c Config) DecodeSigningKey() ([]byte, error) {
	if c.SigningKey == "" {
		return nil, fmt.Errorf("signing_key is required (hex-encoded, 64+ chars)")
	}
	key, err := hex.DecodeString(c.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("signing_key is not valid hex: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("signing_key too short: %d bytes decoded, need at least 32", len(key))
	}
	return key, nil
}

// ParseTokenTTL parses the configured token lifetime.
func (c Config) ParseTokenTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid token_ttl %q: %w", c.TokenTTL, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("token_ttl must be positive, got %q", c.TokenTTL)
	}
	return ttl, nil
}

// AuditRetention returns the audit retention period.
func (c Config) AuditRetention() time.Duration {
	days := c.AuditRetentionDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}
