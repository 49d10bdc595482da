// Package config loads app config from the environment and an optional
// .env file using Viper.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/errors/v5"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// CookieHashKey is the base64 HMAC key for the auth cookie (64 bytes decoded).
	CookieHashKey string `mapstructure:"COOKIE_HASH_KEY"`
	// CookieBlockKey is the base64 AES key for the auth cookie (32 bytes decoded).
	CookieBlockKey string `mapstructure:"COOKIE_BLOCK_KEY"`
	// SessionLifetime is the sliding session lifetime (e.g. "24h").
	SessionLifetime time.Duration `mapstructure:"SESSION_LIFETIME"`
	// StorageTimeout bounds every session/grant store call (e.g. "5s").
	StorageTimeout time.Duration `mapstructure:"STORAGE_TIMEOUT"`
	// Env is the application environment ("development", "production").
	// Outside development the auth cookie is always Secure.
	Env string `mapstructure:"APP_ENV"`
}

// SecureCookies reports whether the Secure cookie attribute is enforced.
func (c *Config) SecureCookies() bool {
	return !strings.EqualFold(c.Env, "development")
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Missing .env is ignored (e.g. in CI); env vars override it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so every key needs a
	// default for AutomaticEnv to surface it.
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("COOKIE_HASH_KEY", "")
	v.SetDefault("COOKIE_BLOCK_KEY", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SESSION_LIFETIME", "24h")
	v.SetDefault("STORAGE_TIMEOUT", "5s")
	v.SetDefault("APP_ENV", "development")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "viper.Viper.Unmarshal()")
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.CookieHashKey == "" {
		return nil, errors.New("COOKIE_HASH_KEY is required")
	}
	if cfg.SessionLifetime <= 0 {
		return nil, errors.New("SESSION_LIFETIME must be positive")
	}
	if cfg.StorageTimeout <= 0 {
		return nil, errors.New("STORAGE_TIMEOUT must be positive")
	}

	return cfg, nil
}
