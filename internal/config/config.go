// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/azad25/admin-ai-sub003/internal/crypto"
)

type Config struct {
	AppEnv        string
	Port          string
	DatabaseURL   string
	EncryptionKey string
	LogLevel      string
	LogFormat     string
}

// Load reads configuration from the environment and validates it. The
// encryption key is mandatory: there is deliberately no built-in default,
// a process without a configured key must not start.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		EncryptionKey: getEnv("CREDENTIAL_ENCRYPTION_KEY", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.EncryptionKey == "" {
		return nil, &crypto.ConfigError{Reason: "CREDENTIAL_ENCRYPTION_KEY is required"}
	}

	return cfg, nil
}

// LoadKey derives the working key from the configured secret. The caller
// should check KeyIsRecommendedForm and warn once at startup if false.
func (c *Config) LoadKey() (crypto.Key, error) {
	return crypto.LoadKey(c.EncryptionKey)
}

// KeyIsRecommendedForm reports whether the configured secret is a proper
// 64-hex-char key rather than the legacy raw-text fallback.
func (c *Config) KeyIsRecommendedForm() bool {
	return crypto.IsHexKey(c.EncryptionKey)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
