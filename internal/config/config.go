// CloudMigrate Pro configuration
// Environment-driven config loaded through godotenv

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration.
type Config struct {
	Port        string
	Environment string
	AppBaseURL  string

	DatabaseURL string
	RedisURL    string

	JWTSecret    string
	CookieDomain string

	StripeSecretKey     string
	StripeWebhookSecret string
}

// Load reads .env (if present) and the process environment. JWT_SECRET
// and DATABASE_URL are required; a short JWT secret is rejected outright.
func Load() (*Config, error) {
	// Missing .env is fine in production; env vars come from the platform.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		AppBaseURL:          getEnv("APP_BASE_URL", "http://localhost:3000"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		CookieDomain:        os.Getenv("COOKIE_DOMAIN"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 20 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 20 characters, got %d", len(cfg.JWTSecret))
	}

	return cfg, nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
