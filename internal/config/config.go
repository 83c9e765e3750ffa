// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the binaries need to start.
type Config struct {
	// Env is the deployment environment: development, production or test.
	Env string

	ListenAddr  string
	DatabaseDSN string

	// AuthSecret signs session JWTs (HS256).
	AuthSecret string
	SessionTTL time.Duration

	// EncryptionKey is the master key for field-level encryption. Required
	// outside the test environment; internal/fieldcrypt enforces that.
	EncryptionKey string

	MigrationsDir string
	SeedsDir      string

	RateLimitPerSecond int
	RateLimitBurst     int
}

const (
	defaultListenAddr = ":4000"
	defaultSessionTTL = 24 * time.Hour
)

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                envOr("CONDUCKY_ENV", "development"),
		ListenAddr:         envOr("LISTEN_ADDR", defaultListenAddr),
		DatabaseDSN:        os.Getenv("DATABASE_URL"),
		AuthSecret:         os.Getenv("SESSION_SECRET"),
		EncryptionKey:      os.Getenv("ENCRYPTION_KEY"),
		MigrationsDir:      envOr("MIGRATIONS_DIR", "migrations"),
		SeedsDir:           envOr("SEEDS_DIR", "seeds"),
		SessionTTL:         defaultSessionTTL,
		RateLimitPerSecond: 25,
		RateLimitBurst:     50,
	}

	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = ttl
	}
	if raw := os.Getenv("RATE_LIMIT_PER_SECOND"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse RATE_LIMIT_PER_SECOND: %w", err)
		}
		cfg.RateLimitPerSecond = n
	}
	if raw := os.Getenv("RATE_LIMIT_BURST"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = n
	}

	if cfg.DatabaseDSN == "" && !cfg.IsTest() {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AuthSecret == "" && !cfg.IsTest() {
		return Config{}, fmt.Errorf("SESSION_SECRET is required")
	}
	return cfg, nil
}

// IsTest reports whether the service runs under the test environment.
func (c Config) IsTest() bool {
	return strings.EqualFold(c.Env, "test")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
