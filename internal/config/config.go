package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// RateLimitStore selects where rate-limit counters live. Memory is only
// valid for single-instance deployments; multi-instance deployments must
// provide a shared counter behind the same middleware.
const (
	RateStoreMemory = "memory"
)

type Config struct {
	Port        string
	DatabaseURL string

	// Session
	SessionSecret  string        // HMAC key for session tokens
	SessionIdle    time.Duration // sliding idle timeout
	SessionMaxLife time.Duration // absolute cap

	// Lockout
	LockoutThreshold int
	LockoutWindow    time.Duration
	LockoutDuration  time.Duration

	// Rate limiting
	GlobalRateLimit  int           // requests per GlobalRateWindow, all routes
	GlobalRateWindow time.Duration
	AuthRateLimit    int           // requests per AuthRateWindow, auth routes
	AuthRateWindow   time.Duration
	RateLimitStore   string

	// Field encryption
	EncryptionKey  string
	EncryptionSalt string

	// Maintenance
	AttemptRetention time.Duration // login_attempts kept this long
	AllowedOrigin    string

	// Optional first-boot admin seed; skipped when empty.
	AdminPassword string
}

// Load reads configuration from a .env file or environment variables.
// Every operational knob has a default; only secrets are required.
func Load() (*Config, error) {
	// Try to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		EncryptionKey:  os.Getenv("ENCRYPTION_KEY"),
		EncryptionSalt: getEnv("ENCRYPTION_SALT", "securebank-field-salt"),
		RateLimitStore: getEnv("RATE_LIMIT_STORE", RateStoreMemory),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
	}

	if cfg.DatabaseURL == "" || cfg.SessionSecret == "" || cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("missing required environment variables: DATABASE_URL, SESSION_SECRET and ENCRYPTION_KEY must be set")
	}

	var err error
	if cfg.SessionIdle, err = getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionMaxLife, err = getDuration("SESSION_MAX_LIFETIME", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.LockoutThreshold, err = getInt("LOCKOUT_THRESHOLD", 3); err != nil {
		return nil, err
	}
	if cfg.LockoutWindow, err = getDuration("LOCKOUT_WINDOW", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LockoutDuration, err = getDuration("LOCKOUT_DURATION", 30*time.Minute); err != nil {
		return nil, err
	}
	// Lock state is derived from failures inside the window; a window
	// shorter than the lock duration would let locks dissolve early once
	// the failures age out.
	if cfg.LockoutWindow < cfg.LockoutDuration {
		return nil, fmt.Errorf("LOCKOUT_WINDOW (%s) must be at least LOCKOUT_DURATION (%s)", cfg.LockoutWindow, cfg.LockoutDuration)
	}
	if cfg.GlobalRateLimit, err = getInt("RATE_LIMIT_GLOBAL", 100); err != nil {
		return nil, err
	}
	if cfg.GlobalRateWindow, err = getDuration("RATE_LIMIT_GLOBAL_WINDOW", time.Hour); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimit, err = getInt("RATE_LIMIT_AUTH", 5); err != nil {
		return nil, err
	}
	if cfg.AuthRateWindow, err = getDuration("RATE_LIMIT_AUTH_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.AttemptRetention, err = getDuration("LOGIN_ATTEMPT_RETENTION", 90*24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.RateLimitStore != RateStoreMemory {
		return nil, fmt.Errorf("unsupported RATE_LIMIT_STORE %q: this build supports %q (single instance only)", cfg.RateLimitStore, RateStoreMemory)
	}

	return cfg, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
