package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Config holds the process settings read from the environment.
type Config struct {
	ServiceName         string
	Env                 string
	HTTPAddr            string
	OrderBackendURL     string
	OrderBackendTimeout time.Duration
	// The backend circuit opens after BreakerFailures consecutive failures and
	// lets a trial call through after BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
	StripeSecretKey string
	// Per-client checkout request budget; zero disables limiting.
	RatePerMinute int
	RateBurst     int
	// Sessions untouched for this long are abandoned and forgotten.
	SessionIdleTTL  time.Duration
	ShutdownTimeout time.Duration
	LogFile         string
	LogLevel        zapcore.Level

	// DotEnvLoaded reports whether a .env file was found and applied.
	DotEnvLoaded bool
}

// Load applies the given .env files (".env" when none are named) without overriding
// variables already set, then reads the configuration. Missing files are not an error.
func Load(files ...string) (Config, error) {
	loaded := true
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load env file: %w", err)
		}
		loaded = false
	}

	cfg := Config{
		ServiceName:     getEnv("SERVICE_NAME", "minishop-checkout"),
		Env:             getEnv("ENV", "dev"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		OrderBackendURL: getEnv("ORDER_BACKEND_URL", "http://localhost:4242"),
		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		LogFile:         getEnv("LOG_FILE", ""),
		DotEnvLoaded:    loaded,
	}

	var err error
	if cfg.OrderBackendTimeout, err = getDuration("ORDER_BACKEND_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.BreakerCooldown, err = getDuration("ORDER_BACKEND_BREAKER_COOLDOWN", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.BreakerFailures, err = getCount("ORDER_BACKEND_BREAKER_FAILURES", 5); err != nil {
		return Config{}, err
	}
	if cfg.RatePerMinute, err = getInt("CHECKOUT_RATE_PER_MINUTE", 120); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = getInt("CHECKOUT_RATE_BURST", 20); err != nil {
		return Config{}, err
	}
	if cfg.SessionIdleTTL, err = getDuration("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = zapcore.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	if u, perr := url.Parse(cfg.OrderBackendURL); perr != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("config: ORDER_BACKEND_URL %q is not an absolute URL", cfg.OrderBackendURL)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %s", key, raw)
	}
	return d, nil
}

func getCount(key string, fallback uint32) (uint32, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return uint32(n), nil
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("config: %s must not be negative, got %d", key, n)
	}
	return n, nil
}
