package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	Port           string
	DBPath         string
	BaseURL        string
	LogLevel       string
	LogFormat      string // text|json
	Location       *time.Location
	AllowedOrigins []string
	SessionTTL     time.Duration
	RateLimit      RateLimitConfig
	Email          EmailConfig
	Metrics        MetricsConfig
}

// RateLimitConfig governs the per-IP limiter on the auth endpoints.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type EmailConfig struct {
	PostmarkToken string
	FromEmail     string
}

// MetricsConfig holds optional basic-auth credentials for /metrics.
type MetricsConfig struct {
	User     string
	Password string
}

const (
	defaultPort       = "8080"
	defaultDBPath     = "gospel5.db"
	defaultLogLevel   = "info"
	defaultLogFormat  = "text"
	defaultTimezone   = "UTC"
	defaultSessionTTL = 30 * 24 * time.Hour
	defaultRPS        = 1.0
	defaultBurst      = 10
)

// Load reads configuration from the environment, applying defaults. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment take precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:      valueOrDefault("GOSPEL5_PORT", defaultPort),
		DBPath:    valueOrDefault("GOSPEL5_DB_PATH", defaultDBPath),
		LogLevel:  valueOrDefault("GOSPEL5_LOG_LEVEL", defaultLogLevel),
		LogFormat: valueOrDefault("GOSPEL5_LOG_FORMAT", defaultLogFormat),
		Email: EmailConfig{
			PostmarkToken: os.Getenv("GOSPEL5_POSTMARK_TOKEN"),
			FromEmail:     os.Getenv("GOSPEL5_FROM_EMAIL"),
		},
		Metrics: MetricsConfig{
			User:     os.Getenv("GOSPEL5_METRICS_USER"),
			Password: os.Getenv("GOSPEL5_METRICS_PASS"),
		},
	}
	cfg.BaseURL = valueOrDefault("GOSPEL5_BASE_URL", "http://localhost:"+cfg.Port)
	cfg.AllowedOrigins = splitCSV(valueOrDefault("GOSPEL5_ALLOWED_ORIGINS", cfg.BaseURL))
	// Session cookies ride on cross-origin requests, so every origin must be named.
	if slices.Contains(cfg.AllowedOrigins, "*") {
		return Config{}, fmt.Errorf("parse GOSPEL5_ALLOWED_ORIGINS: wildcard origin not allowed with credentials")
	}

	loc, err := time.LoadLocation(valueOrDefault("GOSPEL5_TIMEZONE", defaultTimezone))
	if err != nil {
		return Config{}, fmt.Errorf("parse GOSPEL5_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.SessionTTL, err = parseDurationWithDefault("GOSPEL5_SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.RPS, err = parseFloatWithDefault("GOSPEL5_RATE_LIMIT_RPS", defaultRPS); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.Burst, err = parseIntWithDefault("GOSPEL5_RATE_LIMIT_BURST", defaultBurst); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func valueOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDurationWithDefault(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse %s: must be positive", key)
	}
	return d, nil
}

func parseIntWithDefault(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func parseFloatWithDefault(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
