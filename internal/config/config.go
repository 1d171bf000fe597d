// Package config loads and validates EventSync and PayNull configuration
// from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Config holds all EventSync settings.
type Config struct {
	// --- Server ---

	// HTTP port
	Port int
	// Log level (debug, info, warn, error)
	LogLevel slog.Level
	// Log format (json, text)
	LogFormat string
	// Server timeouts
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// SSL mode: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- JWT (identity provider) ---

	// JWKS endpoint of the identity provider
	JWTJWKSURL string
	// Expected issuer; empty disables the issuer check
	JWTIssuer string
	// Allowed clock skew when validating exp/nbf
	JWTLeeway time.Duration
	// JWKS refresh interval
	JWKSRefreshInterval time.Duration
	// JWKS HTTP client timeout
	JWKSClientTimeout time.Duration
	// Optional CA certificate for TLS to the identity provider
	CACertPath string

	// --- QR rendering ---

	// Rendered image edge in pixels
	QRSize int

	// --- Event lookup cache ---

	EventCacheSize int
	EventCacheTTL  time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load reads ES_* variables, applies defaults and validates ranges.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Server ---

	cfg.Port, err = getEnvInt("ES_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("ES_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("ES_PORT: value %d out of range 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("ES_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("ES_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat, err = parseLogFormat(getEnvDefault("ES_LOG_FORMAT", "json"))
	if err != nil {
		return nil, fmt.Errorf("ES_LOG_FORMAT: %w", err)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("ES_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("ES_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("ES_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("ES_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("ES_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("ES_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBPort, err = getEnvInt("ES_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("ES_DB_PORT: %w", err)
	}
	cfg.DBSSLMode = getEnvDefault("ES_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("ES_DB_SSL_MODE: invalid value %q, allowed: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	if cfg.DBHost, err = getEnvRequired("ES_DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.DBName, err = getEnvRequired("ES_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("ES_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("ES_DB_PASSWORD"); err != nil {
		return nil, err
	}

	// --- JWT ---

	cfg.JWTJWKSURL, err = getEnvRequired("ES_JWT_JWKS_URL")
	if err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(cfg.JWTJWKSURL); err != nil {
		return nil, fmt.Errorf("ES_JWT_JWKS_URL: invalid URL %q", cfg.JWTJWKSURL)
	}
	cfg.JWTIssuer = getEnvDefault("ES_JWT_ISSUER", "")

	if cfg.JWTLeeway, err = getEnvDuration("ES_JWT_LEEWAY", 30*time.Second); err != nil {
		return nil, fmt.Errorf("ES_JWT_LEEWAY: %w", err)
	}
	if cfg.JWKSRefreshInterval, err = getEnvDuration("ES_JWKS_REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("ES_JWKS_REFRESH_INTERVAL: %w", err)
	}
	if cfg.JWKSClientTimeout, err = getEnvDuration("ES_JWKS_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("ES_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.CACertPath = getEnvDefault("ES_CA_CERT_PATH", "")

	// --- QR rendering ---

	cfg.QRSize, err = getEnvInt("ES_QR_SIZE", 300)
	if err != nil {
		return nil, fmt.Errorf("ES_QR_SIZE: %w", err)
	}
	if cfg.QRSize < 100 || cfg.QRSize > 1000 {
		return nil, fmt.Errorf("ES_QR_SIZE: value %d out of range 100-1000", cfg.QRSize)
	}

	// --- Event lookup cache ---

	cfg.EventCacheSize, err = getEnvInt("ES_EVENT_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("ES_EVENT_CACHE_SIZE: %w", err)
	}
	if cfg.EventCacheSize < 1 {
		return nil, fmt.Errorf("ES_EVENT_CACHE_SIZE: value %d must be positive", cfg.EventCacheSize)
	}
	if cfg.EventCacheTTL, err = getEnvDuration("ES_EVENT_CACHE_TTL", 30*time.Second); err != nil {
		return nil, fmt.Errorf("ES_EVENT_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("ES_DEPHEALTH_GROUP", "eventsync")
	if cfg.DephealthCheckInterval, err = getEnvDuration("ES_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("ES_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	if cfg.ShutdownTimeout, err = getEnvDuration("ES_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("ES_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN returns the pgx connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL returns a password-free URL, used as a metrics label.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL returns the golang-migrate pgx5 URL.
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// SetupLogger configures the global slog logger.
func SetupLogger(level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Helpers ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: required environment variable is not set", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q (use Go format: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", val)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid level %q, allowed: debug, info, warn, error", level)
	}
}

func parseLogFormat(format string) (string, error) {
	if format != "json" && format != "text" {
		return "", fmt.Errorf("invalid value %q, allowed: json, text", format)
	}
	return format, nil
}
