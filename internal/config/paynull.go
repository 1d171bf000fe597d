package config

import (
	"fmt"
	"log/slog"
	"time"
)

// PayNullConfig holds settings of the PayNull sandbox gateway.
type PayNullConfig struct {
	Port      int
	LogLevel  slog.Level
	LogFormat string

	// How long an intent stays retrievable
	IntentTTL time.Duration
	// Upper bound on stored intents; oldest are evicted first
	MaxIntents int
	// Timeout of outgoing webhook test deliveries
	WebhookTimeout time.Duration
	// Optional CA certificate for HTTPS webhook targets
	WebhookCACertPath string

	ShutdownTimeout time.Duration
}

// LoadPayNull reads PN_* variables.
func LoadPayNull() (*PayNullConfig, error) {
	cfg := &PayNullConfig{}
	var err error

	cfg.Port, err = getEnvInt("PN_PORT", 8090)
	if err != nil {
		return nil, fmt.Errorf("PN_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PN_PORT: value %d out of range 1-65535", cfg.Port)
	}

	if cfg.LogLevel, err = parseLogLevel(getEnvDefault("PN_LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("PN_LOG_LEVEL: %w", err)
	}
	if cfg.LogFormat, err = parseLogFormat(getEnvDefault("PN_LOG_FORMAT", "json")); err != nil {
		return nil, fmt.Errorf("PN_LOG_FORMAT: %w", err)
	}

	if cfg.IntentTTL, err = getEnvDuration("PN_INTENT_TTL", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("PN_INTENT_TTL: %w", err)
	}

	cfg.MaxIntents, err = getEnvInt("PN_MAX_INTENTS", 10000)
	if err != nil {
		return nil, fmt.Errorf("PN_MAX_INTENTS: %w", err)
	}
	if cfg.MaxIntents < 1 || cfg.MaxIntents > 1000000 {
		return nil, fmt.Errorf("PN_MAX_INTENTS: value %d out of range 1-1000000", cfg.MaxIntents)
	}

	if cfg.WebhookTimeout, err = getEnvDuration("PN_WEBHOOK_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("PN_WEBHOOK_TIMEOUT: %w", err)
	}
	cfg.WebhookCACertPath = getEnvDefault("PN_WEBHOOK_CA_CERT_PATH", "")

	if cfg.ShutdownTimeout, err = getEnvDuration("PN_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("PN_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}
