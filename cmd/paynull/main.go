// PayNull entry point: an in-memory sandbox payment gateway for demos.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/kintsugi/eventsync/internal/api/middleware"
	"github.com/kintsugi/eventsync/internal/config"
	"github.com/kintsugi/eventsync/internal/paynull"
	"github.com/kintsugi/eventsync/internal/server"
)

func main() {
	// 1. Configuration
	cfg, err := config.LoadPayNull()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Logging
	logger := config.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("PayNull starting",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Int("max_intents", cfg.MaxIntents),
		slog.String("intent_ttl", cfg.IntentTTL.String()),
	)

	// 3. Store, webhook notifier, service
	store := paynull.NewLRUStore(cfg.MaxIntents, cfg.IntentTTL)
	notifier, err := paynull.NewNotifier(cfg.WebhookTimeout, cfg.WebhookCACertPath, logger)
	if err != nil {
		logger.Error("Failed to create webhook notifier", slog.String("error", err.Error()))
		os.Exit(1)
	}
	svc := paynull.NewService(store, notifier, logger)

	// 4. HTTP server
	h := paynull.NewHandler(svc, config.Version, logger)
	srv := server.New(server.Config{
		Port:            cfg.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    cfg.WebhookTimeout + 15*time.Second, // covers a slow webhook-test delivery
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger, h.Routes, middleware.RequestLogger(logger))

	if err := srv.Run(); err != nil {
		logger.Error("Server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("PayNull stopped")
}
