// EventSync entry point: QR attendance and coupon tracking for events.
// Loads configuration, applies migrations, connects to PostgreSQL, builds
// the service layer and API handlers, starts dependency monitoring and
// runs the HTTP server with JWT auth and graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/kintsugi/eventsync/internal/api/handlers"
	"github.com/kintsugi/eventsync/internal/api/middleware"
	"github.com/kintsugi/eventsync/internal/config"
	"github.com/kintsugi/eventsync/internal/database"
	"github.com/kintsugi/eventsync/internal/qrpayload"
	"github.com/kintsugi/eventsync/internal/repository"
	"github.com/kintsugi/eventsync/internal/server"
	"github.com/kintsugi/eventsync/internal/service"
)

func main() {
	// 1. Configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Logging
	logger := config.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("EventSync starting",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("ES_DEPHEALTH_GROUP") == "" {
		logger.Warn("ES_DEPHEALTH_GROUP is not set, using the default",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Database migrations
	logger.Info("Applying database migrations...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Database migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. PostgreSQL pool
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 pgxpool -> *sql.DB so topologymetrics checks go through the same pool
	// and notice its exhaustion.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	trackingRepo := repository.NewTrackingRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	// 6. Services
	eventCache := service.NewEventCache(eventRepo, cfg.EventCacheSize, cfg.EventCacheTTL)
	codec := qrpayload.NewCodec(qrpayload.NewPNGRenderer(cfg.QRSize))
	trackingSvc := service.NewTrackingService(trackingRepo, teamRepo, eventCache, codec, logger)
	messageSvc := service.NewMessageService(messageRepo, eventCache, logger)

	// 7. Readiness checkers (PostgreSQL + identity provider JWKS)
	pgChecker := database.NewReadinessChecker(pool)
	jwksChecker, err := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Failed to create JWKS readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, jwksChecker)

	// 8. API handler
	apiHandler := handlers.NewAPIHandler(healthHandler, trackingSvc, messageSvc, logger)

	// 9. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:         cfg.JWTJWKSURL,
		CACertPath:      cfg.CACertPath,
		Issuer:          cfg.JWTIssuer,
		ClientTimeout:   cfg.JWKSClientTimeout,
		RefreshInterval: cfg.JWKSRefreshInterval,
		Leeway:          cfg.JWTLeeway,
	}, logger)
	if err != nil {
		logger.Error("Failed to create JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware initialized",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 10. topologymetrics: PostgreSQL + identity provider
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "eventsync",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PostgresURL:   cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics unavailable, running without dependency monitoring",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Failed to start topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics started",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 11. HTTP server: metrics -> request log -> JWT (health and metrics are public)
	srv := server.New(server.Config{
		Port:            cfg.Port,
		ReadTimeout:     cfg.HTTPReadTimeout,
		WriteTimeout:    cfg.HTTPWriteTimeout,
		IdleTimeout:     cfg.HTTPIdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger,
		func(r chi.Router) { handlers.HandlerFromMux(apiHandler, r) },
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		server.WithExclusions(jwtAuth.Middleware(), "/health/", "/metrics"),
	)

	runErr := srv.Run()

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Server error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("EventSync stopped")
}
