// Package database owns the tracking store: the PostgreSQL pool, the
// embedded schema migrations and the readiness check for /health/ready.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kintsugi/eventsync/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect creates the pool and pings the server once.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to tracking store %s: %w", cfg.DatabaseURL(), err)
	}

	logger.Info("Tracking store connected",
		slog.String("database_url", cfg.DatabaseURL()),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)

	return pool, nil
}

// Migrate brings the tracking schema up to the newest embedded migration.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty, fix it by hand and force the version", version)
	}
	logger.Info("Tracking schema up to date", slog.Uint64("schema_version", uint64(version)))

	return nil
}

// readinessQuery fails when the server is down and returns false when the
// schema has not been migrated yet.
const readinessQuery = `SELECT to_regclass('attendance_tracking') IS NOT NULL`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReadinessChecker reports whether the tracking store can serve requests.
type ReadinessChecker struct {
	db      rowQuerier
	timeout time.Duration
}

// NewReadinessChecker wraps the pool.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{db: pool, timeout: 3 * time.Second}
}

// CheckReady returns "ok" once the tracking table is reachable and "fail"
// otherwise.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var migrated bool
	if err := c.db.QueryRow(ctx, readinessQuery).Scan(&migrated); err != nil {
		return "fail", fmt.Sprintf("tracking store unreachable: %v", err)
	}
	if !migrated {
		return "fail", "tracking schema not migrated"
	}
	return "ok", "tracking store ready"
}
