// dephealth.go - dependency monitoring through the topologymetrics SDK.
//
// EventSync watches:
//   - PostgreSQL: SQL checker over the existing pgxpool (connection pool mode, critical)
//   - Identity provider JWKS: HTTP checker against the JWKS document (critical)
//
// Metrics are exposed on /metrics next to the application metrics
// (app_dependency_health, app_dependency_latency_seconds, ...).
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthService monitors the service dependencies.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// DephealthConfig configures dependency monitoring.
type DephealthConfig struct {
	// ServiceID is the graph vertex name of this application.
	ServiceID string
	Group     string
	// DB is obtained from the pgxpool through stdlib.OpenDBFromPool.
	DB *sql.DB
	// PostgresURL is used for labels only, never to connect.
	PostgresURL   string
	JWKSURL       string
	CheckInterval time.Duration
}

// NewDephealthService creates the monitor with the global Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer uses the given registerer. Tests isolate metrics this way.
func NewDephealthServiceWithRegisterer(cfg DephealthConfig, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	jwks, err := url.Parse(cfg.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("parse JWKS URL: %w", err)
	}

	jwksDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.JWKSURL),
		dephealth.WithHTTPHealthPath(jwksHealthPath(jwks)),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if jwks.Scheme == "https" {
		jwksDepOpts = append(jwksDepOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.PostgresURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
		dephealth.HTTP("identity-provider", jwksDepOpts...),
	)
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// jwksHealthPath probes the JWKS document itself, query included.
func jwksHealthPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// Start begins periodic checks.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Dependency monitoring started (PostgreSQL + JWKS)")
	return ds.dh.Start(ctx)
}

// Stop halts the checks.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Dependency monitoring stopped")
}

// Health maps dependency names to their last check result.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
