package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/eventdetection/event-detection/internal/cache"
	"github.com/eventdetection/event-detection/internal/store"
	"github.com/eventdetection/event-detection/pkg/config"
	"github.com/eventdetection/event-detection/pkg/health"
	"github.com/eventdetection/event-detection/pkg/metrics"
	"github.com/eventdetection/event-detection/pkg/postgres"
	pkgredis "github.com/eventdetection/event-detection/pkg/redis"
)

// OpenStore connects to PostgreSQL, creates missing tables and registers a
// readiness probe. The caller closes the returned client.
func OpenStore(ctx context.Context, cfg *config.Config, checker *health.Checker) (*store.Store, *postgres.Client, error) {
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	st := store.New(db)
	if err := st.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if checker != nil {
		checker.Register("postgres", health.PingCheck(db.Ping, false))
	}
	slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	return st, db, nil
}

// OpenCache connects to Redis and returns a keyword cache in front of st.
// When Redis is unreachable it returns nil and the caller runs uncached.
func OpenCache(cfg *config.Config, st *store.Store, m *metrics.Metrics, checker *health.Checker) (*cache.KeywordCache, func()) {
	client, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, keyword caching disabled", "error", err)
		return nil, func() {}
	}
	if checker != nil {
		checker.Register("redis", health.PingCheck(client.Ping, true))
	}
	slog.Info("keyword cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.KeywordTTL)
	return cache.New(client, st, cfg.Redis.KeywordTTL, m), func() { client.Close() }
}

// StartMetrics starts the metrics server when enabled, mounting the health
// probes next to /metrics. It returns the collectors (nil when disabled) and
// a shutdown func.
func StartMetrics(cfg *config.Config, checker *health.Checker) (*metrics.Metrics, func(context.Context) error) {
	if !cfg.Metrics.Enabled {
		return nil, func(context.Context) error { return nil }
	}
	m := metrics.New()
	var mounts []func(*http.ServeMux)
	if checker != nil {
		mounts = append(mounts, checker.Mount)
	}
	shutdown, err := metrics.StartServer(cfg.Metrics.Port, mounts...)
	if err != nil {
		slog.Warn("metrics server not started", "error", err)
		return m, func(context.Context) error { return nil }
	}
	return m, shutdown
}
