package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool tuning for the bank core. Conversations are short bursts of
// point lookups, so connections recycle aggressively.
const (
	dbMaxConnLifetime   = 30 * time.Minute
	dbMaxConnIdleTime   = 5 * time.Minute
	dbHealthCheckPeriod = time.Minute
	dbConnectTimeout    = 3 * time.Second
)

// NewDBPool connects to the bank core database and verifies the
// connection before returning. Schema management is handled by
// migrations, not the app.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}
	pcfg.MaxConnLifetime = dbMaxConnLifetime
	pcfg.MaxConnIdleTime = dbMaxConnIdleTime
	pcfg.HealthCheckPeriod = dbHealthCheckPeriod
	pcfg.ConnConfig.RuntimeParams["application_name"] = "bankassist"

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := PingDB(ctx, pool, dbConnectTimeout); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping bank core: %w", err)
	}

	return pool, nil
}

// PingDB round-trips the database within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return pool.Ping(ctx)
}
