// Package db provides database access for the template store: a Postgres
// connection pool, a SQL-file migrator, and a SQLite opener for
// single-node deployments.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool connects a pgx pool sized for the template workload. Renders
// hold a connection only for the metadata read, so small pools go a long
// way; the caller configures the bounds. The pool is pinged before being
// returned, so a bad DATABASE_URL fails at startup rather than on the
// first upload.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
