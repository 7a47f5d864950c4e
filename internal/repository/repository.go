// Package repository stores users, tasks and activity events in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions overrides the pool sizing parsed from the database URL.
// Zero fields keep the URL's (or pgxpool's) value.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

// Repository is the PostgreSQL-backed store behind the services.
type Repository struct {
	pool *pgxpool.Pool
}

// New opens a pool against databaseURL and fails unless the server answers.
func New(ctx context.Context, databaseURL string, opts PoolOptions) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 && opts.MinConns <= cfg.MaxConns {
		cfg.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Ping checks database connectivity. It satisfies the readiness probe.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Shutdown closes the pool. It matches server.ShutdownFunc.
func (r *Repository) Shutdown(context.Context) error {
	r.pool.Close()
	return nil
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool exposes the pool to test helpers.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, fn)
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
