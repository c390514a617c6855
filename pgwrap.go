// Package pgwrap is a small PostgreSQL client wrapper: a bounded connection
// pool handing out exclusive sessions, plus query, transaction, and result
// helpers over pgx.
package pgwrap

import (
	"context"
	"log/slog"

	"github.com/fluxondata/pgwrap/connector"
	"github.com/fluxondata/pgwrap/database"
	"github.com/fluxondata/pgwrap/pool"
)

type (
	Config      = connector.Config
	PoolConfig  = connector.PoolConfig
	RetryConfig = connector.RetryConfig

	DB     = database.DB
	Tx     = database.Tx
	Result = database.Result
	Row    = database.Row

	// Pool hands out exclusive *DB sessions up to the configured cap.
	Pool = pool.Pool[*database.DB]
)

var (
	ErrExhausted = pool.ErrExhausted
	ErrClosed    = pool.ErrClosed
	ErrNoRows    = database.ErrNoRows
	ErrTxDone    = database.ErrTxDone
)

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	logger *slog.Logger
}

// WithLogger routes pool and connection lifecycle events to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open validates cfg and builds a connection pool over it. No connections
// are opened until the first Acquire.
func Open(cfg Config, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	var dbOpts []database.Option
	var poolOpts []pool.Option
	if o.logger != nil {
		dbOpts = append(dbOpts, database.WithLogger(o.logger))
		poolOpts = append(poolOpts, pool.WithLogger(o.logger))
	}

	dial := func(ctx context.Context) (*database.DB, error) {
		return database.ConnectConfig(ctx, cfg, dbOpts...)
	}
	return pool.New(dial, cfg.Pool.MaxConns, poolOpts...)
}

// OpenFile loads a YAML configuration file and builds a pool from it.
func OpenFile(path string, opts ...Option) (*Pool, error) {
	cfg, err := connector.Load(path)
	if err != nil {
		return nil, err
	}
	return Open(cfg, opts...)
}
