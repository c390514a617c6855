// Package database wraps a single PostgreSQL driver connection with query
// execution, transactions, prepared statements, and small introspection
// helpers. A DB represents exactly one server session; concurrent use goes
// through the pool package, which hands out one DB per caller.
package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fluxondata/pgwrap/cache"
	"github.com/fluxondata/pgwrap/connector"
	"github.com/fluxondata/pgwrap/dialect"
)

const defaultStatementCacheSize = 64

// Option configures a DB.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	stmtCache int
}

// WithLogger sets the logger for connection events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStatementCacheSize bounds this connection's prepared-statement cache.
func WithStatementCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.stmtCache = n
		}
	}
}

// DB is one live session to a PostgreSQL server.
type DB struct {
	conn    *pgx.Conn
	id      uuid.UUID
	dialect dialect.Dialect
	stmts   *cache.StatementCache
	logger  *slog.Logger
}

// Connect opens a new session described by a postgres:// DSN.
func Connect(ctx context.Context, dsn string, opts ...Option) (*DB, error) {
	o := options{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		stmtCache: defaultStatementCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, &ConnError{Err: err}
	}

	db := &DB{
		conn:    conn,
		id:      uuid.New(),
		dialect: dialect.NewPostgresDialect(),
		logger:  o.logger,
	}
	db.stmts = cache.NewStatementCache(o.stmtCache, func(name string) {
		// Best effort: the statement also disappears when the session ends.
		_ = conn.Deallocate(context.Background(), name)
	})

	db.logger.Debug("database: connected", "conn_id", db.id)
	return db, nil
}

// ConnectConfig opens a new session from a validated configuration,
// honoring its connect timeout and retry policy.
func ConnectConfig(ctx context.Context, cfg connector.Config, opts ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	dial := func(ctx context.Context) (*DB, error) {
		return Connect(ctx, cfg.DSN(), opts...)
	}
	if cfg.Retry != nil {
		return connector.Dial(ctx, *cfg.Retry, dial)
	}
	return dial(ctx)
}

// ID returns this connection's identity, fixed at connect time.
func (db *DB) ID() uuid.UUID { return db.id }

// IsClosed reports whether the session is no longer usable. Safe on a nil
// receiver so the pool can liveness-check whatever it is handed.
func (db *DB) IsClosed() bool {
	return db == nil || db.conn.IsClosed()
}

// Ping verifies the server is reachable over this session.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.Ping(ctx); err != nil {
		return &ConnError{Err: err}
	}
	return nil
}

// Close terminates the session. Closing an already-closed DB is a no-op.
func (db *DB) Close(ctx context.Context) error {
	if db == nil || db.conn.IsClosed() {
		return nil
	}
	db.logger.Debug("database: closing", "conn_id", db.id)
	return db.conn.Close(ctx)
}

// Host returns the configured server host.
func (db *DB) Host() string { return db.conn.Config().Host }

// Database returns the configured database name.
func (db *DB) Database() string { return db.conn.Config().Database }

// User returns the configured user name.
func (db *DB) User() string { return db.conn.Config().User }

// Exec runs a statement that returns no rows and reports the number of
// rows it affected.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := db.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, &QueryError{SQL: sql, Err: err}
	}
	return tag.RowsAffected(), nil
}

// Query runs a query and materializes the full result.
func (db *DB) Query(ctx context.Context, sql string, args ...any) (*Result, error) {
	rows, err := db.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, &QueryError{SQL: sql, Err: err}
	}
	return collectResult(rows, sql)
}

// QueryRow runs a query and returns its first row, or ErrNoRows.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) (Row, error) {
	res, err := db.Query(ctx, sql, args...)
	if err != nil {
		return Row{}, err
	}
	return res.First()
}

// Begin starts a transaction on this session.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	return &Tx{tx: tx, db: db}, nil
}

// Prepare registers sql as a prepared statement on this session and
// returns its name. Repeated calls with the same text reuse the cached
// statement; the cache is private to this connection.
func (db *DB) Prepare(ctx context.Context, sql string) (string, error) {
	name, err := db.stmts.GetOrPrepare(ctx, sql, func(ctx context.Context, name, sql string) error {
		_, err := db.conn.Prepare(ctx, name, sql)
		return err
	})
	if err != nil {
		return "", &QueryError{SQL: sql, Err: err}
	}
	return name, nil
}

// QueryPrepared runs sql through this session's prepared-statement cache.
func (db *DB) QueryPrepared(ctx context.Context, sql string, args ...any) (*Result, error) {
	name, err := db.Prepare(ctx, sql)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(ctx, name, args...)
	if err != nil {
		return nil, &QueryError{SQL: sql, Err: err}
	}
	return collectResult(rows, sql)
}

// TableExists reports whether a table with the given name exists.
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	row, err := db.QueryRow(ctx,
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)",
		table)
	if err != nil {
		return false, err
	}
	return row.Bool(0)
}

// Columns returns the column names of a table in ordinal order.
func (db *DB) Columns(ctx context.Context, table string) ([]string, error) {
	res, err := db.Query(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position",
		table)
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, res.Len())
	err = res.Each(func(row Row) error {
		name, err := row.String(0)
		if err != nil {
			return err
		}
		columns = append(columns, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// Insert writes one row into table. The number of values must match the
// number of columns.
func (db *DB) Insert(ctx context.Context, table string, columns []string, values ...any) error {
	if len(values) != len(columns) {
		return fmt.Errorf("pgwrap: insert into %s: %d values for %d columns",
			table, len(values), len(columns))
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(db.dialect.QuoteIdentifier(table))
	sb.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(db.dialect.QuoteIdentifier(col))
	}
	sb.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(db.dialect.Placeholder(i + 1))
	}
	sb.WriteString(")")

	_, err := db.Exec(ctx, sb.String(), values...)
	return err
}
