package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Tx is an open transaction on one session. It is not safe for concurrent
// use; like the session itself, it belongs to a single caller.
type Tx struct {
	tx   pgx.Tx
	db   *DB
	done bool
}

// Exec runs a statement inside the transaction and reports the number of
// rows it affected.
func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, &QueryError{SQL: sql, Err: err}
	}
	return tag.RowsAffected(), nil
}

// Query runs a query inside the transaction and materializes the result.
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (*Result, error) {
	if t.done {
		return nil, ErrTxDone
	}
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, &QueryError{SQL: sql, Err: err}
	}
	return collectResult(rows, sql)
}

// QueryRow runs a query inside the transaction and returns its first row.
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) (Row, error) {
	res, err := t.Query(ctx, sql, args...)
	if err != nil {
		return Row{}, err
	}
	return res.First()
}

// QueryPrepared runs sql through the owning session's prepared-statement
// cache. Prepared statements are session-scoped, so a statement prepared
// outside the transaction is usable inside it and survives it.
func (t *Tx) QueryPrepared(ctx context.Context, sql string, args ...any) (*Result, error) {
	if t.done {
		return nil, ErrTxDone
	}
	name, err := t.db.Prepare(ctx, sql)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, name, args...)
	if err != nil {
		return nil, &QueryError{SQL: sql, Err: err}
	}
	return collectResult(rows, sql)
}

// Commit makes the transaction's changes durable. Committing twice returns
// ErrTxDone. A failed commit still finalizes the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return &QueryError{Err: err}
	}
	return nil
}

// Rollback abandons the transaction. Rolling back after Commit or a prior
// Rollback is a no-op, so it is safe to defer unconditionally.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return &QueryError{Err: err}
	}
	return nil
}

// Quote renders a value as a SQL literal.
func (t *Tx) Quote(v any) string {
	return t.db.dialect.RenderValue(v)
}

// QuoteName renders an identifier with proper quoting.
func (t *Tx) QuoteName(name string) string {
	return t.db.dialect.QuoteIdentifier(name)
}
