package database

import (
	"errors"
	"fmt"
)

var (
	// ErrTxDone is returned when a transaction is committed twice.
	ErrTxDone = errors.New("pgwrap: transaction already finalized")

	// ErrNoRows is returned when a first-row accessor finds an empty result.
	ErrNoRows = errors.New("pgwrap: result has no rows")

	// ErrNullValue is returned by typed getters when the column is NULL.
	ErrNullValue = errors.New("pgwrap: column value is NULL")

	// ErrTypeMismatch is returned by typed getters when the column holds a
	// value of an incompatible type.
	ErrTypeMismatch = errors.New("pgwrap: column type mismatch")

	// ErrRowOutOfRange is returned for a row index past the result length.
	ErrRowOutOfRange = errors.New("pgwrap: row index out of range")

	// ErrColumnOutOfRange is returned for a column index past the row width.
	ErrColumnOutOfRange = errors.New("pgwrap: column index out of range")

	// ErrNoSuchColumn is returned when a column name is not in the result.
	ErrNoSuchColumn = errors.New("pgwrap: no such column")
)

// ConnError wraps a failure to establish or keep a connection.
type ConnError struct {
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("pgwrap: connection error: %v", e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// QueryError wraps a failure executing SQL.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("pgwrap: query error: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
