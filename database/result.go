package database

import (
	"time"

	"github.com/jackc/pgx/v5"
)

// Result holds the fully materialized outcome of one query: column names,
// row values, and the affected-row count from the command tag.
type Result struct {
	columns  []string
	rows     [][]any
	affected int64
}

// collectResult drains and closes a pgx row stream.
func collectResult(rows pgx.Rows, sql string) (*Result, error) {
	defer rows.Close()

	fds := rows.FieldDescriptions()
	columns := make([]string, len(fds))
	for i, fd := range fds {
		columns[i] = fd.Name
	}

	res := &Result{columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &QueryError{SQL: sql, Err: err}
		}
		row := make([]any, len(values))
		copy(row, values)
		res.rows = append(res.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{SQL: sql, Err: err}
	}

	res.affected = rows.CommandTag().RowsAffected()
	return res, nil
}

// Len returns the number of rows.
func (r *Result) Len() int { return len(r.rows) }

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool { return len(r.rows) == 0 }

// RowsAffected returns the number of rows the command changed.
func (r *Result) RowsAffected() int64 { return r.affected }

// Columns returns the column names in result order.
func (r *Result) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// ColumnName returns the name of column i.
func (r *Result) ColumnName(i int) (string, error) {
	if i < 0 || i >= len(r.columns) {
		return "", ErrColumnOutOfRange
	}
	return r.columns[i], nil
}

// Row returns row i.
func (r *Result) Row(i int) (Row, error) {
	if i < 0 || i >= len(r.rows) {
		return Row{}, ErrRowOutOfRange
	}
	return Row{columns: r.columns, values: r.rows[i]}, nil
}

// First returns the first row, or ErrNoRows on an empty result.
func (r *Result) First() (Row, error) {
	if len(r.rows) == 0 {
		return Row{}, ErrNoRows
	}
	return Row{columns: r.columns, values: r.rows[0]}, nil
}

// FirstOK returns the first row and whether one exists.
func (r *Result) FirstOK() (Row, bool) {
	if len(r.rows) == 0 {
		return Row{}, false
	}
	return Row{columns: r.columns, values: r.rows[0]}, true
}

// Each calls fn for every row, stopping at the first error.
func (r *Result) Each(fn func(Row) error) error {
	for _, values := range r.rows {
		if err := fn(Row{columns: r.columns, values: values}); err != nil {
			return err
		}
	}
	return nil
}

// Row is one row of a Result. Values carry the driver's native Go types:
// int64/int32/int16 for integers, string for text, time.Time for
// timestamps, nil for NULL.
type Row struct {
	columns []string
	values  []any
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.values) }

// Index returns the position of the named column.
func (r Row) Index(name string) (int, error) {
	for i, c := range r.columns {
		if c == name {
			return i, nil
		}
	}
	return 0, ErrNoSuchColumn
}

// Value returns the raw value of column i.
func (r Row) Value(i int) (any, error) {
	if i < 0 || i >= len(r.values) {
		return nil, ErrColumnOutOfRange
	}
	return r.values[i], nil
}

// ValueByName returns the raw value of the named column.
func (r Row) ValueByName(name string) (any, error) {
	i, err := r.Index(name)
	if err != nil {
		return nil, err
	}
	return r.values[i], nil
}

// IsNull reports whether column i is NULL. Out-of-range indexes report
// false.
func (r Row) IsNull(i int) bool {
	return i >= 0 && i < len(r.values) && r.values[i] == nil
}

// IsNullByName reports whether the named column is NULL.
func (r Row) IsNullByName(name string) (bool, error) {
	i, err := r.Index(name)
	if err != nil {
		return false, err
	}
	return r.values[i] == nil, nil
}

// String returns column i as a string.
func (r Row) String(i int) (string, error) {
	v, err := r.Value(i)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case nil:
		return "", ErrNullValue
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", ErrTypeMismatch
	}
}

// Int64 returns column i as an int64, converting from any integer width
// the driver decodes to.
func (r Row) Int64(i int) (int64, error) {
	v, err := r.Value(i)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case nil:
		return 0, ErrNullValue
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, ErrTypeMismatch
	}
}

// Float64 returns column i as a float64.
func (r Row) Float64(i int) (float64, error) {
	v, err := r.Value(i)
	if err != nil {
		return 0, err
	}
	switch f := v.(type) {
	case nil:
		return 0, ErrNullValue
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	default:
		return 0, ErrTypeMismatch
	}
}

// Bool returns column i as a bool.
func (r Row) Bool(i int) (bool, error) {
	v, err := r.Value(i)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, ErrNullValue
	}
	b, ok := v.(bool)
	if !ok {
		return false, ErrTypeMismatch
	}
	return b, nil
}

// Time returns column i as a time.Time.
func (r Row) Time(i int) (time.Time, error) {
	v, err := r.Value(i)
	if err != nil {
		return time.Time{}, err
	}
	if v == nil {
		return time.Time{}, ErrNullValue
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, ErrTypeMismatch
	}
	return t, nil
}
