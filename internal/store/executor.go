package store

import (
	"context"
	"database/sql"
	"fmt"
)

// queryer is the read surface shared by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Rows and *sql.Row.
type scanner interface {
	Scan(dest ...any) error
}

// queryOne returns the first row of query. A missing row is reported as
// ok=false with a nil error.
func queryOne[E any](ctx context.Context, q queryer, scan func(scanner) (E, error), query string, args ...any) (E, bool, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return zero, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return zero, false, rows.Err()
	}
	e, err := scan(rows)
	if err != nil {
		return zero, false, err
	}
	return e, true, rows.Err()
}

// queryList returns every row of query. Returns an empty slice (not nil)
// when nothing matches. Cancellation is checked between rows.
func queryList[E any](ctx context.Context, q queryer, scan func(scanner) (E, error), query string, args ...any) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []E{}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// queryCount runs a single-value COUNT query.
func queryCount(ctx context.Context, q queryer, query string, args ...any) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// querySum runs a single-value SUM query. The sum over zero rows is 0.0.
func querySum(ctx context.Context, q queryer, query string, args ...any) (float64, error) {
	var sum sql.NullFloat64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, err
	}
	if !sum.Valid {
		return 0, nil
	}
	return sum.Float64, nil
}

// requireFloat decodes a NOT NULL REAL column.
func requireFloat(v sql.NullFloat64, table, column string) (float64, error) {
	if !v.Valid {
		return 0, newConsistencyError(table, column, "non-nullable real column is NULL")
	}
	return v.Float64, nil
}

// requireInt decodes a NOT NULL INTEGER column.
func requireInt(v sql.NullInt64, table, column string) (int64, error) {
	if !v.Valid {
		return 0, newConsistencyError(table, column, "non-nullable integer column is NULL")
	}
	return v.Int64, nil
}

// requireString decodes a NOT NULL TEXT column.
func requireString(v sql.NullString, table, column string) (string, error) {
	if !v.Valid {
		return "", newConsistencyError(table, column, "non-nullable text column is NULL")
	}
	return v.String, nil
}

func wrapRead(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
