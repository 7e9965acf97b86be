package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Binding is the column-binding contract of one entity type: which table
// it lives in, its non-key columns, and a pure function producing the
// column values in that same order. A single generic adapter (insert,
// update) serves every entity through its Binding.
type Binding[E any] struct {
	Table   string
	Columns []string
	Values  func(E) []any
	Key     func(E) int64

	// Check, when set, rejects rows that break an invariant the schema
	// cannot express. It runs before every insert and update.
	Check func(E) error
}

// check runs b.Check, reporting a failure as a ConstraintViolation.
func (b Binding[E]) check(op string, e E) error {
	if b.Check == nil {
		return nil
	}
	if err := b.Check(e); err != nil {
		return &Error{
			Code:    CodeConstraintViolation,
			Op:      op,
			Table:   b.Table,
			Message: err.Error(),
		}
	}
	return nil
}

func (b Binding[E]) insertSQL(withKey bool) string {
	cols := b.Columns
	if withKey {
		cols = append([]string{"id"}, cols...)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", b.Table, strings.Join(cols, ", "), placeholders)
}

func (b Binding[E]) updateSQL() string {
	sets := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		sets[i] = c + " = ?"
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", b.Table, strings.Join(sets, ", "))
}

// Tx is an open write transaction. Reads through the embedded Queries see
// the transaction's own uncommitted writes.
type Tx struct {
	Queries
	tx      *sql.Tx
	written map[string]struct{}
}

func newTx(tx *sql.Tx) *Tx {
	return &Tx{
		Queries: Queries{q: tx},
		tx:      tx,
		written: make(map[string]struct{}),
	}
}

// markWritten records that table changed in this transaction.
func (t *Tx) markWritten(table string) {
	t.written[table] = struct{}{}
}

// Touch marks a dependency kept outside the database, such as
// DepPreferences, as changed by this transaction. It is published with
// the written tables after commit and never if the transaction rolls back.
func (t *Tx) Touch(dep string) {
	t.markWritten(dep)
}

// writtenTables returns the changed tables, sorted.
func (t *Tx) writtenTables() []string {
	out := make([]string, 0, len(t.written))
	for table := range t.written {
		out = append(out, table)
	}
	sort.Strings(out)
	return out
}

// insert writes e. A zero key asks SQLite to generate the id; a non-zero
// key is inserted as given. Returns the row id.
func insert[E any](ctx context.Context, t *Tx, b Binding[E], e E) (int64, error) {
	if err := b.check("insert", e); err != nil {
		return 0, err
	}
	args := b.Values(e)
	key := b.Key(e)
	withKey := key != 0
	if withKey {
		args = append([]any{key}, args...)
	}

	result, err := t.tx.ExecContext(ctx, b.insertSQL(withKey), args...)
	if err != nil {
		return 0, classify("insert", b.Table, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, newAbortError("insert", b.Table, fmt.Errorf("last insert id: %w", err))
	}
	t.markWritten(b.Table)
	return id, nil
}

// update rewrites every non-key column of the row keyed by e's id.
// Returns whether a row matched.
func update[E any](ctx context.Context, t *Tx, b Binding[E], e E) (bool, error) {
	if err := b.check("update", e); err != nil {
		return false, err
	}
	args := append(b.Values(e), b.Key(e))

	result, err := t.tx.ExecContext(ctx, b.updateSQL(), args...)
	if err != nil {
		return false, classify("update", b.Table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, newAbortError("update", b.Table, fmt.Errorf("rows affected: %w", err))
	}
	if n == 0 {
		return false, nil
	}
	t.markWritten(b.Table)
	return true, nil
}

// deleteAll removes every row of table and returns how many were removed.
func deleteAll(ctx context.Context, t *Tx, table string) (int64, error) {
	if table != TableCheckIns && table != TableCashOuts {
		return 0, fmt.Errorf("delete all: unknown table %q", table)
	}

	result, err := t.tx.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		return 0, classify("delete all", table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, newAbortError("delete all", table, fmt.Errorf("rows affected: %w", err))
	}
	if n > 0 {
		t.markWritten(table)
	}
	return n, nil
}

// classify maps a driver error to the store taxonomy: SQLite constraint
// failures become ConstraintViolation, everything else TransactionAborted.
func classify(op, table string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return &Error{
			Code:    CodeConstraintViolation,
			Op:      op,
			Table:   table,
			Message: "constraint failed",
			Err:     err,
		}
	}
	return newAbortError(op, table, err)
}
