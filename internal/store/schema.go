package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - check_ins, cash_outs, schema_identity
const currentSchemaVersion = 1

// identityRowID is the primary key of the single schema_identity row.
const identityRowID = 42

// Column describes one table column as reported by PRAGMA table_info.
type Column struct {
	Name    string
	Type    string
	NotNull bool
	PK      int // 1-based position in the primary key, 0 if not part of it
}

// Index describes one explicit index.
type Index struct {
	Name    string
	Unique  bool
	Columns []string
}

// Table is the structural description of one table.
type Table struct {
	Name    string
	Columns []Column
	Indices []Index
}

// Schema is a versioned set of tables.
type Schema struct {
	Version int
	Tables  []Table
}

// Expected is the schema this build of the store reads and writes.
var Expected = Schema{
	Version: currentSchemaVersion,
	Tables: []Table{
		{
			Name: TableCheckIns,
			Columns: []Column{
				{Name: "id", Type: "INTEGER", NotNull: true, PK: 1},
				{Name: "date", Type: "INTEGER", NotNull: true},
				{Name: "didExercise", Type: "INTEGER", NotNull: true},
				{Name: "balanceAfter", Type: "REAL", NotNull: true},
			},
			Indices: []Index{
				{Name: "index_check_ins_date", Unique: true, Columns: []string{"date"}},
			},
		},
		{
			Name: TableCashOuts,
			Columns: []Column{
				{Name: "id", Type: "INTEGER", NotNull: true, PK: 1},
				{Name: "name", Type: "TEXT", NotNull: true},
				{Name: "amount", Type: "REAL", NotNull: true},
				{Name: "emoji", Type: "TEXT", NotNull: true},
				{Name: "cashedOutAt", Type: "INTEGER", NotNull: true},
				{Name: "balanceBefore", Type: "REAL", NotNull: true},
				{Name: "balanceAfter", Type: "REAL", NotNull: true},
				{Name: "exerciseRewardAtTime", Type: "REAL", NotNull: true},
			},
			Indices: []Index{
				{Name: "index_cash_outs_cashedOutAt", Columns: []string{"cashedOutAt"}},
			},
		},
	},
}

// Fingerprint returns the canonical text form of t. Columns keep their
// declared order; indices are sorted by name.
func (t Table) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "table %s\n", t.Name)
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "  column %s %s notnull=%t pk=%d\n", c.Name, c.Type, c.NotNull, c.PK)
	}
	indices := append([]Index(nil), t.Indices...)
	sort.Slice(indices, func(i, j int) bool { return indices[i].Name < indices[j].Name })
	for _, idx := range indices {
		fmt.Fprintf(&b, "  index %s unique=%t (%s)\n", idx.Name, idx.Unique, strings.Join(idx.Columns, ","))
	}
	return b.String()
}

// Fingerprint returns the canonical text of every table, sorted by name.
// The version tag is not part of the fingerprint.
func (s Schema) Fingerprint() string {
	tables := append([]Table(nil), s.Tables...)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	var b strings.Builder
	for _, t := range tables {
		b.WriteString(t.Fingerprint())
	}
	return b.String()
}

// IdentityHash is the hex SHA-256 of the fingerprint.
func (s Schema) IdentityHash() string {
	sum := sha256.Sum256([]byte(s.Fingerprint()))
	return hex.EncodeToString(sum[:])
}

// table returns the table named name, if present.
func (s Schema) table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Migration upgrades the schema from one version to another inside the
// open-time transaction.
type Migration struct {
	From  int
	To    int
	Apply func(ctx context.Context, tx *sql.Tx) error
}

// migrationPath returns the chain of migrations leading from one version to
// another, preferring the longest step available at each version. Returns
// nil if the chain is broken.
func migrationPath(migrations []Migration, from, to int) []Migration {
	var path []Migration
	for cur := from; cur != to; {
		var best *Migration
		for i := range migrations {
			m := &migrations[i]
			if m.From != cur || m.To <= cur || m.To > to {
				continue
			}
			if best == nil || m.To > best.To {
				best = m
			}
		}
		if best == nil {
			return nil
		}
		path = append(path, *best)
		cur = best.To
	}
	return path
}

// schemaManager validates or creates the on-disk schema at open time.
type schemaManager struct {
	schema     Schema
	migrations []Migration
	logger     *slog.Logger
}

// prepare brings db to the expected schema or fails with SchemaMismatch.
// It never repairs drift silently: the only changes it makes are the
// initial create on an empty file and declared migrations.
func (m *schemaManager) prepare(ctx context.Context, db *sql.DB) error {
	version, err := userVersion(ctx, db)
	if err != nil {
		return err
	}

	switch {
	case version == 0:
		empty, err := isEmpty(ctx, db)
		if err != nil {
			return err
		}
		if empty {
			m.logger.Debug("creating schema", "version", m.schema.Version)
			if err := m.create(ctx, db); err != nil {
				return err
			}
			break
		}
		// Tables without a version tag: treat as version 0 and migrate.
		if err := m.migrate(ctx, db, version); err != nil {
			return err
		}
	case version > m.schema.Version:
		return &Error{
			Code:    CodeSchemaMismatch,
			Op:      "open",
			Message: fmt.Sprintf("database schema version %d is newer than supported version %d", version, m.schema.Version),
		}
	case version < m.schema.Version:
		if err := m.migrate(ctx, db, version); err != nil {
			return err
		}
	}

	if err := m.validate(ctx, db); err != nil {
		return err
	}
	return m.checkIdentity(ctx, db)
}

func (m *schemaManager) create(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create schema: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := CreateAllTables(ctx, tx, m.schema); err != nil {
		return err
	}
	if err := setUserVersion(ctx, tx, m.schema.Version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create schema: commit: %w", err)
	}
	return nil
}

func (m *schemaManager) migrate(ctx context.Context, db *sql.DB, from int) error {
	path := migrationPath(m.migrations, from, m.schema.Version)
	if path == nil {
		return &Error{
			Code:    CodeSchemaMismatch,
			Op:      "migrate",
			Message: fmt.Sprintf("no migration path from version %d to %d", from, m.schema.Version),
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, mig := range path {
		m.logger.Info("applying schema migration", "from", mig.From, "to", mig.To)
		if err := mig.Apply(ctx, tx); err != nil {
			return &Error{
				Code:    CodeSchemaMismatch,
				Op:      "migrate",
				Message: fmt.Sprintf("migration %d -> %d failed", mig.From, mig.To),
				Err:     err,
			}
		}
	}
	if err := writeIdentity(ctx, tx, m.schema); err != nil {
		return err
	}
	if err := setUserVersion(ctx, tx, m.schema.Version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}

func (m *schemaManager) validate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("validate schema: begin tx: %w", err)
	}
	defer tx.Rollback()

	return ValidateSchema(ctx, tx, m.schema)
}

func (m *schemaManager) checkIdentity(ctx context.Context, db *sql.DB) error {
	want := m.schema.IdentityHash()

	var tables int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_identity'",
	).Scan(&tables); err != nil {
		return fmt.Errorf("read schema identity: %w", err)
	}
	if tables == 0 {
		return &Error{
			Code:    CodeSchemaMismatch,
			Op:      "check identity",
			Message: fmt.Sprintf("expected identity %s, found no schema_identity table", want),
		}
	}

	var hash sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT identity_hash FROM schema_identity WHERE id = ?", identityRowID,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		hash = sql.NullString{}
	} else if err != nil {
		return fmt.Errorf("read schema identity: %w", err)
	}

	if !hash.Valid || hash.String != want {
		return &Error{
			Code:    CodeSchemaMismatch,
			Op:      "check identity",
			Message: fmt.Sprintf("expected identity %s, found %q", want, hash.String),
		}
	}
	return nil
}

// CreateAllTables runs the idempotent DDL and records the identity hash.
func CreateAllTables(ctx context.Context, tx *sql.Tx, schema Schema) error {
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return writeIdentity(ctx, tx, schema)
}

// ValidateSchema compares the catalog against schema. Tables the schema
// does not name are ignored. The returned SchemaMismatch error lists both
// the expected and the found structure of every differing table.
func ValidateSchema(ctx context.Context, q queryer, schema Schema) error {
	found, err := ReadCatalog(ctx, q)
	if err != nil {
		return err
	}

	var diffs []string
	for _, want := range schema.Tables {
		got, ok := found.table(want.Name)
		if !ok {
			diffs = append(diffs, fmt.Sprintf("Expected:\n%sFound:\n  (missing)\n", want.Fingerprint()))
			continue
		}
		if got.Fingerprint() != want.Fingerprint() {
			diffs = append(diffs, fmt.Sprintf("Expected:\n%sFound:\n%s", want.Fingerprint(), got.Fingerprint()))
		}
	}
	if len(diffs) > 0 {
		return &Error{
			Code:    CodeSchemaMismatch,
			Op:      "validate schema",
			Message: "on-disk schema differs from expected\n" + strings.Join(diffs, ""),
		}
	}
	return nil
}

// ReadCatalog reads the structure of every user table from the database.
// SQLite internal tables and schema_identity are skipped.
func ReadCatalog(ctx context.Context, q queryer) (Schema, error) {
	names, err := queryStrings(ctx, q, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != 'schema_identity'
		ORDER BY name
	`)
	if err != nil {
		return Schema{}, fmt.Errorf("read catalog: %w", err)
	}

	var schema Schema
	for _, name := range names {
		t, err := readTable(ctx, q, name)
		if err != nil {
			return Schema{}, fmt.Errorf("read catalog %s: %w", name, err)
		}
		schema.Tables = append(schema.Tables, t)
	}
	return schema, nil
}

func readTable(ctx context.Context, q queryer, name string) (Table, error) {
	t := Table{Name: name}

	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return Table{}, err
	}
	for rows.Next() {
		var (
			cid     int
			c       Column
			notNull int
			dflt    sql.NullString
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &dflt, &c.PK); err != nil {
			rows.Close()
			return Table{}, err
		}
		c.NotNull = notNull != 0
		t.Columns = append(t.Columns, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Table{}, err
	}
	rows.Close()

	type indexRef struct {
		name   string
		unique bool
	}
	var refs []indexRef
	rows, err = q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", name))
	if err != nil {
		return Table{}, err
	}
	for rows.Next() {
		var (
			seq     int
			ref     indexRef
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &ref.name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return Table{}, err
		}
		// Indices SQLite creates for PRIMARY KEY / UNIQUE clauses are
		// covered by the column description.
		if origin != "c" {
			continue
		}
		ref.unique = unique != 0
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Table{}, err
	}
	rows.Close()

	for _, ref := range refs {
		cols, err := queryIndexColumns(ctx, q, ref.name)
		if err != nil {
			return Table{}, err
		}
		t.Indices = append(t.Indices, Index{Name: ref.name, Unique: ref.unique, Columns: cols})
	}
	return t, nil
}

func queryIndexColumns(ctx context.Context, q queryer, index string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", index))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

func queryStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func writeIdentity(ctx context.Context, tx *sql.Tx, schema Schema) error {
	_, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO schema_identity (id, identity_hash) VALUES (?, ?)",
		identityRowID, schema.IdentityHash(),
	)
	if err != nil {
		return fmt.Errorf("write schema identity: %w", err)
	}
	return nil
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func isEmpty(ctx context.Context, db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'",
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect catalog: %w", err)
	}
	return n == 0, nil
}

// Catalog reads the schema of the open database, tagged with its
// user_version.
func (s *Store) Catalog(ctx context.Context) (Schema, error) {
	if s.closed.Load() {
		return Schema{}, ErrClosed
	}
	schema, err := ReadCatalog(ctx, s.reader)
	if err != nil {
		return Schema{}, err
	}
	if schema.Version, err = userVersion(ctx, s.reader); err != nil {
		return Schema{}, err
	}
	return schema, nil
}
