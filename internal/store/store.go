package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/oink/internal/live"
)

// Store is the ledger's storage. Writes are serialized through a single
// writer connection; reads run concurrently on a read-only pool.
type Store struct {
	writer *sql.DB
	reader *sql.DB

	// mu serializes write transactions and keeps publish order equal to
	// commit order.
	mu sync.Mutex

	tracker *live.Tracker
	logger  *slog.Logger
	path    string
	closed  atomic.Bool
}

type config struct {
	logger     *slog.Logger
	migrations []Migration
	readers    int
}

// Option configures Open.
type Option func(*config)

// WithLogger sets the logger for the store and its tracker.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMigrations sets the version-tagged migrations applied at open time
// when the file's schema version is older than the current one.
func WithMigrations(m ...Migration) Option {
	return func(c *config) { c.migrations = m }
}

// WithReaders sets the size of the read connection pool.
func WithReaders(n int) Option {
	return func(c *config) { c.readers = n }
}

// Open creates or opens the ledger database at path, validates its schema
// and starts the invalidation tracker. A SchemaMismatch error is fatal:
// the file is left untouched and no Store is returned.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - BEGIN IMMEDIATE for write transactions
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	cfg := &config{readers: 4}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := cfg.logger.With("component", "store")

	writer, err := sql.Open("sqlite3", writerDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer at a time.
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)

	if err := writer.PingContext(ctx); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := applyPragmas(ctx, writer); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	mgr := &schemaManager{schema: Expected, migrations: cfg.migrations, logger: log}
	if err := mgr.prepare(ctx, writer); err != nil {
		writer.Close()
		return nil, err
	}

	reader, err := sql.Open("sqlite3", readerDSN(path))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to open read pool: %w", err)
	}
	reader.SetMaxOpenConns(cfg.readers)
	reader.SetMaxIdleConns(cfg.readers)
	if err := reader.PingContext(ctx); err != nil {
		reader.Close()
		writer.Close()
		return nil, fmt.Errorf("failed to connect read pool: %w", err)
	}

	log.Debug("store opened", "path", path, "schema_version", Expected.Version)
	return &Store{
		writer:  writer,
		reader:  reader,
		tracker: live.NewTracker(live.WithLogger(cfg.logger)),
		logger:  log,
		path:    path,
	}, nil
}

func writerDSN(path string) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", "5000")
	q.Set("_synchronous", "NORMAL")
	return "file:" + path + "?" + q.Encode()
}

func readerDSN(path string) string {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Set("_busy_timeout", "5000")
	return "file:" + path + "?" + q.Encode()
}

// applyPragmas sets file-level SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Close stops the tracker and closes both connection pools. Open streams
// stop receiving updates. Safe to call more than once.
func (s *Store) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Close()
	rerr := s.reader.Close()
	werr := s.writer.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Tracker returns the invalidation tracker fed by this store's commits.
func (s *Store) Tracker() *live.Tracker {
	return s.tracker
}

// View runs fn inside one read transaction. Every query fn makes observes
// the same committed snapshot, unaffected by concurrent writes.
func (s *Store) View(ctx context.Context, fn func(q *Queries) error) error {
	if s.closed.Load() {
		return ErrClosed
	}

	tx, err := s.reader.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("view: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("view: commit: %w", err)
	}
	return nil
}

// Write runs fn inside the single write transaction. If fn returns an
// error, or the commit fails, the whole transaction is rolled back and no
// invalidation is published. Once the commit is durable the tables fn
// changed are published to the tracker.
func (s *Store) Write(ctx context.Context, fn func(tx *Tx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}

	sqlTx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return newAbortError("begin", "", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	tx := newTx(sqlTx)
	if err := fn(tx); err != nil {
		s.logger.Debug("write rolled back", "error", err)
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return newAbortError("commit", "", err)
	}

	if tables := tx.writtenTables(); len(tables) > 0 {
		s.tracker.Publish(tables...)
	}
	return nil
}
