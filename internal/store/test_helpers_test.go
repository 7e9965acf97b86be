package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// createTestStore opens a fresh store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path, opts...)
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { s.Close() })
	return s
}

// day returns the date n days after 1970-01-01.
func day(n int64) Date {
	return DateFromEpochDay(n)
}

// mustInsertCheckIn inserts a check-in and returns it with its id set.
func mustInsertCheckIn(t *testing.T, s *Store, d Date, exercised bool, balance float64) CheckIn {
	t.Helper()
	c := CheckIn{Date: d, DidExercise: exercised, BalanceAfter: balance}
	id, err := s.InsertCheckIn(context.Background(), c)
	require.NoError(t, err)
	c.ID = id
	flush(t, s)
	return c
}

// publishRecorder records every table set the store publishes.
type publishRecorder struct {
	mu     sync.Mutex
	events [][]string
}

// recordPublishes registers one subscription per table so the recorder
// sees which tables each commit touched.
func recordPublishes(t *testing.T, s *Store) *publishRecorder {
	t.Helper()
	r := &publishRecorder{}
	for _, table := range []string{TableCheckIns, TableCashOuts} {
		table := table
		h := s.Tracker().Register([]string{table}, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, []string{table})
		})
		t.Cleanup(func() { s.Tracker().Unregister(h) })
	}
	return r
}

func (r *publishRecorder) snapshot(t *testing.T, s *Store) [][]string {
	t.Helper()
	flush(t, s)

	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.events...)
}

// flush waits until every published commit has been delivered.
func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Tracker().Flush(ctx))
}
