package live

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quiet = 50 * time.Millisecond

// counterSource is a stand-in for a table: Query reads its current value.
type counterSource struct {
	value   atomic.Int64
	queries atomic.Int32
}

func (c *counterSource) query(ctx context.Context) (int64, error) {
	c.queries.Add(1)
	return c.value.Load(), nil
}

func next(t *testing.T, s *Stream[int64]) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := s.Next(ctx)
	require.NoError(t, err)
	return v
}

func TestWatch_FirstValueIsEager(t *testing.T) {
	tr := newTestTracker(t)
	src := &counterSource{}
	src.value.Store(7)

	s, err := Watch(context.Background(), tr, []string{"t"}, src.query)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, int32(1), src.queries.Load(), "computed before Watch returns")
	assert.Equal(t, int64(7), next(t, s))
}

func TestWatch_FirstValueError(t *testing.T) {
	tr := newTestTracker(t)
	boom := errors.New("boom")

	s, err := Watch(context.Background(), tr, []string{"t"}, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, s)
	assert.Zero(t, tr.Len(), "failed subscribe leaves no registration")
}

func TestStream_RecomputesOnInvalidation(t *testing.T) {
	tr := newTestTracker(t)
	src := &counterSource{}

	s, err := Watch(context.Background(), tr, []string{"t"}, src.query)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, int64(0), next(t, s))

	src.value.Store(1)
	tr.Publish("t")
	assert.Equal(t, int64(1), next(t, s))

	tr.Publish("other")
	flush(t, tr)
	select {
	case v := <-s.Values():
		t.Fatalf("unexpected emission %d", v)
	case <-time.After(quiet):
	}
}

func TestStream_NoDeduplication(t *testing.T) {
	tr := newTestTracker(t)
	src := &counterSource{}

	s, err := Watch(context.Background(), tr, []string{"t"}, src.query)
	require.NoError(t, err)
	defer s.Close()
	next(t, s)

	tr.Publish("t")
	assert.Equal(t, int64(0), next(t, s), "unchanged value is still emitted")
}

func TestStream_CoalescesPendingInvalidations(t *testing.T) {
	tr := newTestTracker(t)
	release := make(chan struct{})
	var queries atomic.Int32

	s, err := Watch(context.Background(), tr, []string{"t"}, func(ctx context.Context) (int32, error) {
		n := queries.Add(1)
		if n == 2 {
			<-release // hold the first recomputation
		}
		return n, nil
	})
	require.NoError(t, err)
	defer s.Close()

	tr.Publish("t")
	require.Eventually(t, func() bool { return queries.Load() == 2 }, time.Second, time.Millisecond)

	// Arrive while the recomputation is in flight.
	for i := 0; i < 5; i++ {
		tr.Publish("t")
	}
	flush(t, tr)
	close(release)

	require.Eventually(t, func() bool { return queries.Load() == 3 }, time.Second, time.Millisecond)
	time.Sleep(quiet)
	assert.Equal(t, int32(3), queries.Load(), "five invalidations collapse into one recomputation")
}

func TestStream_LatestValueWins(t *testing.T) {
	tr := newTestTracker(t)
	src := &counterSource{}

	s, err := Watch(context.Background(), tr, []string{"t"}, src.query)
	require.NoError(t, err)
	defer s.Close()

	for i := int64(1); i <= 10; i++ {
		src.value.Store(i)
		tr.Publish("t")
		flush(t, tr)
	}

	require.Eventually(t, func() bool {
		select {
		case v := <-s.Values():
			return v == 10
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)
	assert.LessOrEqual(t, len(s.Values()), 1)
}

func TestStream_CloseBeforeInvalidation(t *testing.T) {
	tr := newTestTracker(t)
	src := &counterSource{}

	s, err := Watch(context.Background(), tr, []string{"t"}, src.query)
	require.NoError(t, err)

	s.Close()
	assert.Zero(t, tr.Len())

	tr.Publish("t")
	flush(t, tr)

	_, ok := <-s.Values()
	assert.False(t, ok, "closed stream emits nothing")
	assert.NoError(t, s.Err())

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	s.Close()
}

func TestStream_CloseDiscardsInFlightValue(t *testing.T) {
	tr := newTestTracker(t)
	started := make(chan struct{})
	var calls atomic.Int32

	s, err := Watch(context.Background(), tr, []string{"t"}, func(ctx context.Context) (int32, error) {
		if calls.Add(1) == 1 {
			return 0, nil
		}
		close(started)
		<-ctx.Done()
		return 42, nil
	})
	require.NoError(t, err)
	<-s.Values()

	tr.Publish("t")
	<-started
	s.Close()

	_, ok := <-s.Values()
	assert.False(t, ok, "a recomputation in flight at close is never delivered")
	assert.NoError(t, s.Err())
}

func TestStream_RecomputeErrorStopsStream(t *testing.T) {
	tr := newTestTracker(t)
	boom := errors.New("boom")
	var calls atomic.Int32

	s, err := Watch(context.Background(), tr, []string{"t"}, func(context.Context) (int32, error) {
		if calls.Add(1) > 1 {
			return 0, boom
		}
		return 1, nil
	})
	require.NoError(t, err)
	defer s.Close()

	tr.Publish("t")

	v, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), v, "values emitted before the failure stay readable")

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Err(), boom)
	assert.Zero(t, tr.Len())
}

func TestStream_ParentContextCancel(t *testing.T) {
	tr := newTestTracker(t)
	src := &counterSource{}
	ctx, cancel := context.WithCancel(context.Background())

	s, err := Watch(ctx, tr, []string{"t"}, src.query)
	require.NoError(t, err)
	defer s.Close()
	next(t, s)

	cancel()
	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	require.Eventually(t, func() bool { return tr.Len() == 0 }, time.Second, time.Millisecond)
}
