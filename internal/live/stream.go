package live

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Stream.Next once the stream has been closed.
var ErrClosed = errors.New("live: stream closed")

// Query computes one snapshot of a stream's value. It must observe a single
// committed state of the store.
type Query[T any] func(ctx context.Context) (T, error)

// Stream is a continuously updated query result.
//
// A stream holds at most one unread value: a newer result replaces an
// older unread one, so slow consumers always see the latest state. Every
// recomputation emits, even when the value did not change.
type Stream[T any] struct {
	tracker *Tracker
	handle  Handle
	query   Query[T]

	ctx    context.Context
	cancel context.CancelFunc

	dirty chan struct{}
	out   chan T
	done  chan struct{}

	mu     sync.Mutex
	closed bool
	err    error

	closeOnce sync.Once
}

// Watch starts a stream over query, recomputed whenever a commit touches
// any of tables. The registration is made before the first value is
// computed, so no commit can fall between the two. The first value is
// computed synchronously; if it fails the registration is removed and the
// error returned.
//
// Cancelling ctx stops the stream as Close does, except that Err reports
// the context error.
func Watch[T any](ctx context.Context, tracker *Tracker, tables []string, query Query[T]) (*Stream[T], error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		tracker: tracker,
		query:   query,
		ctx:     ctx,
		cancel:  cancel,
		dirty:   make(chan struct{}, 1),
		out:     make(chan T, 1),
		done:    make(chan struct{}),
	}
	s.handle = tracker.Register(tables, s.invalidate)

	first, err := query(ctx)
	if err != nil {
		tracker.Unregister(s.handle)
		cancel()
		return nil, err
	}
	s.out <- first

	go s.run()
	return s, nil
}

// invalidate marks the stream dirty. Multiple invalidations before the
// worker picks one up collapse into a single recomputation.
func (s *Stream[T]) invalidate() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Stream[T]) run() {
	defer close(s.done)
	defer s.finish()

	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		case <-s.dirty:
		}

		v, err := s.query(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				s.setErr(s.ctx.Err())
			} else {
				s.setErr(err)
				s.tracker.logger.Warn("stream recompute failed", "error", err)
			}
			return
		}
		s.emit(v)
	}
}

// emit replaces any unread value with v. Dropped after Close.
func (s *Stream[T]) emit(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case <-s.out:
	default:
	}
	s.out <- v
}

// setErr records why the worker stopped, unless the stream was closed.
func (s *Stream[T]) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.err == nil {
		s.err = err
	}
}

// finish unregisters and closes the output channel. Any value still
// buffered stays readable until drained.
func (s *Stream[T]) finish() {
	s.tracker.Unregister(s.handle)
	s.mu.Lock()
	close(s.out)
	s.mu.Unlock()
}

// Values returns the stream's output channel. It is closed when the stream
// stops; after a failure Err reports why.
func (s *Stream[T]) Values() <-chan T {
	return s.out
}

// Next blocks for the next value.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-s.out:
		if !ok {
			if err := s.Err(); err != nil {
				return zero, err
			}
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Err returns the error that stopped the stream: a failed recomputation or
// the cancellation of the context given to Watch. It is nil while the
// stream runs and stays nil when Close stopped it.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the stream. The registration is removed before Close
// returns, any buffered or in-flight value is discarded and the worker has
// exited. Safe to call more than once.
func (s *Stream[T]) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		select {
		case <-s.out:
		default:
		}
		s.mu.Unlock()

		s.tracker.Unregister(s.handle)
		s.cancel()
	})
	<-s.done
}
