package store

import (
	"context"

	"github.com/roach88/oink/internal/live"
)

// Watch starts a live stream whose value is computed by fn inside a read
// transaction and recomputed after every commit that touches tables.
func Watch[T any](ctx context.Context, s *Store, tables []string, fn func(ctx context.Context, q *Queries) (T, error)) (*live.Stream[T], error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return live.Watch(ctx, s.tracker, tables, func(ctx context.Context) (T, error) {
		var out T
		err := s.View(ctx, func(q *Queries) error {
			var err error
			out, err = fn(ctx, q)
			return err
		})
		return out, err
	})
}

// WatchCheckIns streams every check-in, newest first.
func (s *Store) WatchCheckIns(ctx context.Context) (*live.Stream[[]CheckIn], error) {
	return Watch(ctx, s, []string{TableCheckIns}, func(ctx context.Context, q *Queries) ([]CheckIn, error) {
		return q.AllCheckIns(ctx)
	})
}

// WatchCheckInOn streams the check-in for day, nil while there is none.
func (s *Store) WatchCheckInOn(ctx context.Context, day Date) (*live.Stream[*CheckIn], error) {
	return Watch(ctx, s, []string{TableCheckIns}, func(ctx context.Context, q *Queries) (*CheckIn, error) {
		return optional[CheckIn](q.CheckInByDate(ctx, day))
	})
}

// WatchLatestCheckIn streams the most recent check-in, nil while there is
// none.
func (s *Store) WatchLatestCheckIn(ctx context.Context) (*live.Stream[*CheckIn], error) {
	return Watch(ctx, s, []string{TableCheckIns}, func(ctx context.Context, q *Queries) (*CheckIn, error) {
		return optional[CheckIn](q.LatestCheckIn(ctx))
	})
}

// WatchCashOuts streams every cash-out, most recent first.
func (s *Store) WatchCashOuts(ctx context.Context) (*live.Stream[[]CashOut], error) {
	return Watch(ctx, s, []string{TableCashOuts}, func(ctx context.Context, q *Queries) ([]CashOut, error) {
		return q.AllCashOuts(ctx)
	})
}

// WatchTotalCashedOut streams the sum of all cash-out amounts.
func (s *Store) WatchTotalCashedOut(ctx context.Context) (*live.Stream[float64], error) {
	return Watch(ctx, s, []string{TableCashOuts}, func(ctx context.Context, q *Queries) (float64, error) {
		return q.TotalCashedOut(ctx)
	})
}

// WatchWorkoutCount streams the number of days the user exercised.
func (s *Store) WatchWorkoutCount(ctx context.Context) (*live.Stream[int64], error) {
	return Watch(ctx, s, []string{TableCheckIns}, func(ctx context.Context, q *Queries) (int64, error) {
		return q.WorkoutCount(ctx)
	})
}

// WatchSpendableBalance streams the spendable balance. It depends on both
// tables and on DepPreferences, where spent is kept, so every commit
// touching any of them produces exactly one recomputation.
func (s *Store) WatchSpendableBalance(ctx context.Context, spent func() float64) (*live.Stream[float64], error) {
	return Watch(ctx, s, []string{TableCheckIns, TableCashOuts, DepPreferences}, func(ctx context.Context, q *Queries) (float64, error) {
		return q.SpendableBalance(ctx, spent())
	})
}

func optional[E any](e E, ok bool, err error) (*E, error) {
	if err != nil || !ok {
		return nil, err
	}
	return &e, nil
}
