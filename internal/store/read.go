package store

import (
	"context"
)

// Queries holds the fixed reads of the ledger. It is bound either to a
// read transaction (Store.View) or to a write transaction (Tx).
//
// Absence is reported as ok=false with a nil error, never as an error.
type Queries struct {
	q queryer
}

// CheckInByDate returns the check-in for date d.
func (r *Queries) CheckInByDate(ctx context.Context, d Date) (CheckIn, bool, error) {
	c, ok, err := queryOne(ctx, r.q, scanCheckIn, `
		SELECT `+checkInColumns+` FROM check_ins WHERE date = ? LIMIT 1
	`, encodeDate(d))
	return c, ok, wrapRead("check-in by date", err)
}

// LatestCheckIn returns the check-in with the greatest date.
func (r *Queries) LatestCheckIn(ctx context.Context) (CheckIn, bool, error) {
	c, ok, err := queryOne(ctx, r.q, scanCheckIn, `
		SELECT `+checkInColumns+` FROM check_ins ORDER BY date DESC LIMIT 1
	`)
	return c, ok, wrapRead("latest check-in", err)
}

// CheckInBefore returns the check-in with the greatest date strictly
// earlier than d.
func (r *Queries) CheckInBefore(ctx context.Context, d Date) (CheckIn, bool, error) {
	c, ok, err := queryOne(ctx, r.q, scanCheckIn, `
		SELECT `+checkInColumns+` FROM check_ins WHERE date < ? ORDER BY date DESC LIMIT 1
	`, encodeDate(d))
	return c, ok, wrapRead("check-in before", err)
}

// AllCheckIns returns every check-in, newest first.
func (r *Queries) AllCheckIns(ctx context.Context) ([]CheckIn, error) {
	list, err := queryList(ctx, r.q, scanCheckIn, `
		SELECT `+checkInColumns+` FROM check_ins ORDER BY date DESC
	`)
	return list, wrapRead("all check-ins", err)
}

// AllCheckInsAsc returns every check-in, oldest first.
func (r *Queries) AllCheckInsAsc(ctx context.Context) ([]CheckIn, error) {
	list, err := queryList(ctx, r.q, scanCheckIn, `
		SELECT `+checkInColumns+` FROM check_ins ORDER BY date ASC
	`)
	return list, wrapRead("all check-ins ascending", err)
}

// CheckInsAfter returns the check-ins strictly later than d, oldest first.
func (r *Queries) CheckInsAfter(ctx context.Context, d Date) ([]CheckIn, error) {
	list, err := queryList(ctx, r.q, scanCheckIn, `
		SELECT `+checkInColumns+` FROM check_ins WHERE date > ? ORDER BY date ASC
	`, encodeDate(d))
	return list, wrapRead("check-ins after", err)
}

// WorkoutCount returns the number of days the user exercised.
func (r *Queries) WorkoutCount(ctx context.Context) (int64, error) {
	n, err := queryCount(ctx, r.q, `SELECT COUNT(*) FROM check_ins WHERE didExercise = 1`)
	return n, wrapRead("workout count", err)
}

// AllCashOuts returns every cash-out, most recent first.
func (r *Queries) AllCashOuts(ctx context.Context) ([]CashOut, error) {
	list, err := queryList(ctx, r.q, scanCashOut, `
		SELECT `+cashOutColumns+` FROM cash_outs ORDER BY cashedOutAt DESC, id DESC
	`)
	return list, wrapRead("all cash-outs", err)
}

// CashOutByID returns the cash-out with the given id.
func (r *Queries) CashOutByID(ctx context.Context, id int64) (CashOut, bool, error) {
	c, ok, err := queryOne(ctx, r.q, scanCashOut, `
		SELECT `+cashOutColumns+` FROM cash_outs WHERE id = ?
	`, id)
	return c, ok, wrapRead("cash-out by id", err)
}

// MostRecentCashOut returns the cash-out with the latest timestamp.
func (r *Queries) MostRecentCashOut(ctx context.Context) (CashOut, bool, error) {
	c, ok, err := queryOne(ctx, r.q, scanCashOut, `
		SELECT `+cashOutColumns+` FROM cash_outs ORDER BY cashedOutAt DESC, id DESC LIMIT 1
	`)
	return c, ok, wrapRead("most recent cash-out", err)
}

// TotalCashedOut returns the sum of all cash-out amounts; 0 when empty.
func (r *Queries) TotalCashedOut(ctx context.Context) (float64, error) {
	sum, err := querySum(ctx, r.q, `SELECT COALESCE(SUM(amount), 0.0) FROM cash_outs`)
	return sum, wrapRead("total cashed out", err)
}

// CashOutCount returns the number of cash-outs.
func (r *Queries) CashOutCount(ctx context.Context) (int64, error) {
	n, err := queryCount(ctx, r.q, `SELECT COUNT(*) FROM cash_outs`)
	return n, wrapRead("cash-out count", err)
}

// CheckInBalance returns the balance after the latest check-in, 0 if none.
func (r *Queries) CheckInBalance(ctx context.Context) (float64, error) {
	latest, ok, err := r.LatestCheckIn(ctx)
	if err != nil || !ok {
		return 0, err
	}
	return latest.BalanceAfter, nil
}

// viewFind runs a single optional-row read in its own read transaction.
func viewFind[T any](ctx context.Context, s *Store, fn func(*Queries) (T, bool, error)) (T, bool, error) {
	var (
		out T
		ok  bool
	)
	err := s.View(ctx, func(q *Queries) error {
		var err error
		out, ok, err = fn(q)
		return err
	})
	return out, ok, err
}

// viewValue runs a single read in its own read transaction.
func viewValue[T any](ctx context.Context, s *Store, fn func(*Queries) (T, error)) (T, error) {
	var out T
	err := s.View(ctx, func(q *Queries) error {
		var err error
		out, err = fn(q)
		return err
	})
	return out, err
}

// CheckInByDate is the one-shot form of Queries.CheckInByDate.
func (s *Store) CheckInByDate(ctx context.Context, d Date) (CheckIn, bool, error) {
	return viewFind(ctx, s, func(q *Queries) (CheckIn, bool, error) { return q.CheckInByDate(ctx, d) })
}

// LatestCheckIn is the one-shot form of Queries.LatestCheckIn.
func (s *Store) LatestCheckIn(ctx context.Context) (CheckIn, bool, error) {
	return viewFind(ctx, s, func(q *Queries) (CheckIn, bool, error) { return q.LatestCheckIn(ctx) })
}

// CheckInBefore is the one-shot form of Queries.CheckInBefore.
func (s *Store) CheckInBefore(ctx context.Context, d Date) (CheckIn, bool, error) {
	return viewFind(ctx, s, func(q *Queries) (CheckIn, bool, error) { return q.CheckInBefore(ctx, d) })
}

// AllCheckIns is the one-shot form of Queries.AllCheckIns.
func (s *Store) AllCheckIns(ctx context.Context) ([]CheckIn, error) {
	return viewValue(ctx, s, func(q *Queries) ([]CheckIn, error) { return q.AllCheckIns(ctx) })
}

// AllCheckInsAsc is the one-shot form of Queries.AllCheckInsAsc.
func (s *Store) AllCheckInsAsc(ctx context.Context) ([]CheckIn, error) {
	return viewValue(ctx, s, func(q *Queries) ([]CheckIn, error) { return q.AllCheckInsAsc(ctx) })
}

// WorkoutCount is the one-shot form of Queries.WorkoutCount.
func (s *Store) WorkoutCount(ctx context.Context) (int64, error) {
	return viewValue(ctx, s, func(q *Queries) (int64, error) { return q.WorkoutCount(ctx) })
}

// AllCashOuts is the one-shot form of Queries.AllCashOuts.
func (s *Store) AllCashOuts(ctx context.Context) ([]CashOut, error) {
	return viewValue(ctx, s, func(q *Queries) ([]CashOut, error) { return q.AllCashOuts(ctx) })
}

// CashOutByID is the one-shot form of Queries.CashOutByID.
func (s *Store) CashOutByID(ctx context.Context, id int64) (CashOut, bool, error) {
	return viewFind(ctx, s, func(q *Queries) (CashOut, bool, error) { return q.CashOutByID(ctx, id) })
}

// MostRecentCashOut is the one-shot form of Queries.MostRecentCashOut.
func (s *Store) MostRecentCashOut(ctx context.Context) (CashOut, bool, error) {
	return viewFind(ctx, s, func(q *Queries) (CashOut, bool, error) { return q.MostRecentCashOut(ctx) })
}

// TotalCashedOut is the one-shot form of Queries.TotalCashedOut.
func (s *Store) TotalCashedOut(ctx context.Context) (float64, error) {
	return viewValue(ctx, s, func(q *Queries) (float64, error) { return q.TotalCashedOut(ctx) })
}

// CashOutCount is the one-shot form of Queries.CashOutCount.
func (s *Store) CashOutCount(ctx context.Context) (int64, error) {
	return viewValue(ctx, s, func(q *Queries) (int64, error) { return q.CashOutCount(ctx) })
}

// CheckInBalance is the one-shot form of Queries.CheckInBalance.
func (s *Store) CheckInBalance(ctx context.Context) (float64, error) {
	return viewValue(ctx, s, func(q *Queries) (float64, error) { return q.CheckInBalance(ctx) })
}
