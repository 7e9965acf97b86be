package store

import (
	"context"

	"github.com/roach88/oink/internal/money"
)

// InsertCheckIn writes c and returns its id. A zero ID is generated; a
// second check-in for an existing date is a ConstraintViolation.
func (t *Tx) InsertCheckIn(ctx context.Context, c CheckIn) (int64, error) {
	return insert(ctx, t, checkInBinding, c)
}

// UpdateCheckIn rewrites the check-in keyed by c.ID. Reports whether a row
// matched; no match is not an error.
func (t *Tx) UpdateCheckIn(ctx context.Context, c CheckIn) (bool, error) {
	return update(ctx, t, checkInBinding, c)
}

// InsertCashOut appends c and returns its id.
func (t *Tx) InsertCashOut(ctx context.Context, c CashOut) (int64, error) {
	return insert(ctx, t, cashOutBinding, c)
}

// CashOutDraft is a cash-out whose balance fields are not yet known.
type CashOutDraft struct {
	Name                 string
	Amount               float64
	Emoji                string
	CashedOutAt          int64
	ExerciseRewardAtTime float64

	// Spent is money already spent outside the cash_outs table (streak
	// freezes) that the balance must account for.
	Spent float64
}

// RecordCashOut computes the balance fields of d from the state this
// transaction sees, then appends it. BalanceBefore is the spendable
// balance; BalanceAfter is BalanceBefore - Amount. Since the write lock is
// held, no other cash-out can commit between the read and the insert.
func (t *Tx) RecordCashOut(ctx context.Context, d CashOutDraft) (CashOut, error) {
	before, err := t.SpendableBalance(ctx, d.Spent)
	if err != nil {
		return CashOut{}, err
	}
	c := CashOut{
		Name:                 d.Name,
		Amount:               d.Amount,
		Emoji:                d.Emoji,
		CashedOutAt:          d.CashedOutAt,
		BalanceBefore:        before,
		BalanceAfter:         before - d.Amount,
		ExerciseRewardAtTime: d.ExerciseRewardAtTime,
	}
	if c.ID, err = t.InsertCashOut(ctx, c); err != nil {
		return CashOut{}, err
	}
	return c, nil
}

// DeleteAll removes every row of table (TableCheckIns or TableCashOuts)
// and returns how many rows were removed.
func (t *Tx) DeleteAll(ctx context.Context, table string) (int64, error) {
	return deleteAll(ctx, t, table)
}

// SpendableBalance is the latest check-in balance less the total cashed out
// and less spent, rounded to cents and floored at zero. Inside a Tx it sees
// the transaction's own writes, so a cash-out computed from it cannot race
// another writer.
func (r *Queries) SpendableBalance(ctx context.Context, spent float64) (float64, error) {
	checkIn, err := r.CheckInBalance(ctx)
	if err != nil {
		return 0, err
	}
	cashed, err := r.TotalCashedOut(ctx)
	if err != nil {
		return 0, err
	}
	return money.Spendable(checkIn, cashed, spent), nil
}

// InsertCheckIn is the one-shot form of Tx.InsertCheckIn.
func (s *Store) InsertCheckIn(ctx context.Context, c CheckIn) (int64, error) {
	var id int64
	err := s.Write(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.InsertCheckIn(ctx, c)
		return err
	})
	return id, err
}

// UpdateCheckIn is the one-shot form of Tx.UpdateCheckIn.
func (s *Store) UpdateCheckIn(ctx context.Context, c CheckIn) (bool, error) {
	var matched bool
	err := s.Write(ctx, func(tx *Tx) error {
		var err error
		matched, err = tx.UpdateCheckIn(ctx, c)
		return err
	})
	return matched, err
}

// InsertCashOut is the one-shot form of Tx.InsertCashOut.
func (s *Store) InsertCashOut(ctx context.Context, c CashOut) (int64, error) {
	var id int64
	err := s.Write(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.InsertCashOut(ctx, c)
		return err
	})
	return id, err
}

// RecordCashOut is the one-shot form of Tx.RecordCashOut.
func (s *Store) RecordCashOut(ctx context.Context, d CashOutDraft) (CashOut, error) {
	var c CashOut
	err := s.Write(ctx, func(tx *Tx) error {
		var err error
		c, err = tx.RecordCashOut(ctx, d)
		return err
	})
	return c, err
}

// DeleteAll is the one-shot form of Tx.DeleteAll.
func (s *Store) DeleteAll(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.Write(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.DeleteAll(ctx, table)
		return err
	})
	return n, err
}

// Reset empties both ledger tables in a single transaction.
func (s *Store) Reset(ctx context.Context) error {
	return s.Write(ctx, func(tx *Tx) error {
		if _, err := tx.DeleteAll(ctx, TableCashOuts); err != nil {
			return err
		}
		_, err := tx.DeleteAll(ctx, TableCheckIns)
		return err
	})
}
