package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertCheckIn_GeneratesID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	id1, err := s.InsertCheckIn(ctx, CheckIn{Date: day(1), DidExercise: true, BalanceAfter: 5})
	require.NoError(t, err)
	id2, err := s.InsertCheckIn(ctx, CheckIn{Date: day(2), DidExercise: false, BalanceAfter: 2.5})
	require.NoError(t, err)

	assert.Positive(t, id1)
	assert.Greater(t, id2, id1)

	got, ok, err := s.CheckInByDate(ctx, day(2))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, CheckIn{ID: id2, Date: day(2), DidExercise: false, BalanceAfter: 2.5}, got)
}

func TestInsertCheckIn_ExplicitID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	id, err := s.InsertCheckIn(ctx, CheckIn{ID: 77, Date: day(1), BalanceAfter: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
}

func TestInsertCheckIn_DuplicateDate(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	first := mustInsertCheckIn(t, s, day(10), true, 5)

	_, err := s.InsertCheckIn(ctx, CheckIn{Date: day(10), DidExercise: false, BalanceAfter: 99})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err), "expected ConstraintViolation, got %v", err)
	assert.False(t, IsFatal(err))

	all, err := s.AllCheckIns(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff([]CheckIn{first}, all); diff != "" {
		t.Errorf("check_ins mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_ConstraintViolationRollsBackWholeTransaction(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustInsertCheckIn(t, s, day(10), true, 5)

	err := s.Write(ctx, func(tx *Tx) error {
		if _, err := tx.InsertCashOut(ctx, CashOut{Name: "socks", Amount: 1, Emoji: "🧦", CashedOutAt: 1, BalanceBefore: 5, BalanceAfter: 4, ExerciseRewardAtTime: 5}); err != nil {
			return err
		}
		_, err := tx.InsertCheckIn(ctx, CheckIn{Date: day(10), BalanceAfter: 0})
		return err
	})
	require.True(t, IsConstraintViolation(err))

	n, err := s.CashOutCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "the cash-out must roll back with the failed check-in")
}

func TestUpdateCheckIn(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c := mustInsertCheckIn(t, s, day(5), false, 0)

	c.DidExercise = true
	c.BalanceAfter = 5
	matched, err := s.UpdateCheckIn(ctx, c)
	require.NoError(t, err)
	assert.True(t, matched)

	got, ok, err := s.CheckInByDate(ctx, day(5))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c, got)
}

func TestUpdateCheckIn_NoMatch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	rec := recordPublishes(t, s)

	matched, err := s.UpdateCheckIn(ctx, CheckIn{ID: 404, Date: day(1)})
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Empty(t, rec.snapshot(t, s), "no rows changed, nothing to publish")
}

func TestUpdateCheckIn_ConstraintViolation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustInsertCheckIn(t, s, day(1), true, 5)
	second := mustInsertCheckIn(t, s, day(2), true, 10)

	second.Date = day(1)
	_, err := s.UpdateCheckIn(ctx, second)
	require.True(t, IsConstraintViolation(err), "got %v", err)

	got, ok, err := s.CheckInByDate(ctx, day(2))
	require.NoError(t, err)
	require.True(t, ok, "failed update must leave the row unchanged")
	assert.Equal(t, 10.0, got.BalanceAfter)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	for i := int64(1); i <= 3; i++ {
		mustInsertCheckIn(t, s, day(i), true, float64(i*5))
	}

	n, err := s.DeleteAll(ctx, TableCheckIns)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.DeleteAll(ctx, TableCheckIns)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteAll_UnknownTable(t *testing.T) {
	s := createTestStore(t)

	_, err := s.DeleteAll(context.Background(), "schema_identity")
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustInsertCheckIn(t, s, day(1), true, 5)
	_, err := s.RecordCashOut(ctx, CashOutDraft{Name: "tea", Amount: 2, Emoji: "🍵", CashedOutAt: 10, ExerciseRewardAtTime: 5})
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	checkIns, err := s.AllCheckIns(ctx)
	require.NoError(t, err)
	cashOuts, err := s.AllCashOuts(ctx)
	require.NoError(t, err)
	assert.Empty(t, checkIns)
	assert.Empty(t, cashOuts)
}

func TestWrite_PublishesExactlyWrittenTables(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	rec := recordPublishes(t, s)

	mustInsertCheckIn(t, s, day(1), true, 5)
	assert.Equal(t, [][]string{{TableCheckIns}}, rec.snapshot(t, s))

	_, err := s.InsertCashOut(ctx, CashOut{Name: "a", Amount: 1, Emoji: "🎁", CashedOutAt: 1, BalanceBefore: 5, BalanceAfter: 4, ExerciseRewardAtTime: 5})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{TableCheckIns}, {TableCashOuts}}, rec.snapshot(t, s))
}

func TestRecordCashOut_BalanceInvariant(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustInsertCheckIn(t, s, day(1), true, 1000)

	amounts := []float64{0, 0.01, 0.1, 0.2, 0.3, 1.005, 2.5, 33.33, 99.99, 100}
	for i, amount := range amounts {
		t.Run(fmt.Sprintf("amount=%v", amount), func(t *testing.T) {
			c, err := s.RecordCashOut(ctx, CashOutDraft{
				Name:                 "reward",
				Amount:               amount,
				Emoji:                "🎁",
				CashedOutAt:          int64(i + 1),
				ExerciseRewardAtTime: 5,
			})
			require.NoError(t, err)
			assert.Equal(t, c.BalanceBefore-c.Amount, c.BalanceAfter)

			stored, ok, err := s.CashOutByID(ctx, c.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, c, stored)
			assert.Equal(t, stored.BalanceBefore-stored.Amount, stored.BalanceAfter)
		})
	}
}

func TestRecordCashOut_ComputesBalanceInTransaction(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustInsertCheckIn(t, s, day(1), true, 30)

	first, err := s.RecordCashOut(ctx, CashOutDraft{Name: "a", Amount: 10, Emoji: "🎁", CashedOutAt: 1, ExerciseRewardAtTime: 5})
	require.NoError(t, err)
	assert.Equal(t, 30.0, first.BalanceBefore)
	assert.Equal(t, 20.0, first.BalanceAfter)

	second, err := s.RecordCashOut(ctx, CashOutDraft{Name: "b", Amount: 5, Emoji: "🎁", CashedOutAt: 2, ExerciseRewardAtTime: 5, Spent: 10})
	require.NoError(t, err)
	assert.Equal(t, 10.0, second.BalanceBefore, "30 - 10 cashed out - 10 spent")
	assert.Equal(t, 5.0, second.BalanceAfter)
}

func TestInsertCashOut_RejectsInconsistentBalance(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	rec := recordPublishes(t, s)

	_, err := s.InsertCashOut(ctx, CashOut{
		Name: "bike", Amount: 5, Emoji: "🚲", CashedOutAt: 1,
		BalanceBefore: 10, BalanceAfter: 99, ExerciseRewardAtTime: 5,
	})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err), "expected ConstraintViolation, got %v", err)

	all, err := s.AllCashOuts(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, rec.snapshot(t, s), "rejected writes publish nothing")
}

func TestInsertCashOut_BalanceCheckedToTheCent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.InsertCashOut(ctx, CashOut{
		Name: "tea", Amount: 0.1, Emoji: "🍵", CashedOutAt: 1,
		BalanceBefore: 10.3, BalanceAfter: 10.2, ExerciseRewardAtTime: 5,
	})
	require.NoError(t, err)

	err = s.Write(ctx, func(tx *Tx) error {
		_, err := tx.InsertCashOut(ctx, CashOut{
			Name: "tea", Amount: 0.1, Emoji: "🍵", CashedOutAt: 2,
			BalanceBefore: 10.2, BalanceAfter: 10.2, ExerciseRewardAtTime: 5,
		})
		return err
	})
	assert.True(t, IsConstraintViolation(err), "expected ConstraintViolation, got %v", err)

	n, err := s.CashOutCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
