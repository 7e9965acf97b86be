package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInBefore(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	for _, n := range []int64{10, 12, 15} {
		mustInsertCheckIn(t, s, day(n), true, float64(n))
	}

	got, ok, err := s.CheckInBefore(ctx, day(15))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(12), got.Date)

	got, ok, err = s.CheckInBefore(ctx, day(13))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(12), got.Date)

	_, ok, err = s.CheckInBefore(ctx, day(10))
	require.NoError(t, err)
	assert.False(t, ok, "nothing precedes the first check-in")
}

func TestLatestCheckIn(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, ok, err := s.LatestCheckIn(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Insertion order does not matter; the greatest date wins.
	mustInsertCheckIn(t, s, day(20), true, 20)
	mustInsertCheckIn(t, s, day(5), true, 5)

	got, ok, err := s.LatestCheckIn(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(20), got.Date)

	bal, err := s.CheckInBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20.0, bal)
}

func TestCheckInByDate_Absent(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.CheckInByDate(context.Background(), day(1))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestAllCheckIns_Ordering(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	for _, n := range []int64{3, 1, 2} {
		mustInsertCheckIn(t, s, day(n), true, 0)
	}

	desc, err := s.AllCheckIns(ctx)
	require.NoError(t, err)
	asc, err := s.AllCheckInsAsc(ctx)
	require.NoError(t, err)

	dates := func(list []CheckIn) []Date {
		out := make([]Date, len(list))
		for i, c := range list {
			out[i] = c.Date
		}
		return out
	}
	assert.Equal(t, []Date{day(3), day(2), day(1)}, dates(desc))
	assert.Equal(t, []Date{day(1), day(2), day(3)}, dates(asc))

	var after []CheckIn
	require.NoError(t, s.View(ctx, func(q *Queries) error {
		var err error
		after, err = q.CheckInsAfter(ctx, day(1))
		return err
	}))
	assert.Equal(t, []Date{day(2), day(3)}, dates(after))
}

func TestWorkoutCount(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	mustInsertCheckIn(t, s, day(1), true, 5)
	mustInsertCheckIn(t, s, day(2), false, 2.5)
	mustInsertCheckIn(t, s, day(3), true, 7.5)

	n, err := s.WorkoutCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestEmptyAggregates(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	total, err := s.TotalCashedOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)

	count, err := s.CashOutCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	all, err := s.AllCashOuts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all, "empty list, not nil")
	assert.Empty(t, all)

	_, ok, err := s.MostRecentCashOut(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllCashOuts_OrderedByTimestamp(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	for _, at := range []int64{100, 300, 200} {
		_, err := s.InsertCashOut(ctx, CashOut{
			Name: "r", Amount: 1, Emoji: "🎁", CashedOutAt: at,
			BalanceBefore: 10, BalanceAfter: 9, ExerciseRewardAtTime: 5,
		})
		require.NoError(t, err)
	}

	all, err := s.AllCashOuts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{300, 200, 100}, []int64{all[0].CashedOutAt, all[1].CashedOutAt, all[2].CashedOutAt})

	recent, ok, err := s.MostRecentCashOut(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(300), recent.CashedOutAt)

	total, err := s.TotalCashedOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, total)

	count, err := s.CashOutCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestCashOutByID_Absent(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.CashOutByID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueries_ConsistencyViolation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	// Bypass the gateway to plant a value the codec cannot decode.
	_, err := s.writer.Exec(`INSERT INTO check_ins (date, didExercise, balanceAfter) VALUES (1, 2, 0)`)
	require.NoError(t, err)

	_, err = s.AllCheckIns(ctx)
	require.Error(t, err)
	assert.True(t, IsConsistencyViolation(err), "got %v", err)
	assert.True(t, IsFatal(err))
}

func TestQueries_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	mustInsertCheckIn(t, s, day(1), true, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AllCheckIns(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCashOut_WorkoutsToEarn(t *testing.T) {
	assert.Equal(t, 4, CashOut{Amount: 20, ExerciseRewardAtTime: 5}.WorkoutsToEarn())
	assert.Equal(t, 2, CashOut{Amount: 14.99, ExerciseRewardAtTime: 5}.WorkoutsToEarn())
	assert.Equal(t, 0, CashOut{Amount: 20}.WorkoutsToEarn())
}
