package store

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_EpochDay(t *testing.T) {
	tests := []struct {
		date Date
		want int64
	}{
		{NewDate(1970, time.January, 1), 0},
		{NewDate(1970, time.January, 2), 1},
		{NewDate(1969, time.December, 31), -1},
		{NewDate(2000, time.March, 1), 11017},
		{NewDate(1, time.January, 1), MinEpochDay},
		{NewDate(9999, time.December, 31), MaxEpochDay},
	}
	for _, tt := range tests {
		t.Run(tt.date.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.date.EpochDay())
			assert.Equal(t, tt.date, DateFromEpochDay(tt.want))
		})
	}
}

func TestDate_RoundTripFullRange(t *testing.T) {
	// Every day from 0001-01-01 to 9999-12-31 survives encode then decode.
	prev := DateFromEpochDay(MinEpochDay - 1)
	for n := MinEpochDay; n <= MaxEpochDay; n++ {
		d := DateFromEpochDay(n)
		if !d.After(prev) {
			t.Fatalf("day %d: %v does not follow %v", n, d, prev)
		}
		got, err := decodeDate(sql.NullInt64{Int64: encodeDate(d), Valid: true}, TableCheckIns, "date")
		if err != nil {
			t.Fatalf("day %d: %v", n, err)
		}
		if got != d {
			t.Fatalf("day %d: round trip gave %v, want %v", n, got, d)
		}
		prev = d
	}
}

func TestDate_AddDaysAcrossLeapYear(t *testing.T) {
	d := NewDate(2024, time.February, 28)
	assert.Equal(t, NewDate(2024, time.February, 29), d.AddDays(1))
	assert.Equal(t, NewDate(2024, time.March, 1), d.AddDays(2))
	assert.Equal(t, NewDate(2024, time.February, 21), d.AddDays(-7))
}

func TestDate_TextEncoding(t *testing.T) {
	d := NewDate(2025, time.July, 4)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-07-04"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, d, back)

	_, err = ParseDate("07/04/2025")
	assert.Error(t, err)
}

func TestDecodeDate_Null(t *testing.T) {
	_, err := decodeDate(sql.NullInt64{}, TableCheckIns, "date")
	require.Error(t, err)
	assert.True(t, IsConsistencyViolation(err))
}

func TestDecodeDate_OutOfRange(t *testing.T) {
	_, err := decodeDate(sql.NullInt64{Int64: MaxEpochDay + 1, Valid: true}, TableCheckIns, "date")
	assert.True(t, IsConsistencyViolation(err))
}

func TestBoolCodec(t *testing.T) {
	assert.Equal(t, int64(1), encodeBool(true))
	assert.Equal(t, int64(0), encodeBool(false))

	for _, b := range []bool{true, false} {
		got, err := decodeBool(sql.NullInt64{Int64: encodeBool(b), Valid: true}, TableCheckIns, "didExercise")
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}

	_, err := decodeBool(sql.NullInt64{Int64: 2, Valid: true}, TableCheckIns, "didExercise")
	assert.True(t, IsConsistencyViolation(err))

	_, err = decodeBool(sql.NullInt64{}, TableCheckIns, "didExercise")
	assert.True(t, IsConsistencyViolation(err))
}

func TestError_Format(t *testing.T) {
	err := newConsistencyError(TableCheckIns, "date", "non-nullable date column is NULL")
	assert.Equal(t, "CONSISTENCY_VIOLATION: decode date check_ins: non-nullable date column is NULL", err.Error())
	assert.True(t, err.Fatal())

	abort := newAbortError("commit", "", sql.ErrTxDone)
	assert.ErrorIs(t, abort, sql.ErrTxDone)
	assert.True(t, IsTransactionAborted(abort))
	assert.False(t, IsFatal(abort))
}
