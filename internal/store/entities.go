package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/oink/internal/money"
)

// Table names.
const (
	TableCheckIns = "check_ins"
	TableCashOuts = "cash_outs"
)

// DepPreferences names state kept outside the database that live queries
// can depend on. A write that changes it calls Tx.Touch.
const DepPreferences = "preferences"

// CheckIn is one day's record: whether the user exercised and the ledger
// balance immediately after that day.
type CheckIn struct {
	// ID is generated on insert when zero.
	ID           int64   `json:"id" yaml:"id"`
	Date         Date    `json:"date" yaml:"date"`
	DidExercise  bool    `json:"did_exercise" yaml:"did_exercise"`
	BalanceAfter float64 `json:"balance_after" yaml:"balance_after"`
}

// CashOut is an append-only record of spending the balance on a reward.
// BalanceAfter is always BalanceBefore - Amount.
type CashOut struct {
	ID     int64   `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Amount float64 `json:"amount" yaml:"amount"`
	Emoji  string  `json:"emoji" yaml:"emoji"`

	// CashedOutAt is milliseconds since the Unix epoch.
	CashedOutAt   int64   `json:"cashed_out_at" yaml:"cashed_out_at"`
	BalanceBefore float64 `json:"balance_before" yaml:"balance_before"`
	BalanceAfter  float64 `json:"balance_after" yaml:"balance_after"`

	// ExerciseRewardAtTime is the per-workout reward in effect when the
	// cash-out was recorded.
	ExerciseRewardAtTime float64 `json:"exercise_reward_at_time" yaml:"exercise_reward_at_time"`
}

// WorkoutsToEarn is the number of workouts this reward cost at the reward
// rate in effect when it was recorded.
func (c CashOut) WorkoutsToEarn() int {
	if c.ExerciseRewardAtTime <= 0 {
		return 0
	}
	return int(c.Amount / c.ExerciseRewardAtTime)
}

// checkInBinding is the column-binding contract for check_ins.
var checkInBinding = Binding[CheckIn]{
	Table:   TableCheckIns,
	Columns: []string{"date", "didExercise", "balanceAfter"},
	Values: func(c CheckIn) []any {
		return []any{encodeDate(c.Date), encodeBool(c.DidExercise), c.BalanceAfter}
	},
	Key: func(c CheckIn) int64 { return c.ID },
}

// cashOutBinding is the column-binding contract for cash_outs.
var cashOutBinding = Binding[CashOut]{
	Table: TableCashOuts,
	Columns: []string{
		"name", "amount", "emoji", "cashedOutAt",
		"balanceBefore", "balanceAfter", "exerciseRewardAtTime",
	},
	Values: func(c CashOut) []any {
		return []any{
			c.Name, c.Amount, c.Emoji, c.CashedOutAt,
			c.BalanceBefore, c.BalanceAfter, c.ExerciseRewardAtTime,
		}
	},
	Key:   func(c CashOut) int64 { return c.ID },
	Check: checkCashOutBalance,
}

// checkCashOutBalance requires BalanceAfter == BalanceBefore - Amount, to
// the cent.
func checkCashOutBalance(c CashOut) error {
	if want := money.Round2(c.BalanceBefore - c.Amount); money.Round2(c.BalanceAfter) != want {
		return fmt.Errorf("balance after %v, want %v - %v = %v", c.BalanceAfter, c.BalanceBefore, c.Amount, want)
	}
	return nil
}

// Select lists; the scan functions below depend on this exact order.
const (
	checkInColumns = "id, date, didExercise, balanceAfter"
	cashOutColumns = "id, name, amount, emoji, cashedOutAt, balanceBefore, balanceAfter, exerciseRewardAtTime"
)

func scanCheckIn(row scanner) (CheckIn, error) {
	var (
		c            CheckIn
		date         sql.NullInt64
		didExercise  sql.NullInt64
		balanceAfter sql.NullFloat64
		err          error
	)
	if err := row.Scan(&c.ID, &date, &didExercise, &balanceAfter); err != nil {
		return CheckIn{}, err
	}
	if c.Date, err = decodeDate(date, TableCheckIns, "date"); err != nil {
		return CheckIn{}, err
	}
	if c.DidExercise, err = decodeBool(didExercise, TableCheckIns, "didExercise"); err != nil {
		return CheckIn{}, err
	}
	if c.BalanceAfter, err = requireFloat(balanceAfter, TableCheckIns, "balanceAfter"); err != nil {
		return CheckIn{}, err
	}
	return c, nil
}

func scanCashOut(row scanner) (CashOut, error) {
	var (
		c                    CashOut
		name, emoji          sql.NullString
		cashedOutAt          sql.NullInt64
		amount               sql.NullFloat64
		balanceBefore        sql.NullFloat64
		balanceAfter         sql.NullFloat64
		exerciseRewardAtTime sql.NullFloat64
		err                  error
	)
	if err := row.Scan(
		&c.ID, &name, &amount, &emoji, &cashedOutAt,
		&balanceBefore, &balanceAfter, &exerciseRewardAtTime,
	); err != nil {
		return CashOut{}, err
	}
	if c.Name, err = requireString(name, TableCashOuts, "name"); err != nil {
		return CashOut{}, err
	}
	if c.Amount, err = requireFloat(amount, TableCashOuts, "amount"); err != nil {
		return CashOut{}, err
	}
	if c.Emoji, err = requireString(emoji, TableCashOuts, "emoji"); err != nil {
		return CashOut{}, err
	}
	if c.CashedOutAt, err = requireInt(cashedOutAt, TableCashOuts, "cashedOutAt"); err != nil {
		return CashOut{}, err
	}
	if c.BalanceBefore, err = requireFloat(balanceBefore, TableCashOuts, "balanceBefore"); err != nil {
		return CashOut{}, err
	}
	if c.BalanceAfter, err = requireFloat(balanceAfter, TableCashOuts, "balanceAfter"); err != nil {
		return CashOut{}, err
	}
	if c.ExerciseRewardAtTime, err = requireFloat(exerciseRewardAtTime, TableCashOuts, "exerciseRewardAtTime"); err != nil {
		return CashOut{}, err
	}
	return c, nil
}
