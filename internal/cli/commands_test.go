package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/oink/internal/store"
)

func TestCheckIn_Text(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "checkin")
	assert.Contains(t, out, "2025-03-10: worked out (check-in balance $5.00)")
	assert.Contains(t, out, "Balance: $5.00  Streak: 1")

	out = env.mustRun(t, "checkin", "no")
	assert.Contains(t, out, "2025-03-10: missed")
	assert.Contains(t, out, "Streak: 0")
}

func TestCheckIn_MultipleDates(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "checkin", "yes", "--date", "-2", "--date", "yesterday", "--date", "today", "--format", "json")
	got := decodeData[CheckInResult](t, out)
	require.Len(t, got.CheckIns, 3)
	assert.Equal(t, 15.0, got.Balance)
	assert.Equal(t, 3, got.Streak)
}

func TestCheckIn_FutureDateRejected(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "", "checkin", "--date", "2025-03-11", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRejected, resp.Error.Code)
}

func TestCheckIn_BadAnswer(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "", "checkin", "maybe")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCashOut(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "checkin", "--date", "-1")
	env.mustRun(t, "checkin")

	out := env.mustRun(t, "cashout", "Coffee", "$4.50", "--emoji", "☕", "--format", "json")
	got := decodeData[CashOutResult](t, out)
	assert.Equal(t, "Coffee", got.CashOut.Name)
	assert.Equal(t, "☕", got.CashOut.Emoji)
	assert.Equal(t, 10.0, got.CashOut.BalanceBefore)
	assert.Equal(t, 5.5, got.CashOut.BalanceAfter)
	assert.Equal(t, testNow.UnixMilli(), got.CashOut.CashedOutAt)

	out = env.mustRun(t, "cashout", "Sticker", "1")
	assert.Contains(t, out, "🎁 Sticker for $1.00")
	assert.Contains(t, out, "Balance: $5.50 -> $4.50")
}

func TestCashOut_Rejected(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "checkin")

	_, _, err := env.run(t, "", "cashout", "Bike", "500")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "insufficient balance")

	_, _, err = env.run(t, "", "cashout", "Bike", "lots")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistory(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "history")
	assert.Contains(t, out, "No check-ins yet.")

	env.mustRun(t, "checkin", "--date", "-2")
	env.mustRun(t, "checkin", "no", "--date", "-1")
	env.mustRun(t, "checkin")

	out = env.mustRun(t, "history", "--format", "json")
	got := decodeData[HistoryResult](t, out)
	require.Len(t, got.CheckIns, 3)
	assert.Equal(t, "2025-03-10", got.CheckIns[0].Date.String(), "newest first")
	assert.Equal(t, int64(2), got.Workouts)

	out = env.mustRun(t, "history", "--limit", "1")
	assert.Contains(t, out, "2025-03-10")
	assert.NotContains(t, out, "2025-03-09")
	assert.Contains(t, out, "2 workouts total")
}

func TestRewards(t *testing.T) {
	env := newCLIEnv(t)
	for _, d := range []string{"-3", "-2", "-1", "today"} {
		env.mustRun(t, "checkin", "--date", d)
	}
	env.mustRun(t, "cashout", "Book", "12")
	env.mustRun(t, "cashout", "Tea", "3", "--emoji", "🍵")

	out := env.mustRun(t, "rewards", "--format", "json")
	got := decodeData[RewardsResult](t, out)
	require.Len(t, got.CashOuts, 2)
	assert.Equal(t, 15.0, got.TotalCashedOut)
	assert.Equal(t, 2, got.TotalWorkoutsRewarded, "12/5 is 2 workouts, 3/5 is none")

	out = env.mustRun(t, "rewards")
	assert.Contains(t, out, "🍵 Tea")
	assert.Contains(t, out, "$15.00 spent on 2 rewards")
}

func TestBalance(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "checkin", "--date", "-1")
	env.mustRun(t, "checkin", "--date", "today")
	env.mustRun(t, "cashout", "Tea", "2")

	out := env.mustRun(t, "balance", "--format", "yaml")
	assert.Contains(t, out, "balance: 8")
	assert.Contains(t, out, "check_in_balance: 10")

	out = env.mustRun(t, "balance", "--format", "json")
	got := decodeData[BalanceResult](t, out)
	assert.Equal(t, BalanceResult{
		Balance:         8,
		CheckInBalance:  10,
		TotalCashedOut:  2,
		ExerciseReward:  5,
		IfExerciseToday: 13,
		IfMissToday:     3,
	}, got)
}

func TestStreakAndFreeze(t *testing.T) {
	env := newCLIEnv(t)
	for _, d := range []string{"-4", "-3", "-1", "today"} {
		env.mustRun(t, "checkin", "--date", d)
	}

	out := env.mustRun(t, "streak", "--format", "json")
	got := decodeData[StreakResult](t, out)
	assert.Equal(t, 2, got.Streak)
	require.NotNil(t, got.MissedDay)
	assert.Equal(t, "2025-03-08", got.MissedDay.String())

	_, _, err := env.run(t, "", "freeze", "use")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err), "no freeze held")

	out = env.mustRun(t, "freeze", "buy")
	assert.Contains(t, out, "Freezes available: 1")

	out = env.mustRun(t, "freeze", "use")
	assert.Contains(t, out, "Froze 2025-03-08. Balance: $10.00")

	out = env.mustRun(t, "streak")
	assert.Contains(t, out, "Streak: 4 days")
	assert.Contains(t, out, "Missed 2025-03-05", "the next gap back is offered")

	out = env.mustRun(t, "history")
	assert.NotContains(t, out, "2025-03-08", "frozen gaps have no check-in row")
}

func TestFreezeBuy_Limit(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "freeze", "buy")
	env.mustRun(t, "freeze", "buy")

	_, _, err := env.run(t, "", "freeze", "buy")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestPrefs(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "prefs", "show")
	assert.Contains(t, out, "exercise reward   $5.00")
	assert.Contains(t, out, "reminders         off")

	out = env.mustRun(t, "prefs", "set-reward", "2.5", "--format", "json")
	got := decodeData[PrefsResult](t, out)
	assert.Equal(t, 2.5, got.Preferences.ExerciseReward)
	assert.Equal(t, 5.0, got.FreezeCost)
	assert.Equal(t, env.prefs, got.Path)

	out = env.mustRun(t, "checkin")
	assert.Contains(t, out, "Balance: $2.50")

	_, _, err := env.run(t, "", "prefs", "set-reward", "abc")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReset(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "checkin")
	env.mustRun(t, "cashout", "Tea", "1")

	_, _, err := env.run(t, "", "reset")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out := env.mustRun(t, "reset", "--yes")
	assert.Contains(t, out, "Ledger reset.")

	out = env.mustRun(t, "history")
	assert.Contains(t, out, "No check-ins yet.")
	out = env.mustRun(t, "rewards")
	assert.Contains(t, out, "No rewards yet.")
}

func TestWatch_AppliesCommandsFromStdin(t *testing.T) {
	env := newCLIEnv(t)

	out, errOut, err := env.run(t, "checkin yes\n", "watch", "balance", "--count", "2", "--format", "json")
	require.NoError(t, err, "stderr: %s", errOut)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, 0.0, decodeData[WatchEvent](t, lines[0]).Value)
	assert.Equal(t, 5.0, decodeData[WatchEvent](t, lines[1]).Value)
}

func TestWatch_Quit(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "checkin")

	out, _, err := env.run(t, "bogus\nquit\n", "watch", "latest")
	require.NoError(t, err)
	assert.Contains(t, out, "latest: 2025-03-10 worked out, $5.00")
}

func TestWatch_BadAnswerWritesNothing(t *testing.T) {
	env := newCLIEnv(t)

	out, errOut, err := env.run(t, "checkin yse\nquit\n", "watch", "balance")
	require.NoError(t, err)
	assert.Equal(t, "balance: $0.00\n", out)
	assert.Contains(t, errOut, "command rejected")
	assert.Contains(t, errOut, `invalid answer \"yse\"`)

	out = env.mustRun(t, "history")
	assert.Contains(t, out, "No check-ins yet.")
}

func TestWatch_InvalidQuery(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run(t, "", "watch", "everything")
	assert.Error(t, err)
}

func TestSchema(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "schema")
	assert.Contains(t, out, store.Expected.IdentityHash())
	assert.Contains(t, out, "table check_ins")

	out = env.mustRun(t, "schema", "--check", "--format", "json")
	got := decodeData[SchemaResult](t, out)
	require.NotNil(t, got.Matches)
	assert.True(t, *got.Matches)
	assert.Equal(t, env.db, got.Database)
}
