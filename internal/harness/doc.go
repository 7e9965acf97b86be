// Package harness runs ledger scenarios as executable contract tests.
//
// A scenario is a YAML file describing a sequence of ledger operations
// against a fresh database, the outcome each one should have, and
// assertions on the final state.
//
// # Scenario Format
//
//	name: freeze_rescues_streak
//	description: "A frozen gap no longer breaks the streak"
//	today: 2025-03-10
//	reward: 5
//	steps:
//	  - action: workout
//	    dates: ["-3", "-1", today]
//	  - action: use_freeze
//	    expect: no_freezes
//	  - action: buy_freeze
//	  - action: use_freeze
//	assertions:
//	  - type: streak
//	    count: 4
//	  - type: balance
//	    value: 5
//
// Dates are ISO days, "today", "yesterday", or "-N" for N days before
// the current day. Steps without an expect clause must succeed.
//
// # Step Actions
//
//   - workout, miss: record check-ins on date or dates (default today)
//   - cashout: spend amount on name with an optional emoji
//   - buy_freeze: acquire a streak freeze
//   - use_freeze: freeze date, or the most recent missed day when omitted
//   - set_reward: change the per-workout reward to amount
//   - advance: move the clock forward by days
//   - reset: delete all ledger data
//
// # Assertion Types
//
//   - balance, check_in_balance, cashed_out: compare a dollar value
//   - streak, workouts, freezes: compare a count
//   - check_in: compare the row on date (value and exercised)
//   - missed_day: compare the day offered for a freeze ("" for none)
//
// # Deterministic Testing
//
// Scenarios run against a fake clock fixed at noon UTC on the scenario's
// today, so every run produces the same trace. RunWithGolden compares that
// trace against testdata/golden/<name>.golden.
package harness
