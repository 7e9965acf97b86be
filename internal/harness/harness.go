package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/roach88/oink/internal/clock"
	"github.com/roach88/oink/internal/ledger"
	"github.com/roach88/oink/internal/prefs"
	"github.com/roach88/oink/internal/store"
)

// Step outcomes.
const (
	OutcomeOK                  = "ok"
	OutcomeFutureDate          = "future_date"
	OutcomeInvalidAmount       = "invalid_amount"
	OutcomeEmptyName           = "empty_name"
	OutcomeInsufficientBalance = "insufficient_balance"
	OutcomeNoFreezes           = "no_freezes"
	OutcomeMaxFreezes          = "max_freezes"
	OutcomeAlreadyFrozen       = "already_frozen"
	OutcomeNoMissedDay         = "no_missed_day"
)

var errNoMissedDay = errors.New("no missed day to freeze")

// rejections maps ledger errors to outcome names, in match order.
var rejections = []struct {
	outcome string
	err     error
}{
	{OutcomeFutureDate, ledger.ErrFutureDate},
	{OutcomeInvalidAmount, ledger.ErrInvalidAmount},
	{OutcomeEmptyName, ledger.ErrEmptyName},
	{OutcomeInsufficientBalance, ledger.ErrInsufficientBalance},
	{OutcomeNoFreezes, ledger.ErrNoFreezes},
	{OutcomeMaxFreezes, ledger.ErrMaxFreezes},
	{OutcomeAlreadyFrozen, ledger.ErrAlreadyFrozen},
	{OutcomeNoMissedDay, errNoMissedDay},
}

var outcomes = func() []string {
	out := []string{OutcomeOK}
	for _, r := range rejections {
		out = append(out, r.outcome)
	}
	return out
}()

// outcomeOf names the rejection err represents. It reports false for
// errors that are not ledger rejections.
func outcomeOf(err error) (string, bool) {
	if err == nil {
		return OutcomeOK, true
	}
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.outcome, true
		}
	}
	return "", false
}

// Harness executes scenario steps against one ledger.
type Harness struct {
	ledger *ledger.Ledger
	store  *store.Store
	clock  *clock.FakeClock
}

// Run executes a scenario in dir, which must be empty, and returns the
// result. Rejected steps are reported through the result; errors from
// the store or preferences file abort the run.
func Run(ctx context.Context, scenario *Scenario, dir string) (*Result, error) {
	today, err := store.ParseDate(scenario.Today)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(ctx, filepath.Join(dir, "oink.db"), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	p, err := prefs.Open(filepath.Join(dir, "prefs.yaml"), prefs.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}

	c := clock.Fake(time.Date(today.Year, today.Month, today.Day, 12, 0, 0, 0, time.UTC))
	h := &Harness{
		ledger: ledger.New(st, p, ledger.WithClock(c), ledger.WithLocation(time.UTC), ledger.WithLogger(logger)),
		store:  st,
		clock:  c,
	}

	if scenario.Reward > 0 {
		if _, err := h.ledger.SetExerciseReward(scenario.Reward); err != nil {
			return nil, err
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Action, err)
		}
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	dates, err := h.stepDates(ctx, step)
	if err != nil {
		return err
	}

	err = h.apply(ctx, step, dates)
	outcome, ok := outcomeOf(err)
	if !ok {
		return err
	}

	want := step.Expect
	if want == "" {
		want = OutcomeOK
	}
	if outcome != want {
		msg := fmt.Sprintf("steps[%d] %s: expected outcome %s, got %s", index, step.Action, want, outcome)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
	}

	balance, err := h.ledger.Balance(ctx)
	if err != nil {
		return err
	}
	event := TraceEvent{Action: step.Action, Outcome: outcome, Balance: balance}
	for _, d := range dates {
		event.Dates = append(event.Dates, d.String())
	}
	result.AddTrace(event)
	return nil
}

// stepDates resolves the days a step applies to. Check-ins default to
// today and freezes to the most recent missed day.
func (h *Harness) stepDates(ctx context.Context, step Step) ([]store.Date, error) {
	today := h.ledger.Today()
	raw := step.Dates
	if step.Date != "" {
		raw = []string{step.Date}
	}
	if len(raw) == 0 {
		switch step.Action {
		case ActionWorkout, ActionMiss:
			raw = []string{"today"}
		case ActionUseFreeze:
			d, ok, err := h.ledger.MissedDayForFreeze(ctx)
			if err != nil || !ok {
				return nil, err
			}
			return []store.Date{d}, nil
		}
	}
	dates := make([]store.Date, 0, len(raw))
	for _, s := range raw {
		d, err := resolveDate(s, today)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func (h *Harness) apply(ctx context.Context, step Step, dates []store.Date) error {
	switch step.Action {
	case ActionWorkout, ActionMiss:
		exercised := step.Action == ActionWorkout
		if len(dates) == 1 {
			_, err := h.ledger.RecordCheckIn(ctx, dates[0], exercised)
			return err
		}
		_, err := h.ledger.BulkRecord(ctx, dates, exercised)
		return err
	case ActionCashOut:
		_, err := h.ledger.CashOut(ctx, step.Name, step.Amount, step.Emoji)
		return err
	case ActionBuyFreeze:
		_, err := h.ledger.BuyFreeze()
		return err
	case ActionUseFreeze:
		if len(dates) == 0 {
			return errNoMissedDay
		}
		_, err := h.ledger.UseFreeze(ctx, dates[0])
		return err
	case ActionSetReward:
		_, err := h.ledger.SetExerciseReward(step.Amount)
		return err
	case ActionAdvance:
		h.clock.Advance(time.Duration(step.Days) * 24 * time.Hour)
		return nil
	case ActionReset:
		return h.ledger.Reset(ctx)
	}
	return fmt.Errorf("unknown action %q", step.Action)
}
