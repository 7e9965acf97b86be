package harness

import (
	"context"
	"fmt"

	"github.com/roach88/oink/internal/money"
)

// evaluateAssertions checks every assertion against the final ledger and
// returns one message per failure.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertBalance:
		got, err := h.ledger.Balance(ctx)
		if err != nil {
			return err
		}
		return expectDollars(*a.Value, got)
	case AssertCheckInBalance:
		got, err := h.store.CheckInBalance(ctx)
		if err != nil {
			return err
		}
		return expectDollars(*a.Value, got)
	case AssertCashedOut:
		got, err := h.store.TotalCashedOut(ctx)
		if err != nil {
			return err
		}
		return expectDollars(*a.Value, got)
	case AssertStreak:
		got, err := h.ledger.Streak(ctx)
		if err != nil {
			return err
		}
		return expectCount(*a.Count, got)
	case AssertWorkouts:
		got, err := h.store.WorkoutCount(ctx)
		if err != nil {
			return err
		}
		return expectCount(*a.Count, int(got))
	case AssertFreezes:
		p, err := h.ledger.Prefs().Load()
		if err != nil {
			return err
		}
		return expectCount(*a.Count, p.AvailableFreezes)
	case AssertCheckIn:
		return h.evaluateCheckIn(ctx, a)
	case AssertMissedDay:
		return h.evaluateMissedDay(ctx, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func (h *Harness) evaluateCheckIn(ctx context.Context, a Assertion) error {
	day, err := resolveDate(a.Date, h.ledger.Today())
	if err != nil {
		return err
	}
	c, ok, err := h.store.CheckInByDate(ctx, day)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no check-in on %s", day)
	}
	if a.Exercised != nil && c.DidExercise != *a.Exercised {
		return fmt.Errorf("%s: expected exercised=%t, got %t", day, *a.Exercised, c.DidExercise)
	}
	if a.Value != nil {
		if err := expectDollars(*a.Value, c.BalanceAfter); err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}
	return nil
}

func (h *Harness) evaluateMissedDay(ctx context.Context, a Assertion) error {
	got, ok, err := h.ledger.MissedDayForFreeze(ctx)
	if err != nil {
		return err
	}
	if a.Date == "" {
		if ok {
			return fmt.Errorf("expected no missed day, got %s", got)
		}
		return nil
	}
	want, err := resolveDate(a.Date, h.ledger.Today())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("expected missed day %s, got none", want)
	}
	if got != want {
		return fmt.Errorf("expected missed day %s, got %s", want, got)
	}
	return nil
}

func expectDollars(want, got float64) error {
	if money.Round2(want) != money.Round2(got) {
		return fmt.Errorf("expected %.2f, got %.2f", want, got)
	}
	return nil
}

func expectCount(want, got int) error {
	if want != got {
		return fmt.Errorf("expected %d, got %d", want, got)
	}
	return nil
}
