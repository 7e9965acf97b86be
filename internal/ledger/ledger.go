// Package ledger implements the habit-and-reward rules on top of the store:
// check-in balances, cash-outs, streaks and streak freezes.
//
// Balance rules:
//   - a workout adds the exercise reward to the previous balance
//   - a missed day halves the previous balance, rounded to cents
//   - amending or back-filling a day recomputes every later balance
//   - the spendable balance is the latest check-in balance less all
//     cash-outs and freeze spending, floored at zero
package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/oink/internal/clock"
	"github.com/roach88/oink/internal/live"
	"github.com/roach88/oink/internal/money"
	"github.com/roach88/oink/internal/prefs"
	"github.com/roach88/oink/internal/store"
)

// DefaultEmoji decorates a cash-out recorded without one.
const DefaultEmoji = "🎁"

// Ledger applies the ledger rules to a store and a preferences file.
type Ledger struct {
	store  *store.Store
	prefs  *prefs.File
	clock  clock.Clock
	loc    *time.Location
	logger *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock that decides "today" and cash-out timestamps.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithLocation sets the time zone in which days are counted.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New returns a ledger over s and p.
func New(s *store.Store, p *prefs.File, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		prefs:  p,
		clock:  clock.Real(),
		loc:    time.Local,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(l)
	}
	l.logger = l.logger.With("component", "ledger")
	return l
}

// Store returns the underlying store.
func (l *Ledger) Store() *store.Store { return l.store }

// Prefs returns the preferences file.
func (l *Ledger) Prefs() *prefs.File { return l.prefs }

// Today returns the current date in the ledger's time zone.
func (l *Ledger) Today() store.Date {
	return store.DateOf(l.clock.Now().In(l.loc))
}

// NextBalance applies one day to prev.
func NextBalance(prev float64, didExercise bool, reward float64) float64 {
	if didExercise {
		return money.Add(prev, reward)
	}
	return money.Half(prev)
}

// RecordCheckIn records whether the user exercised on date. An existing
// check-in for the date is amended; every later check-in's balance is
// then recomputed in the same transaction.
func (l *Ledger) RecordCheckIn(ctx context.Context, date store.Date, didExercise bool) (store.CheckIn, error) {
	if date.After(l.Today()) {
		return store.CheckIn{}, fmt.Errorf("record %s: %w", date, ErrFutureDate)
	}
	p, err := l.prefs.Load()
	if err != nil {
		return store.CheckIn{}, err
	}

	var out store.CheckIn
	err = l.store.Write(ctx, func(tx *store.Tx) error {
		var err error
		out, err = recordCheckIn(ctx, tx, date, didExercise, p.ExerciseReward)
		return err
	})
	if err != nil {
		return store.CheckIn{}, err
	}
	l.logger.Info("check-in recorded", "date", date, "exercised", didExercise, "balance", out.BalanceAfter)
	return out, nil
}

// BulkRecord records the same answer for several days in one transaction.
// Either every day is recorded or none is.
func (l *Ledger) BulkRecord(ctx context.Context, dates []store.Date, didExercise bool) ([]store.CheckIn, error) {
	today := l.Today()
	for _, d := range dates {
		if d.After(today) {
			return nil, fmt.Errorf("record %s: %w", d, ErrFutureDate)
		}
	}
	p, err := l.prefs.Load()
	if err != nil {
		return nil, err
	}

	out := make([]store.CheckIn, 0, len(dates))
	err = l.store.Write(ctx, func(tx *store.Tx) error {
		for _, d := range dates {
			c, err := recordCheckIn(ctx, tx, d, didExercise, p.ExerciseReward)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func recordCheckIn(ctx context.Context, tx *store.Tx, date store.Date, didExercise bool, reward float64) (store.CheckIn, error) {
	existing, found, err := tx.CheckInByDate(ctx, date)
	if err != nil {
		return store.CheckIn{}, err
	}
	if found && existing.DidExercise == didExercise {
		return existing, nil
	}

	prev := 0.0
	if before, ok, err := tx.CheckInBefore(ctx, date); err != nil {
		return store.CheckIn{}, err
	} else if ok {
		prev = before.BalanceAfter
	}

	c := store.CheckIn{
		Date:         date,
		DidExercise:  didExercise,
		BalanceAfter: NextBalance(prev, didExercise, reward),
	}
	if found {
		c.ID = existing.ID
		if _, err := tx.UpdateCheckIn(ctx, c); err != nil {
			return store.CheckIn{}, err
		}
	} else {
		if c.ID, err = tx.InsertCheckIn(ctx, c); err != nil {
			return store.CheckIn{}, err
		}
	}

	if err := recalculateAfter(ctx, tx, date, c.BalanceAfter, reward); err != nil {
		return store.CheckIn{}, err
	}
	return c, nil
}

// recalculateAfter rewrites the balance of every check-in after date,
// starting from balance. Rows whose balance is already right are left
// alone.
func recalculateAfter(ctx context.Context, tx *store.Tx, date store.Date, balance, reward float64) error {
	later, err := tx.CheckInsAfter(ctx, date)
	if err != nil {
		return err
	}
	for _, c := range later {
		next := NextBalance(balance, c.DidExercise, reward)
		if next != c.BalanceAfter {
			c.BalanceAfter = next
			if _, err := tx.UpdateCheckIn(ctx, c); err != nil {
				return err
			}
		}
		balance = next
	}
	return nil
}

// CashOut spends amount on a reward. The balance check and the insert run
// in one write transaction.
func (l *Ledger) CashOut(ctx context.Context, name string, amount float64, emoji string) (store.CashOut, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return store.CashOut{}, ErrEmptyName
	}
	if amount <= 0 {
		return store.CashOut{}, fmt.Errorf("cash out %v: %w", amount, ErrInvalidAmount)
	}
	emoji = norm.NFC.String(strings.TrimSpace(emoji))
	if emoji == "" {
		emoji = DefaultEmoji
	}

	var out store.CashOut
	err := l.store.Write(ctx, func(tx *store.Tx) error {
		// Freeze spending changes only under the write lock, so reading it
		// here keeps the balance check current.
		p, err := l.prefs.Load()
		if err != nil {
			return err
		}
		balance, err := tx.SpendableBalance(ctx, p.FreezeSpending)
		if err != nil {
			return err
		}
		if !money.Covers(balance, amount) {
			return fmt.Errorf("cash out %.2f with %.2f available: %w", amount, balance, ErrInsufficientBalance)
		}
		out, err = tx.RecordCashOut(ctx, store.CashOutDraft{
			Name:                 name,
			Amount:               amount,
			Emoji:                emoji,
			CashedOutAt:          l.clock.Now().UnixMilli(),
			ExerciseRewardAtTime: p.ExerciseReward,
			Spent:                p.FreezeSpending,
		})
		return err
	})
	if err != nil {
		return store.CashOut{}, err
	}
	l.logger.Info("cashed out", "name", name, "amount", amount, "balance", out.BalanceAfter)
	return out, nil
}

// Balance returns the spendable balance.
func (l *Ledger) Balance(ctx context.Context) (float64, error) {
	p, err := l.prefs.Load()
	if err != nil {
		return 0, err
	}
	var balance float64
	err = l.store.View(ctx, func(q *store.Queries) error {
		var err error
		balance, err = q.SpendableBalance(ctx, p.FreezeSpending)
		return err
	})
	return balance, err
}

// WatchBalance streams the spendable balance.
func (l *Ledger) WatchBalance(ctx context.Context) (*live.Stream[float64], error) {
	return l.store.WatchSpendableBalance(ctx, func() float64 {
		p, err := l.prefs.Load()
		if err != nil {
			l.logger.Warn("load preferences", "error", err)
			return 0
		}
		return p.FreezeSpending
	})
}

// PreviewExercise returns the spendable balance after a workout today.
func (l *Ledger) PreviewExercise(ctx context.Context) (float64, error) {
	return l.preview(ctx, true)
}

// PreviewMiss returns the spendable balance after missing today.
func (l *Ledger) PreviewMiss(ctx context.Context) (float64, error) {
	return l.preview(ctx, false)
}

func (l *Ledger) preview(ctx context.Context, didExercise bool) (float64, error) {
	p, err := l.prefs.Load()
	if err != nil {
		return 0, err
	}
	var out float64
	err = l.store.View(ctx, func(q *store.Queries) error {
		current, err := q.CheckInBalance(ctx)
		if err != nil {
			return err
		}
		cashed, err := q.TotalCashedOut(ctx)
		if err != nil {
			return err
		}
		next := NextBalance(current, didExercise, p.ExerciseReward)
		out = money.Spendable(next, cashed, p.FreezeSpending)
		return nil
	})
	return out, err
}

// TotalWorkoutsRewarded sums the workouts each cash-out cost, at the
// reward rate in effect when it was recorded.
func (l *Ledger) TotalWorkoutsRewarded(ctx context.Context) (int, error) {
	all, err := l.store.AllCashOuts(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range all {
		total += c.WorkoutsToEarn()
	}
	return total, nil
}

// SetExerciseReward changes the per-workout reward. Existing balances are
// not recomputed.
func (l *Ledger) SetExerciseReward(amount float64) (prefs.Preferences, error) {
	return l.prefs.Update(func(p *prefs.Preferences) error {
		p.ExerciseReward = max(money.Round2(amount), prefs.MinExerciseReward)
		return nil
	})
}

// Reset deletes every check-in and cash-out and clears freeze state in
// one write transaction. The exercise reward is kept.
func (l *Ledger) Reset(ctx context.Context) error {
	err := l.store.Write(ctx, func(tx *store.Tx) error {
		if _, err := tx.DeleteAll(ctx, store.TableCashOuts); err != nil {
			return err
		}
		if _, err := tx.DeleteAll(ctx, store.TableCheckIns); err != nil {
			return err
		}
		_, err := l.prefs.Update(func(p *prefs.Preferences) error {
			p.AvailableFreezes = 0
			p.FrozenDates = []store.Date{}
			p.FreezeSpending = 0
			return nil
		})
		if err != nil {
			return err
		}
		tx.Touch(store.DepPreferences)
		return nil
	})
	if err != nil {
		return err
	}
	l.logger.Info("ledger reset")
	return nil
}
