package ledger

import (
	"context"
	"fmt"

	"github.com/roach88/oink/internal/money"
	"github.com/roach88/oink/internal/prefs"
	"github.com/roach88/oink/internal/store"
)

// freezeLookback is how many days before today a missed day can still be
// frozen.
const freezeLookback = 7

// Streak counts consecutive workout days ending today. Today not being
// recorded yet does not break the streak. A frozen day neither breaks nor
// extends it.
func (l *Ledger) Streak(ctx context.Context) (int, error) {
	p, err := l.prefs.Load()
	if err != nil {
		return 0, err
	}
	all, err := l.store.AllCheckInsAsc(ctx)
	if err != nil {
		return 0, err
	}
	return streak(byDate(all), p.Frozen(), l.Today()), nil
}

func streak(checkIns map[store.Date]store.CheckIn, frozen map[store.Date]bool, today store.Date) int {
	if len(checkIns) == 0 && len(frozen) == 0 {
		return 0
	}
	n := 0
	for d := today; ; d = d.AddDays(-1) {
		c, ok := checkIns[d]
		switch {
		case ok && c.DidExercise:
			n++
		case !ok && d == today:
		case frozen[d]:
		default:
			return n
		}
	}
}

// MissedDayForFreeze returns the most recent day in the past week that
// broke the streak and is not yet frozen. It reports false when there is
// none.
func (l *Ledger) MissedDayForFreeze(ctx context.Context) (store.Date, bool, error) {
	p, err := l.prefs.Load()
	if err != nil {
		return store.Date{}, false, err
	}
	all, err := l.store.AllCheckInsAsc(ctx)
	if err != nil {
		return store.Date{}, false, err
	}
	d, ok := missedDay(byDate(all), p.Frozen(), l.Today())
	return d, ok, nil
}

func missedDay(checkIns map[store.Date]store.CheckIn, frozen map[store.Date]bool, today store.Date) (store.Date, bool) {
	d := today.AddDays(-1)
	for i := 0; i < freezeLookback; i++ {
		if !frozen[d] {
			if c, ok := checkIns[d]; !ok || !c.DidExercise {
				return d, true
			}
		}
		d = d.AddDays(-1)
	}
	return store.Date{}, false
}

func byDate(all []store.CheckIn) map[store.Date]store.CheckIn {
	out := make(map[store.Date]store.CheckIn, len(all))
	for _, c := range all {
		out[c.Date] = c
	}
	return out
}

// BuyFreeze adds a streak freeze. Holding one is free; using it costs.
func (l *Ledger) BuyFreeze() (prefs.Preferences, error) {
	p, err := l.prefs.Update(func(p *prefs.Preferences) error {
		if p.AvailableFreezes >= prefs.MaxFreezes {
			return fmt.Errorf("buy freeze: %w (%d)", ErrMaxFreezes, prefs.MaxFreezes)
		}
		p.AvailableFreezes++
		return nil
	})
	if err != nil {
		return prefs.Preferences{}, err
	}
	l.logger.Info("freeze acquired", "available", p.AvailableFreezes)
	return p, nil
}

// UseFreeze spends a held freeze and its cost on date so the day no longer
// breaks the streak. The cost is charged as freeze spending, leaving
// check-in balances untouched.
func (l *Ledger) UseFreeze(ctx context.Context, date store.Date) (prefs.Preferences, error) {
	if date.After(l.Today()) {
		return prefs.Preferences{}, fmt.Errorf("freeze %s: %w", date, ErrFutureDate)
	}
	var (
		cost float64
		p    prefs.Preferences
	)
	// Preferences are updated under the store's write lock so the balance
	// check serializes with cash-outs. Lock order: store, then prefs.
	err := l.store.Write(ctx, func(tx *store.Tx) error {
		var err error
		p, err = l.prefs.Update(func(p *prefs.Preferences) error {
			if p.Frozen()[date] {
				return fmt.Errorf("freeze %s: %w", date, ErrAlreadyFrozen)
			}
			if p.AvailableFreezes <= 0 {
				return ErrNoFreezes
			}
			balance, err := tx.SpendableBalance(ctx, p.FreezeSpending)
			if err != nil {
				return err
			}
			cost = p.FreezeCost()
			if !money.Covers(balance, cost) {
				return fmt.Errorf("freeze costs %.2f with %.2f available: %w", cost, balance, ErrInsufficientBalance)
			}
			p.AvailableFreezes--
			p.FrozenDates = append(p.FrozenDates, date)
			p.FreezeSpending = money.Add(p.FreezeSpending, cost)
			return nil
		})
		if err != nil {
			return err
		}
		tx.Touch(store.DepPreferences)
		return nil
	})
	if err != nil {
		return prefs.Preferences{}, err
	}
	l.logger.Info("freeze used", "date", date, "cost", cost, "available", p.AvailableFreezes)
	return p, nil
}
