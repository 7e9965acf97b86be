package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/oink/internal/store"
)

// StreakResult is the output of the streak command.
type StreakResult struct {
	Streak           int         `json:"streak" yaml:"streak"`
	AvailableFreezes int         `json:"available_freezes" yaml:"available_freezes"`
	FreezeCost       float64     `json:"freeze_cost" yaml:"freeze_cost"`
	MissedDay        *store.Date `json:"missed_day,omitempty" yaml:"missed_day,omitempty"`
}

func (r StreakResult) renderText(w io.Writer) error {
	fmt.Fprintf(w, "Streak: %d days\n", r.Streak)
	fmt.Fprintf(w, "Freezes: %d available (each costs %s to use)\n", r.AvailableFreezes, dollars(r.FreezeCost))
	if r.MissedDay != nil {
		fmt.Fprintf(w, "Missed %s; run `oink freeze use %s` to keep the streak.\n", r.MissedDay, r.MissedDay)
	}
	return nil
}

// NewStreakCommand creates the streak command.
func NewStreakCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Show the current workout streak",
		Long: `Show the number of consecutive workout days ending today.

Today not being recorded yet does not break the streak. Frozen days neither
break nor extend it. If a day in the past week broke the streak, it is
suggested for a freeze.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStreak(rootOpts, cmd)
		},
	}

	return cmd
}

func runStreak(opts *RootOptions, cmd *cobra.Command) error {
	return withLedger(cmd, opts, func(ctx context.Context, l *session) error {
		p, err := l.Prefs().Load()
		if err != nil {
			return err
		}
		result := StreakResult{
			AvailableFreezes: p.AvailableFreezes,
			FreezeCost:       p.FreezeCost(),
		}
		if result.Streak, err = l.Streak(ctx); err != nil {
			return err
		}
		d, ok, err := l.MissedDayForFreeze(ctx)
		if err != nil {
			return err
		}
		if ok {
			result.MissedDay = &d
		}
		return opts.formatter(cmd).Success(result)
	})
}
