package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/oink/internal/store"
)

// FreezeResult is the output of the freeze subcommands.
type FreezeResult struct {
	AvailableFreezes int          `json:"available_freezes" yaml:"available_freezes"`
	FrozenDates      []store.Date `json:"frozen_dates" yaml:"frozen_dates"`
	FreezeSpending   float64      `json:"freeze_spending" yaml:"freeze_spending"`
	Frozen           *store.Date  `json:"frozen,omitempty" yaml:"frozen,omitempty"`
	Balance          float64      `json:"balance" yaml:"balance"`
}

func (r FreezeResult) renderText(w io.Writer) error {
	if r.Frozen != nil {
		fmt.Fprintf(w, "Froze %s. Balance: %s\n", r.Frozen, dollars(r.Balance))
	}
	_, err := fmt.Fprintf(w, "Freezes available: %d\n", r.AvailableFreezes)
	return err
}

// NewFreezeCommand creates the freeze command and its subcommands.
func NewFreezeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Manage streak freezes",
		Long: `Streak freezes keep a missed day from breaking the streak.

Getting a freeze is free; you can hold at most two. Using one on a missed
day costs twice the exercise reward, taken from the spendable balance.`,
	}

	cmd.AddCommand(newFreezeBuyCommand(rootOpts))
	cmd.AddCommand(newFreezeUseCommand(rootOpts))

	return cmd
}

func newFreezeBuyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "buy",
		Short:         "Get a streak freeze",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l *session) error {
				p, err := l.BuyFreeze()
				if err != nil {
					return err
				}
				return finishFreeze(ctx, cmd, opts, l, FreezeResult{
					AvailableFreezes: p.AvailableFreezes,
					FrozenDates:      p.FrozenDates,
					FreezeSpending:   p.FreezeSpending,
				})
			})
		},
	}
}

func newFreezeUseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use [date]",
		Short: "Spend a freeze on a missed day",
		Long: `Spend a freeze on a missed day. Without a date, the most recent missed
day of the past week is frozen.

Examples:
  oink freeze use
  oink freeze use 2025-03-08`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, opts, func(ctx context.Context, l *session) error {
				day, err := freezeTarget(ctx, l, args)
				if err != nil {
					return err
				}
				p, err := l.UseFreeze(ctx, day)
				if err != nil {
					return err
				}
				return finishFreeze(ctx, cmd, opts, l, FreezeResult{
					AvailableFreezes: p.AvailableFreezes,
					FrozenDates:      p.FrozenDates,
					FreezeSpending:   p.FreezeSpending,
					Frozen:           &day,
				})
			})
		},
	}
}

func freezeTarget(ctx context.Context, l *session, args []string) (store.Date, error) {
	if len(args) == 1 {
		return parseDay(args[0], l.Today())
	}
	d, ok, err := l.MissedDayForFreeze(ctx)
	if err != nil {
		return store.Date{}, err
	}
	if !ok {
		return store.Date{}, NewExitError(ExitFailure, "no missed day in the past week to freeze")
	}
	return d, nil
}

func finishFreeze(ctx context.Context, cmd *cobra.Command, opts *RootOptions, l *session, result FreezeResult) error {
	var err error
	if result.Balance, err = l.Balance(ctx); err != nil {
		return err
	}
	return opts.formatter(cmd).Success(result)
}
