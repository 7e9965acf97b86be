package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/oink/internal/store"
)

// CheckInOptions holds flags for the checkin command.
type CheckInOptions struct {
	*RootOptions
	Dates []string
}

// CheckInResult is the output of the checkin command.
type CheckInResult struct {
	CheckIns []store.CheckIn `json:"check_ins" yaml:"check_ins"`
	Balance  float64         `json:"balance" yaml:"balance"`
	Streak   int             `json:"streak" yaml:"streak"`
}

func (r CheckInResult) renderText(w io.Writer) error {
	for _, c := range r.CheckIns {
		verb := "missed"
		if c.DidExercise {
			verb = "worked out"
		}
		fmt.Fprintf(w, "%s: %s (check-in balance %s)\n", c.Date, verb, dollars(c.BalanceAfter))
	}
	_, err := fmt.Fprintf(w, "Balance: %s  Streak: %d\n", dollars(r.Balance), r.Streak)
	return err
}

// NewCheckInCommand creates the checkin command.
func NewCheckInCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckInOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkin [yes|no]",
		Short: "Record whether you worked out",
		Long: `Record whether you worked out on a day (today by default).

A workout adds the exercise reward to the balance; a missed day halves it.
Recording an earlier day, or changing an answer, recomputes every later
day's balance. Days in the future are rejected.

Examples:
  oink checkin
  oink checkin no
  oink checkin yes --date yesterday
  oink checkin yes --date 2025-03-01 --date 2025-03-02`,
		Args:          cobra.MaximumNArgs(1),
		ValidArgs:     []string{"yes", "no"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			answer := "yes"
			if len(args) == 1 {
				answer = args[0]
			}
			return runCheckIn(opts, answer, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Dates, "date", "d", nil, "day to record (YYYY-MM-DD, today, yesterday, -N); repeatable")

	return cmd
}

func runCheckIn(opts *CheckInOptions, answer string, cmd *cobra.Command) error {
	didExercise, err := parseAnswer(answer)
	if err != nil {
		return err
	}

	return withLedger(cmd, opts.RootOptions, func(ctx context.Context, l *session) error {
		today := l.Today()
		raw := opts.Dates
		if len(raw) == 0 {
			raw = []string{"today"}
		}
		dates := make([]store.Date, 0, len(raw))
		for _, s := range raw {
			d, err := parseDay(s, today)
			if err != nil {
				return err
			}
			dates = append(dates, d)
		}

		var result CheckInResult
		if len(dates) == 1 {
			c, err := l.RecordCheckIn(ctx, dates[0], didExercise)
			if err != nil {
				return err
			}
			result.CheckIns = []store.CheckIn{c}
		} else {
			all, err := l.BulkRecord(ctx, dates, didExercise)
			if err != nil {
				return err
			}
			result.CheckIns = all
		}

		var err error
		if result.Balance, err = l.Balance(ctx); err != nil {
			return err
		}
		if result.Streak, err = l.Streak(ctx); err != nil {
			return err
		}
		return opts.formatter(cmd).Success(result)
	})
}
