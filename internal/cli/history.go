package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/oink/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	CheckIns []store.CheckIn `json:"check_ins" yaml:"check_ins"`
	Workouts int64           `json:"workouts" yaml:"workouts"`
	Frozen   []store.Date    `json:"frozen_dates" yaml:"frozen_dates"`
}

func (r HistoryResult) renderText(w io.Writer) error {
	if len(r.CheckIns) == 0 {
		_, err := fmt.Fprintln(w, "No check-ins yet.")
		return err
	}
	frozen := make(map[store.Date]bool, len(r.Frozen))
	for _, d := range r.Frozen {
		frozen[d] = true
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tWORKOUT\tBALANCE\t")
	for _, c := range r.CheckIns {
		mark := "no"
		if c.DidExercise {
			mark = "yes"
		}
		if frozen[c.Date] {
			mark += " (frozen)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", c.Date, mark, dollars(c.BalanceAfter))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d workouts total\n", r.Workouts)
	return err
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List check-ins, newest first",
		Long: `List recorded check-ins, newest first, with the balance after each day.

Examples:
  oink history
  oink history --limit 7
  oink history --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show at most n days (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	return withLedger(cmd, opts.RootOptions, func(ctx context.Context, l *session) error {
		var result HistoryResult
		err := l.store.View(ctx, func(q *store.Queries) error {
			var err error
			if result.CheckIns, err = q.AllCheckIns(ctx); err != nil {
				return err
			}
			result.Workouts, err = q.WorkoutCount(ctx)
			return err
		})
		if err != nil {
			return err
		}
		if opts.Limit > 0 && len(result.CheckIns) > opts.Limit {
			result.CheckIns = result.CheckIns[:opts.Limit]
		}

		p, err := l.Prefs().Load()
		if err != nil {
			return err
		}
		result.Frozen = p.FrozenDates
		return opts.formatter(cmd).Success(result)
	})
}
