package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/oink/internal/store"
)

// RewardsResult is the output of the rewards command.
type RewardsResult struct {
	CashOuts              []store.CashOut `json:"cash_outs" yaml:"cash_outs"`
	TotalCashedOut        float64         `json:"total_cashed_out" yaml:"total_cashed_out"`
	TotalWorkoutsRewarded int             `json:"total_workouts_rewarded" yaml:"total_workouts_rewarded"`

	loc *time.Location
}

func (r RewardsResult) renderText(w io.Writer) error {
	if len(r.CashOuts) == 0 {
		_, err := fmt.Fprintln(w, "No rewards yet. Keep working out!")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tREWARD\tAMOUNT\tWORKOUTS\t")
	for _, c := range r.CashOuts {
		when := time.UnixMilli(c.CashedOutAt).In(r.loc).Format("2006-01-02 15:04")
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%d\t\n", when, c.Emoji, c.Name, dollars(c.Amount), c.WorkoutsToEarn())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s spent on %d rewards, earned by %d workouts\n",
		dollars(r.TotalCashedOut), len(r.CashOuts), r.TotalWorkoutsRewarded)
	return err
}

// NewRewardsCommand creates the rewards command.
func NewRewardsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "List cash-outs, most recent first",
		Long: `List every reward you have cashed out, most recent first, with the
number of workouts each one took to earn.

Examples:
  oink rewards
  oink rewards --format yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewards(rootOpts, cmd)
		},
	}

	return cmd
}

func runRewards(opts *RootOptions, cmd *cobra.Command) error {
	return withLedger(cmd, opts, func(ctx context.Context, l *session) error {
		result := RewardsResult{loc: opts.Location}
		err := l.store.View(ctx, func(q *store.Queries) error {
			var err error
			if result.CashOuts, err = q.AllCashOuts(ctx); err != nil {
				return err
			}
			result.TotalCashedOut, err = q.TotalCashedOut(ctx)
			return err
		})
		if err != nil {
			return err
		}
		for _, c := range result.CashOuts {
			result.TotalWorkoutsRewarded += c.WorkoutsToEarn()
		}
		return opts.formatter(cmd).Success(result)
	})
}
