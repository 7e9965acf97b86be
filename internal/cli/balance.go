package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// BalanceResult is the output of the balance command.
type BalanceResult struct {
	Balance         float64 `json:"balance" yaml:"balance"`
	CheckInBalance  float64 `json:"check_in_balance" yaml:"check_in_balance"`
	TotalCashedOut  float64 `json:"total_cashed_out" yaml:"total_cashed_out"`
	FreezeSpending  float64 `json:"freeze_spending" yaml:"freeze_spending"`
	ExerciseReward  float64 `json:"exercise_reward" yaml:"exercise_reward"`
	IfExerciseToday float64 `json:"if_exercise_today" yaml:"if_exercise_today"`
	IfMissToday     float64 `json:"if_miss_today" yaml:"if_miss_today"`
}

func (r BalanceResult) renderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, `Balance: %s
  earned     %s
  cashed out %s
  freezes    %s
Work out today: %s  Skip today: %s
`, dollars(r.Balance), dollars(r.CheckInBalance), dollars(r.TotalCashedOut), dollars(r.FreezeSpending),
		dollars(r.IfExerciseToday), dollars(r.IfMissToday))
	return err
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the spendable balance and today's previews",
		Long: `Show the spendable balance: the latest check-in balance less everything
cashed out and spent on freezes. Also previews the balance if you work out
or skip today.

Examples:
  oink balance
  oink balance --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalance(rootOpts, cmd)
		},
	}

	return cmd
}

func runBalance(opts *RootOptions, cmd *cobra.Command) error {
	return withLedger(cmd, opts, func(ctx context.Context, l *session) error {
		p, err := l.Prefs().Load()
		if err != nil {
			return err
		}
		result := BalanceResult{
			FreezeSpending: p.FreezeSpending,
			ExerciseReward: p.ExerciseReward,
		}
		if result.Balance, err = l.Balance(ctx); err != nil {
			return err
		}
		if result.CheckInBalance, err = l.store.CheckInBalance(ctx); err != nil {
			return err
		}
		if result.TotalCashedOut, err = l.store.TotalCashedOut(ctx); err != nil {
			return err
		}
		if result.IfExerciseToday, err = l.PreviewExercise(ctx); err != nil {
			return err
		}
		if result.IfMissToday, err = l.PreviewMiss(ctx); err != nil {
			return err
		}
		return opts.formatter(cmd).Success(result)
	})
}
