package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/oink/internal/store"
)

// CashOutOptions holds flags for the cashout command.
type CashOutOptions struct {
	*RootOptions
	Emoji string
}

// CashOutResult is the output of the cashout command.
type CashOutResult struct {
	CashOut        store.CashOut `json:"cash_out" yaml:"cash_out"`
	WorkoutsToEarn int           `json:"workouts_to_earn" yaml:"workouts_to_earn"`
}

func (r CashOutResult) renderText(w io.Writer) error {
	c := r.CashOut
	_, err := fmt.Fprintf(w, "%s %s for %s (%d workouts earned this!)\nBalance: %s -> %s\n",
		c.Emoji, c.Name, dollars(c.Amount), r.WorkoutsToEarn,
		dollars(c.BalanceBefore), dollars(c.BalanceAfter))
	return err
}

// NewCashOutCommand creates the cashout command.
func NewCashOutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CashOutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cashout <name> <amount>",
		Short: "Spend balance on a reward",
		Long: `Spend part of the balance on a reward.

The amount must be greater than zero and no more than the spendable balance
(check-in balance less earlier cash-outs and freeze spending).

Examples:
  oink cashout "New headphones" 45
  oink cashout Coffee 4.50 --emoji ☕`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCashOut(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Emoji, "emoji", "e", "", "emoji for the reward (default 🎁)")

	return cmd
}

func runCashOut(opts *CashOutOptions, name, rawAmount string, cmd *cobra.Command) error {
	amount, err := strconv.ParseFloat(strings.TrimPrefix(rawAmount, "$"), 64)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid amount %q", rawAmount), err)
	}

	return withLedger(cmd, opts.RootOptions, func(ctx context.Context, l *session) error {
		c, err := l.CashOut(ctx, name, amount, opts.Emoji)
		if err != nil {
			return err
		}
		return opts.formatter(cmd).Success(CashOutResult{CashOut: c, WorkoutsToEarn: c.WorkoutsToEarn()})
	})
}
