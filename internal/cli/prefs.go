package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/oink/internal/prefs"
)

// PrefsResult is the output of the prefs subcommands.
type PrefsResult struct {
	Path        string            `json:"path" yaml:"path"`
	Preferences prefs.Preferences `json:"preferences" yaml:"preferences"`
	FreezeCost  float64           `json:"freeze_cost" yaml:"freeze_cost"`
}

func (r PrefsResult) renderText(w io.Writer) error {
	p := r.Preferences
	frozen := make([]string, len(p.FrozenDates))
	for i, d := range p.FrozenDates {
		frozen[i] = d.String()
	}
	reminders := "off"
	if p.RemindersEnabled {
		reminders = fmt.Sprintf("%02d:%02d", p.ReminderHour, p.ReminderMinute)
	}
	_, err := fmt.Fprintf(w, `Preferences (%s)
  exercise reward   %s
  freeze cost       %s
  freezes available %d
  frozen days       %s
  freeze spending   %s
  reminders         %s
`, r.Path, dollars(p.ExerciseReward), dollars(r.FreezeCost), p.AvailableFreezes,
		strings.Join(frozen, ", "), dollars(p.FreezeSpending), reminders)
	return err
}

// NewPrefsCommand creates the prefs command and its subcommands.
func NewPrefsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Show preferences",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, rootOpts, func(ctx context.Context, l *session) error {
				p, err := l.Prefs().Load()
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(prefsResult(l, p))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-reward <amount>",
		Short: "Set the reward earned per workout",
		Long: fmt.Sprintf(`Set the reward earned per workout. Existing balances are not recomputed.

Amounts are rounded to cents; the minimum is %.2f. Suggested: %v.`, prefs.MinExerciseReward, prefs.RewardOptions),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(strings.TrimPrefix(args[0], "$"), 64)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid amount %q", args[0]), err)
			}
			return withLedger(cmd, rootOpts, func(ctx context.Context, l *session) error {
				p, err := l.SetExerciseReward(amount)
				if err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(prefsResult(l, p))
			})
		},
	})

	return cmd
}

func prefsResult(l *session, p prefs.Preferences) PrefsResult {
	return PrefsResult{Path: l.Prefs().Path(), Preferences: p, FreezeCost: p.FreezeCost()}
}
