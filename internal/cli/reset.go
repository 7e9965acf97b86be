package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Yes bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every check-in and cash-out",
		Long: `Delete every check-in and cash-out and clear streak freezes.
The exercise reward is kept. This cannot be undone.

Example:
  oink reset --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Yes {
				return NewExitError(ExitCommandError, "refusing to reset without --yes")
			}
			return withLedger(cmd, opts.RootOptions, func(ctx context.Context, l *session) error {
				if err := l.Reset(ctx); err != nil {
					return err
				}
				return opts.formatter(cmd).Success("Ledger reset.")
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm deleting all data")

	return cmd
}
