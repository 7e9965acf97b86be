package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/oink/internal/clock"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "text" | "json" | "yaml"
	Database string
	Prefs    string
	Config   string

	// Clock overrides the wall clock (for testing). Defaults to clock.Real().
	Clock clock.Clock

	// Location is the time zone days are counted in. Defaults to time.Local.
	Location *time.Location

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the oink CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "oink",
		Short: "oink - a piggy bank for workouts",
		Long: `A personal habit-and-reward ledger.

Every day you check in: a workout earns the exercise reward, a missed day
halves the balance. Cash out the balance on rewards, keep streaks alive with
freezes, and watch balances update live as the ledger changes.

Configuration is read from flags, then OINK_* environment variables
(OINK_DB, OINK_PREFS, OINK_FORMAT, OINK_VERBOSE), then an optional config
file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, opts); err != nil {
				return err
			}
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			if opts.Clock == nil {
				opts.Clock = clock.Real()
			}
			if opts.Location == nil {
				opts.Location = time.Local
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	flags.StringVar(&opts.Database, "db", "", "path to the ledger database (default $XDG_CONFIG_HOME/oink/oink.db)")
	flags.StringVar(&opts.Prefs, "prefs", "", "path to the preferences file (default $XDG_CONFIG_HOME/oink/prefs.yaml)")
	flags.StringVar(&opts.Config, "config", "", "config file (default $XDG_CONFIG_HOME/oink/config.yaml)")
	_ = v.BindPFlags(flags)

	// Add subcommands
	cmd.AddCommand(NewCheckInCommand(opts))
	cmd.AddCommand(NewCashOutCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewRewardsCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewStreakCommand(opts))
	cmd.AddCommand(NewFreezeCommand(opts))
	cmd.AddCommand(NewPrefsCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// loadConfig resolves the global options through viper: explicitly set
// flags win over OINK_* environment variables, which win over the config
// file.
func loadConfig(v *viper.Viper, opts *RootOptions) error {
	v.SetEnvPrefix("OINK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	dir := configDir()
	v.SetDefault("db", filepath.Join(dir, "oink.db"))
	v.SetDefault("prefs", filepath.Join(dir, "prefs.yaml"))
	v.SetDefault("format", "text")

	if opts.Config != "" {
		v.SetConfigFile(opts.Config)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.Config != "" || !errors.As(err, &notFound) {
			return WrapExitError(ExitCommandError, "failed to read config", err)
		}
	}

	opts.Database = v.GetString("db")
	opts.Prefs = v.GetString("prefs")
	opts.Format = v.GetString("format")
	opts.Verbose = v.GetBool("verbose")
	return nil
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "oink")
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
