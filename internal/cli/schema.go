package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/oink/internal/store"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Check bool
}

// SchemaResult is the output of the schema command.
type SchemaResult struct {
	Version      int    `json:"version" yaml:"version"`
	IdentityHash string `json:"identity_hash" yaml:"identity_hash"`
	Fingerprint  string `json:"fingerprint" yaml:"fingerprint"`
	Database     string `json:"database,omitempty" yaml:"database,omitempty"`
	Matches      *bool  `json:"matches,omitempty" yaml:"matches,omitempty"`
}

func (r SchemaResult) renderText(w io.Writer) error {
	fmt.Fprintf(w, "Schema version %d\nIdentity %s\n\n%s", r.Version, r.IdentityHash, r.Fingerprint)
	if r.Matches != nil {
		fmt.Fprintf(w, "\n%s: schema matches\n", r.Database)
	}
	return nil
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the expected database schema",
		Long: `Print the canonical schema fingerprint and identity hash this build
expects. With --check, open the database and verify it matches; a mismatch
exits with code 2.

Examples:
  oink schema
  oink schema --check --db ./oink.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "verify the database matches the expected schema")

	return cmd
}

func runSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	result := SchemaResult{
		Version:      store.Expected.Version,
		IdentityHash: store.Expected.IdentityHash(),
		Fingerprint:  store.Expected.Fingerprint(),
	}
	if !opts.Check {
		return opts.formatter(cmd).Success(result)
	}

	return withLedger(cmd, opts.RootOptions, func(ctx context.Context, l *session) error {
		// Open already rejected a mismatch; this reports what it found.
		catalog, err := l.store.Catalog(ctx)
		if err != nil {
			return err
		}
		known := store.Schema{Version: catalog.Version}
		for _, t := range catalog.Tables {
			if t.Name == store.TableCheckIns || t.Name == store.TableCashOuts {
				known.Tables = append(known.Tables, t)
			}
		}
		matches := known.Fingerprint() == result.Fingerprint && known.Version == result.Version
		result.Database = l.store.Path()
		result.Matches = &matches
		return opts.formatter(cmd).Success(result)
	})
}
