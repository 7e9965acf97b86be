package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/oink/internal/ledger"
	"github.com/roach88/oink/internal/prefs"
	"github.com/roach88/oink/internal/store"
)

// session is an open ledger for the duration of one command.
type session struct {
	*ledger.Ledger
	store *store.Store
}

func (s *session) Close() error {
	return s.store.Close()
}

// openLedger opens the database and preferences file named by opts,
// creating the parent directories on first use.
func openLedger(ctx context.Context, opts *RootOptions) (*session, error) {
	for _, p := range []string{opts.Database, opts.Prefs} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create data directory", err)
		}
	}

	opts.logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(ctx, opts.Database, store.WithLogger(opts.logger))
	if err != nil {
		if store.IsSchemaMismatch(err) {
			return nil, WrapExitError(ExitCommandError, "database schema does not match", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	pf, err := prefs.Open(opts.Prefs, prefs.WithLogger(opts.logger))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open preferences", err)
	}

	l := ledger.New(st, pf,
		ledger.WithClock(opts.Clock),
		ledger.WithLocation(opts.Location),
		ledger.WithLogger(opts.logger),
	)
	return &session{Ledger: l, store: st}, nil
}

// withLedger runs fn against an open ledger and maps its error to an exit
// code, reporting structured errors in the configured format.
func withLedger(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, l *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openLedger(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := fn(ctx, s); err != nil {
		return reportError(opts.formatter(cmd), err)
	}
	return nil
}

var rejections = []error{
	ledger.ErrFutureDate,
	ledger.ErrInvalidAmount,
	ledger.ErrEmptyName,
	ledger.ErrInsufficientBalance,
	ledger.ErrNoFreezes,
	ledger.ErrMaxFreezes,
	ledger.ErrAlreadyFrozen,
}

// reportError writes err in structured formats and classifies it.
// Ledger rule rejections exit 1; anything else is a command error.
func reportError(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	code, exit := CodeStorage, ExitCommandError
	for _, r := range rejections {
		if errors.Is(err, r) {
			code, exit = CodeRejected, ExitFailure
			break
		}
	}
	if store.IsSchemaMismatch(err) {
		code = CodeSchema
	}
	if f.Format != "text" {
		_ = f.Error(code, err.Error(), nil)
	}
	return WrapExitError(exit, "command failed", err)
}

// parseDay parses "today", "yesterday", "-N" (N days ago) or an ISO date.
func parseDay(s string, today store.Date) (store.Date, error) {
	switch s = strings.TrimSpace(strings.ToLower(s)); s {
	case "", "today":
		return today, nil
	case "yesterday":
		return today.AddDays(-1), nil
	}
	if strings.HasPrefix(s, "-") {
		var n int
		if _, err := fmt.Sscanf(s, "-%d", &n); err == nil && n >= 0 {
			return today.AddDays(-n), nil
		}
	}
	d, err := store.ParseDate(s)
	if err != nil {
		return store.Date{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid date %q: use YYYY-MM-DD, today, yesterday or -N", s))
	}
	return d, nil
}

// parseAnswer parses a check-in answer: yes/y or no/n, in any case.
func parseAnswer(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return false, NewExitError(ExitCommandError, fmt.Sprintf("invalid answer %q: use yes or no", s))
}

func dollars(f float64) string {
	return fmt.Sprintf("$%.2f", f)
}
