package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/oink/internal/live"
	"github.com/roach88/oink/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Count int
}

// WatchEvent is one value emitted by a watched query.
type WatchEvent struct {
	Query string `json:"query" yaml:"query"`
	Value any    `json:"value" yaml:"value"`

	text string
}

func (e WatchEvent) renderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s: %s\n", e.Query, e.text)
	return err
}

// watchQueries maps a query name to a function starting its stream.
var watchQueries = map[string]func(ctx context.Context, l *session, emit func(WatchEvent) error) (func(ctx context.Context) error, error){
	"balance": func(ctx context.Context, l *session, emit func(WatchEvent) error) (func(context.Context) error, error) {
		s, err := l.WatchBalance(ctx)
		return pump(s, err, emit, func(v float64) WatchEvent {
			return WatchEvent{Query: "balance", Value: v, text: dollars(v)}
		})
	},
	"workouts": func(ctx context.Context, l *session, emit func(WatchEvent) error) (func(context.Context) error, error) {
		s, err := l.store.WatchWorkoutCount(ctx)
		return pump(s, err, emit, func(v int64) WatchEvent {
			return WatchEvent{Query: "workouts", Value: v, text: strconv.FormatInt(v, 10)}
		})
	},
	"cashed-out": func(ctx context.Context, l *session, emit func(WatchEvent) error) (func(context.Context) error, error) {
		s, err := l.store.WatchTotalCashedOut(ctx)
		return pump(s, err, emit, func(v float64) WatchEvent {
			return WatchEvent{Query: "cashed-out", Value: v, text: dollars(v)}
		})
	},
	"latest": func(ctx context.Context, l *session, emit func(WatchEvent) error) (func(context.Context) error, error) {
		s, err := l.store.WatchLatestCheckIn(ctx)
		return pump(s, err, emit, func(v *store.CheckIn) WatchEvent {
			if v == nil {
				return WatchEvent{Query: "latest", text: "none"}
			}
			verb := "missed"
			if v.DidExercise {
				verb = "worked out"
			}
			return WatchEvent{Query: "latest", Value: v, text: fmt.Sprintf("%s %s, %s", v.Date, verb, dollars(v.BalanceAfter))}
		})
	},
}

// pump returns a function that emits s's values until ctx ends or the
// stream stops. The first value is emitted before pump returns.
func pump[T any](s *live.Stream[T], err error, emit func(WatchEvent) error, render func(T) WatchEvent) (func(context.Context) error, error) {
	if err != nil {
		return nil, err
	}
	first, err := s.Next(context.Background())
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := emit(render(first)); err != nil {
		s.Close()
		return nil, err
	}
	return func(ctx context.Context) error {
		defer s.Close()
		for {
			v, err := s.Next(ctx)
			if err != nil {
				return err
			}
			if err := emit(render(v)); err != nil {
				return err
			}
		}
	}, nil
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [balance|workouts|cashed-out|latest]...",
		Short: "Print live query results as the ledger changes",
		Long: `Subscribe to live queries and print a new value after every change.

While watching, commands read from standard input are applied to the
ledger, one per line:
  checkin yes|no [date]
  cashout <name> <amount> [emoji]
  quit

Examples:
  oink watch
  oink watch balance workouts --format json
  echo "checkin yes" | oink watch balance --count 2`,
		ValidArgs:     []string{"balance", "workouts", "cashed-out", "latest"},
		Args:          cobra.OnlyValidArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"balance"}
			}
			return runWatch(opts, args, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "c", 0, "exit after n values in total (0 to run until interrupted)")

	return cmd
}

func runWatch(opts *WatchOptions, queries []string, cmd *cobra.Command) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	return withLedger(cmd, opts.RootOptions, func(ctx context.Context, l *session) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		f := opts.formatter(cmd)
		var (
			mu      sync.Mutex
			emitted int
		)
		emit := func(e WatchEvent) error {
			mu.Lock()
			defer mu.Unlock()
			if opts.Count > 0 && emitted >= opts.Count {
				return nil
			}
			emitted++
			if err := f.Success(e); err != nil {
				return err
			}
			if opts.Count > 0 && emitted >= opts.Count {
				cancel()
			}
			return nil
		}

		loops := make([]func(context.Context) error, 0, len(queries))
		for _, q := range queries {
			loop, err := watchQueries[q](ctx, l, emit)
			if err != nil {
				return err
			}
			loops = append(loops, loop)
		}

		applied := make(chan struct{})
		go func() {
			defer close(applied)
			applyCommands(ctx, readLines(ctx, cmd.InOrStdin()), l, opts, cancel)
		}()

		var wg sync.WaitGroup
		errs := make(chan error, len(loops))
		for _, loop := range loops {
			loop := loop
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- loop(ctx)
			}()
		}
		wg.Wait()
		close(errs)

		// The store closes after this returns; no command may still be
		// running by then.
		cancel()
		<-applied

		for err := range errs {
			if err != nil && ctx.Err() == nil {
				return err
			}
		}
		return nil
	})
}

// readLines sends r's lines until r is exhausted or ctx ends. A read
// blocked on r cannot be interrupted: for stdin the goroutine lingers
// until the next line or process exit, but never delivers after ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// applyCommands applies ledger commands, one per line, until lines is
// exhausted or ctx ends. Rejected commands are logged and skipped. Each
// command runs as a store.Future so cancellation stops waiting at once;
// applyCommands still returns only after the command has finished.
func applyCommands(ctx context.Context, lines <-chan string, l *session, opts *WatchOptions, quit func()) {
	for {
		var line string
		select {
		case <-ctx.Done():
			return
		case s, ok := <-lines:
			if !ok {
				return
			}
			line = s
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		f := store.Submit(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, applyCommand(ctx, l, fields, quit)
		})
		if _, err := f.Await(ctx); err != nil {
			if ctx.Err() != nil {
				<-f.Done()
				return
			}
			opts.logger.Warn("command rejected", "command", line, "error", err)
		}
	}
}

func applyCommand(ctx context.Context, l *session, fields []string, quit func()) error {
	switch fields[0] {
	case "quit", "exit":
		quit()
		return nil
	case "checkin":
		if len(fields) < 2 || len(fields) > 3 {
			return fmt.Errorf("usage: checkin yes|no [date]")
		}
		day := l.Today()
		if len(fields) == 3 {
			var err error
			if day, err = parseDay(fields[2], day); err != nil {
				return err
			}
		}
		didExercise, err := parseAnswer(fields[1])
		if err != nil {
			return err
		}
		_, err = l.RecordCheckIn(ctx, day, didExercise)
		return err
	case "cashout":
		if len(fields) < 3 || len(fields) > 4 {
			return fmt.Errorf("usage: cashout <name> <amount> [emoji]")
		}
		amount, err := strconv.ParseFloat(strings.TrimPrefix(fields[2], "$"), 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", fields[2])
		}
		emoji := ""
		if len(fields) == 4 {
			emoji = fields[3]
		}
		_, err = l.CashOut(ctx, fields[1], amount, emoji)
		return err
	}
	return fmt.Errorf("unknown command %q", fields[0])
}
