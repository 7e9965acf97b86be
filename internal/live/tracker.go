package live

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Handle identifies one registration with a Tracker.
type Handle uint64

type registration struct {
	id     uuid.UUID
	tables []string
	fn     func()
}

// Tracker maps table names to the subscriptions that depend on them and
// fans commit events out to them.
//
// Committers call Publish, which only enqueues. A single dispatcher
// goroutine drains the queue in FIFO order and calls Notify, so callbacks
// never run on the committing goroutine and are delivered in commit order.
type Tracker struct {
	mu      sync.Mutex
	next    Handle
	regs    map[Handle]*registration
	byTable map[string]map[Handle]struct{}

	queue  *eventQueue
	clock  *Clock
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock sets the clock used to stamp commit events.
func WithClock(c *Clock) Option {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// NewTracker creates a tracker and starts its dispatcher.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		regs:    make(map[Handle]*registration),
		byTable: make(map[string]map[Handle]struct{}),
		queue:   newEventQueue(),
		clock:   NewClock(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	t.logger = t.logger.With("component", "live")
	go t.dispatch()
	return t
}

// normalize lowercases and deduplicates table names.
func normalize(tables []string) []string {
	seen := make(map[string]struct{}, len(tables))
	out := make([]string, 0, len(tables))
	for _, name := range tables {
		name = strings.ToLower(name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Register subscribes fn to changes in any of tables. Table names are
// matched case-insensitively. fn is called at most once per commit event,
// however many of its tables that commit touched.
func (t *Tracker) Register(tables []string, fn func()) Handle {
	names := normalize(tables)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	h := t.next
	reg := &registration{id: uuid.Must(uuid.NewV7()), tables: names, fn: fn}
	t.regs[h] = reg
	for _, name := range names {
		set, ok := t.byTable[name]
		if !ok {
			set = make(map[Handle]struct{})
			t.byTable[name] = set
		}
		set[h] = struct{}{}
	}

	t.logger.Debug("registered", "subscription", reg.id, "tables", names)
	return h
}

// Unregister removes a registration. Unknown or already removed handles are
// ignored. Once Unregister returns, no Notify that starts afterwards will
// call the registration's callback.
func (t *Tracker) Unregister(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	reg, ok := t.regs[h]
	if !ok {
		return
	}
	delete(t.regs, h)
	for _, name := range reg.tables {
		set := t.byTable[name]
		delete(set, h)
		if len(set) == 0 {
			delete(t.byTable, name)
		}
	}
	t.logger.Debug("unregistered", "subscription", reg.id)
}

// Len returns the number of live registrations.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.regs)
}

// Notify calls, exactly once each, the callbacks of every registration
// that depends on any of tables. Matching registrations are snapshotted
// under the lock; callbacks run after it is released, so they may call
// Register or Unregister.
func (t *Tracker) Notify(tables ...string) {
	names := normalize(tables)

	t.mu.Lock()
	matched := make(map[Handle]struct{})
	for _, name := range names {
		for h := range t.byTable[name] {
			matched[h] = struct{}{}
		}
	}
	handles := make([]Handle, 0, len(matched))
	for h := range matched {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	fns := make([]func(), 0, len(handles))
	for _, h := range handles {
		fns = append(fns, t.regs[h].fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Publish enqueues a commit event for tables and returns its sequence
// number. It never blocks on subscribers. Returns 0 after Close.
func (t *Tracker) Publish(tables ...string) int64 {
	if len(tables) == 0 {
		return 0
	}
	seq := t.clock.Next()
	if !t.queue.Enqueue(Event{Seq: seq, Tables: normalize(tables)}) {
		return 0
	}
	return seq
}

// Flush blocks until every event published before the call has been
// delivered, or ctx is done.
func (t *Tracker) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !t.queue.Enqueue(Event{barrier: barrier}) {
		return nil
	}
	select {
	case <-barrier:
		return nil
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) dispatch() {
	defer close(t.done)
	for {
		_, open := <-t.queue.Wait()
		for {
			e, ok := t.queue.TryDequeue()
			if !ok {
				break
			}
			if e.barrier != nil {
				close(e.barrier)
				continue
			}
			t.logger.Debug("dispatch", "seq", e.Seq, "tables", e.Tables)
			t.Notify(e.Tables...)
		}
		if !open {
			return
		}
	}
}

// Close delivers any queued events, stops the dispatcher and waits for it
// to exit. Safe to call more than once.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		t.queue.Close()
	})
	<-t.done
}
