// Package prefs stores the user's ledger preferences in a YAML file.
//
// The file is validated against an embedded CUE schema on every load and
// save, and written atomically so a crash never leaves it half-written.
// Freeze spending lives here, not in the database: it is money spent
// outside the cash-out table that the spendable balance must account for.
package prefs

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/roach88/oink/internal/money"
	"github.com/roach88/oink/internal/store"
)

//go:embed schema.cue
var schemaCUE string

const (
	// DefaultExerciseReward is earned per workout unless configured.
	DefaultExerciseReward = 5.0

	// MinExerciseReward is the smallest configurable reward.
	MinExerciseReward = 0.01

	// MaxFreezes is how many streak freezes can be held at once.
	MaxFreezes = 2
)

// RewardOptions are the suggested per-workout rewards.
var RewardOptions = []float64{1, 2, 5, 10, 20}

// Preferences is the decoded preferences file.
type Preferences struct {
	ExerciseReward   float64      `json:"exercise_reward" yaml:"exercise_reward"`
	AvailableFreezes int          `json:"available_freezes" yaml:"available_freezes"`
	FrozenDates      []store.Date `json:"frozen_dates" yaml:"frozen_dates"`
	FreezeSpending   float64      `json:"freeze_spending" yaml:"freeze_spending"`
	RemindersEnabled bool         `json:"reminders_enabled" yaml:"reminders_enabled"`
	ReminderHour     int          `json:"reminder_hour" yaml:"reminder_hour"`
	ReminderMinute   int          `json:"reminder_minute" yaml:"reminder_minute"`
}

// Default returns the preferences of a fresh install.
func Default() Preferences {
	return Preferences{
		ExerciseReward: DefaultExerciseReward,
		FrozenDates:    []store.Date{},
		ReminderHour:   20,
	}
}

// FreezeCost is the price of one streak freeze: two workouts' reward.
func (p Preferences) FreezeCost() float64 {
	return money.Round2(p.ExerciseReward * 2)
}

// Frozen returns the frozen dates as a set.
func (p Preferences) Frozen() map[store.Date]bool {
	out := make(map[store.Date]bool, len(p.FrozenDates))
	for _, d := range p.FrozenDates {
		out[d] = true
	}
	return out
}

// fileFormat is the on-disk shape. Dates are ISO strings so the CUE schema
// can check them.
type fileFormat struct {
	ExerciseReward   float64  `json:"exercise_reward" yaml:"exercise_reward"`
	AvailableFreezes int      `json:"available_freezes" yaml:"available_freezes"`
	FrozenDates      []string `json:"frozen_dates" yaml:"frozen_dates"`
	FreezeSpending   float64  `json:"freeze_spending" yaml:"freeze_spending"`
	RemindersEnabled bool     `json:"reminders_enabled" yaml:"reminders_enabled"`
	ReminderHour     int      `json:"reminder_hour" yaml:"reminder_hour"`
	ReminderMinute   int      `json:"reminder_minute" yaml:"reminder_minute"`
}

func toFile(p Preferences) fileFormat {
	dates := make([]string, len(p.FrozenDates))
	for i, d := range p.FrozenDates {
		dates[i] = d.String()
	}
	return fileFormat{
		ExerciseReward:   p.ExerciseReward,
		AvailableFreezes: p.AvailableFreezes,
		FrozenDates:      dates,
		FreezeSpending:   p.FreezeSpending,
		RemindersEnabled: p.RemindersEnabled,
		ReminderHour:     p.ReminderHour,
		ReminderMinute:   p.ReminderMinute,
	}
}

func fromFile(f fileFormat) (Preferences, error) {
	p := Preferences{
		ExerciseReward:   f.ExerciseReward,
		AvailableFreezes: f.AvailableFreezes,
		FrozenDates:      make([]store.Date, 0, len(f.FrozenDates)),
		FreezeSpending:   f.FreezeSpending,
		RemindersEnabled: f.RemindersEnabled,
		ReminderHour:     f.ReminderHour,
		ReminderMinute:   f.ReminderMinute,
	}
	for _, s := range f.FrozenDates {
		d, err := store.ParseDate(s)
		if err != nil {
			return Preferences{}, err
		}
		p.FrozenDates = append(p.FrozenDates, d)
	}
	sortDates(p.FrozenDates)
	return p, nil
}

func sortDates(dates []store.Date) {
	slices.SortFunc(dates, func(a, b store.Date) int {
		switch {
		case a.Before(b):
			return -1
		case a.After(b):
			return 1
		}
		return 0
	})
}

// schema is the compiled #Preferences definition.
type schema struct {
	ctx *cue.Context
	def cue.Value
}

func compileSchema() (*schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaCUE, cue.Filename("prefs.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile preferences schema: %w", err)
	}
	return &schema{ctx: ctx, def: v.LookupPath(cue.ParsePath("#Preferences"))}, nil
}

// decode validates YAML source against the schema, filling defaults.
func (s *schema) decode(filename string, src []byte) (fileFormat, error) {
	f, err := cueyaml.Extract(filename, src)
	if err != nil {
		return fileFormat{}, fmt.Errorf("parse %s: %w", filename, err)
	}
	v := s.def.Unify(s.ctx.BuildFile(f))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fileFormat{}, fmt.Errorf("invalid preferences in %s: %w", filename, err)
	}
	var out fileFormat
	if err := v.Decode(&out); err != nil {
		return fileFormat{}, fmt.Errorf("decode %s: %w", filename, err)
	}
	return out, nil
}

// check validates an in-memory value against the schema.
func (s *schema) check(f fileFormat) error {
	v := s.def.Unify(s.ctx.Encode(f))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}
	return nil
}

// Validate reports whether p satisfies the preferences schema.
func Validate(p Preferences) error {
	s, err := compileSchema()
	if err != nil {
		return err
	}
	return s.check(toFile(p))
}

// File is a preferences file on disk. Load, Save and Update are safe for
// concurrent use within one process.
type File struct {
	path   string
	schema *schema
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures a File.
type Option func(*File)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *File) { f.logger = l }
}

// Open returns the preferences file at path. The file need not exist;
// it is created on the first Save.
func Open(path string, opts ...Option) (*File, error) {
	s, err := compileSchema()
	if err != nil {
		return nil, err
	}
	f := &File{
		path:   path,
		schema: s,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Load reads the preferences. A missing file yields Default().
func (f *File) Load() (Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *File) load() (Preferences, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Default(), nil
	}
	ff, err := f.schema.decode(f.path, data)
	if err != nil {
		return Preferences{}, err
	}
	return fromFile(ff)
}

// Save validates p and replaces the file atomically.
func (f *File) Save(p Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(p)
}

func (f *File) save(p Preferences) error {
	sortDates(p.FrozenDates)
	ff := toFile(p)
	if err := f.schema.check(ff); err != nil {
		return err
	}
	data, err := yaml.Marshal(ff)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	f.logger.Debug("preferences saved", "path", f.path)
	return nil
}

// Update loads the preferences, applies fn and saves the result. Nothing
// is written if fn returns an error.
func (f *File) Update(fn func(p *Preferences) error) (Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.load()
	if err != nil {
		return Preferences{}, err
	}
	if err := fn(&p); err != nil {
		return Preferences{}, err
	}
	if err := f.save(p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}
