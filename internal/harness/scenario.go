package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/oink/internal/store"
)

// Scenario defines a ledger contract test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Today is the ISO date the scenario's clock starts on.
	Today string `yaml:"today"`

	// Reward is the per-workout reward. Zero keeps the default.
	Reward float64 `yaml:"reward,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one ledger operation.
type Step struct {
	Action string `yaml:"action"`

	// Date or Dates select the day(s) a check-in or freeze applies to.
	Date  string   `yaml:"date,omitempty"`
	Dates []string `yaml:"dates,omitempty"`

	// Name, Amount and Emoji describe a cash-out. Amount is also the new
	// reward for set_reward.
	Name   string  `yaml:"name,omitempty"`
	Amount float64 `yaml:"amount,omitempty"`
	Emoji  string  `yaml:"emoji,omitempty"`

	// Days is how far advance moves the clock.
	Days int `yaml:"days,omitempty"`

	// Expect is the expected outcome. Empty means OutcomeOK.
	Expect string `yaml:"expect,omitempty"`
}

// Step actions.
const (
	ActionWorkout   = "workout"
	ActionMiss      = "miss"
	ActionCashOut   = "cashout"
	ActionBuyFreeze = "buy_freeze"
	ActionUseFreeze = "use_freeze"
	ActionSetReward = "set_reward"
	ActionAdvance   = "advance"
	ActionReset     = "reset"
)

var actions = []string{
	ActionWorkout, ActionMiss, ActionCashOut, ActionBuyFreeze,
	ActionUseFreeze, ActionSetReward, ActionAdvance, ActionReset,
}

// Assertion validates the ledger after all steps ran.
type Assertion struct {
	Type string `yaml:"type"`

	// Date selects the check-in for check_in, and is the expected day for
	// missed_day.
	Date string `yaml:"date,omitempty"`

	Value     *float64 `yaml:"value,omitempty"`
	Count     *int     `yaml:"count,omitempty"`
	Exercised *bool    `yaml:"exercised,omitempty"`
}

// Assertion type constants.
const (
	AssertBalance        = "balance"
	AssertCheckInBalance = "check_in_balance"
	AssertCashedOut      = "cashed_out"
	AssertStreak         = "streak"
	AssertWorkouts       = "workouts"
	AssertFreezes        = "freezes"
	AssertCheckIn        = "check_in"
	AssertMissedDay      = "missed_day"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := store.ParseDate(s.Today); err != nil {
		return fmt.Errorf("today: %w", err)
	}
	if s.Reward < 0 {
		return fmt.Errorf("reward must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if !slices.Contains(actions, step.Action) {
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
		if step.Date != "" && len(step.Dates) > 0 {
			return fmt.Errorf("steps[%d]: date and dates are mutually exclusive", i)
		}
		if step.Expect != "" && !slices.Contains(outcomes, step.Expect) {
			return fmt.Errorf("steps[%d]: unknown outcome %q", i, step.Expect)
		}
		switch step.Action {
		case ActionCashOut:
			if step.Name == "" && step.Expect == "" {
				return fmt.Errorf("steps[%d]: name is required for cashout", i)
			}
		case ActionAdvance:
			if step.Days <= 0 {
				return fmt.Errorf("steps[%d]: days must be positive for advance", i)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertBalance, AssertCheckInBalance, AssertCashedOut:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for %s", index, a.Type)
		}
	case AssertStreak, AssertWorkouts, AssertFreezes:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
	case AssertCheckIn:
		if a.Date == "" {
			return fmt.Errorf("assertions[%d]: date is required for check_in", index)
		}
		if a.Value == nil && a.Exercised == nil {
			return fmt.Errorf("assertions[%d]: value or exercised is required for check_in", index)
		}
	case AssertMissedDay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// resolveDate interprets s relative to today.
func resolveDate(s string, today store.Date) (store.Date, error) {
	switch strings.ToLower(s) {
	case "", "today":
		return today, nil
	case "yesterday":
		return today.AddDays(-1), nil
	}
	if strings.HasPrefix(s, "-") {
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 0 {
			return store.Date{}, fmt.Errorf("invalid relative date %q", s)
		}
		return today.AddDays(-n), nil
	}
	return store.ParseDate(s)
}
