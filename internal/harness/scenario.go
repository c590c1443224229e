package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/config"
)

// Scenario is one scripted run.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Session is an optional fixed session ID for persisted runs.
	Session string `yaml:"session,omitempty"`

	// Config is optional CUE text overriding the default configuration.
	Config string `yaml:"config,omitempty"`

	// Unsupported lists timing signals the simulated host lacks:
	// "long-task" and/or "interaction".
	Unsupported []string `yaml:"unsupported,omitempty"`

	// LowResolutionClock simulates a host without high-resolution time.
	LowResolutionClock bool `yaml:"low_resolution_clock,omitempty"`

	Components []ComponentDef `yaml:"components"`
	Steps      []Step         `yaml:"steps"`
	Assertions []Assertion    `yaml:"assertions,omitempty"`
}

// ComponentDef declares one component's hooks in call order: states
// first, then effects.
type ComponentDef struct {
	Name string `yaml:"name"`

	// File is the source file used in locations. Defaults to Name + ".tsx".
	File string `yaml:"file,omitempty"`

	States  []StateDef  `yaml:"states,omitempty"`
	Effects []EffectDef `yaml:"effects,omitempty"`
}

// StateDef declares a state hook.
type StateDef struct {
	Name    string `yaml:"name"`
	Initial any    `yaml:"initial"`
	Line    int    `yaml:"line"`
}

// EffectDef declares an effect hook.
type EffectDef struct {
	Line   int  `yaml:"line"`
	Layout bool `yaml:"layout,omitempty"`

	// Deps names states of the same component. Absent means every render.
	Deps []string `yaml:"deps"`

	// CostMS advances the clock inside the body to simulate work.
	CostMS int `yaml:"cost_ms,omitempty"`

	// Sets are state updates performed by the body, in order.
	Sets []SetDef `yaml:"sets,omitempty"`
}

// SetDef is one state update. Add, when non-zero, applies an updater
// that adds to the current integer value; otherwise Value is set.
type SetDef struct {
	State string `yaml:"state"`
	Value any    `yaml:"value,omitempty"`
	Add   int    `yaml:"add,omitempty"`
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	Mount       string           `yaml:"mount,omitempty"`
	Unmount     string           `yaml:"unmount,omitempty"`
	Render      string           `yaml:"render,omitempty"`
	Set         *SetStep         `yaml:"set,omitempty"`
	AdvanceMS   int              `yaml:"advance_ms,omitempty"`
	LongTask    *LongTaskStep    `yaml:"long_task,omitempty"`
	Interaction *InteractionStep `yaml:"interaction,omitempty"`
	Flush       bool             `yaml:"flush,omitempty"`
}

// SetStep updates state from outside any effect, like an event handler.
type SetStep struct {
	Component string `yaml:"component"`
	SetDef    `yaml:",inline"`
}

// LongTaskStep delivers one long-task signal.
type LongTaskStep struct {
	StartMS    int `yaml:"start_ms"`
	DurationMS int `yaml:"duration_ms"`
}

// InteractionStep delivers one interaction report.
type InteractionStep struct {
	ID                uint64 `yaml:"id"`
	Name              string `yaml:"name"`
	StartMS           int    `yaml:"start_ms"`
	ProcessingStartMS int    `yaml:"processing_start_ms"`
	ProcessingEndMS   int    `yaml:"processing_end_ms"`
	DurationMS        int    `yaml:"duration_ms"`
}

// Assertion checks the run's transcript or entries.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Text is matched as a substring of transcript lines.
	Text string `yaml:"text,omitempty"`

	// Texts must appear in this order (order).
	Texts []string `yaml:"texts,omitempty"`

	// Severity restricts count to entries of one severity.
	Severity string `yaml:"severity,omitempty"`

	// Count is the expected number of matches (count).
	Count int `yaml:"count,omitempty"`

	// Mode is the expected engine mode (mode).
	Mode string `yaml:"mode,omitempty"`
}

// Assertion type constants.
const (
	AssertContains    = "contains"
	AssertNotContains = "not_contains"
	AssertCount       = "count"
	AssertOrder       = "order"
	AssertMode        = "mode"
)

// LoadScenario reads, parses and validates a scenario file. Unknown
// fields are rejected so typos surface as errors.
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

func (c ComponentDef) file() string {
	if c.File != "" {
		return c.File
	}
	return c.Name + ".tsx"
}

func (c ComponentDef) hasState(name string) bool {
	for _, s := range c.States {
		if s.Name == name {
			return true
		}
	}
	return false
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Config != "" {
		if _, err := config.Parse(s.Name+".cue", []byte(s.Config)); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	for i, sig := range s.Unsupported {
		if sig != signalLongTask && sig != signalInteraction {
			return fmt.Errorf("unsupported[%d]: unknown signal %q", i, sig)
		}
	}

	components := make(map[string]ComponentDef, len(s.Components))
	for i, c := range s.Components {
		if c.Name == "" {
			return fmt.Errorf("components[%d]: name is required", i)
		}
		if _, dup := components[c.Name]; dup {
			return fmt.Errorf("components[%d]: duplicate component %q", i, c.Name)
		}
		components[c.Name] = c
		if err := validateComponent(c); err != nil {
			return fmt.Errorf("components[%d]: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step, components); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateComponent(c ComponentDef) error {
	seen := map[string]bool{}
	for i, st := range c.States {
		if st.Name == "" {
			return fmt.Errorf("states[%d]: name is required", i)
		}
		if seen[st.Name] {
			return fmt.Errorf("states[%d]: duplicate state %q", i, st.Name)
		}
		seen[st.Name] = true
	}
	for i, e := range c.Effects {
		for _, d := range e.Deps {
			if !seen[d] {
				return fmt.Errorf("effects[%d]: dep %q is not a state of %s", i, d, c.Name)
			}
		}
		for j, set := range e.Sets {
			if !seen[set.State] {
				return fmt.Errorf("effects[%d].sets[%d]: unknown state %q", i, j, set.State)
			}
		}
		if e.CostMS < 0 {
			return fmt.Errorf("effects[%d]: cost_ms must be non-negative", i)
		}
	}
	return nil
}

func validateStep(step Step, components map[string]ComponentDef) error {
	set := 0
	count := func(ok bool) {
		if ok {
			set++
		}
	}
	count(step.Mount != "")
	count(step.Unmount != "")
	count(step.Render != "")
	count(step.Set != nil)
	count(step.AdvanceMS != 0)
	count(step.LongTask != nil)
	count(step.Interaction != nil)
	count(step.Flush)
	if set != 1 {
		return fmt.Errorf("exactly one action is required, got %d", set)
	}

	for _, name := range []string{step.Mount, step.Unmount, step.Render} {
		if name == "" {
			continue
		}
		if _, ok := components[name]; !ok {
			return fmt.Errorf("unknown component %q", name)
		}
	}
	if step.Set != nil {
		c, ok := components[step.Set.Component]
		if !ok {
			return fmt.Errorf("set: unknown component %q", step.Set.Component)
		}
		if !c.hasState(step.Set.State) {
			return fmt.Errorf("set: unknown state %q in %s", step.Set.State, c.Name)
		}
	}
	if step.AdvanceMS < 0 {
		return fmt.Errorf("advance_ms must be positive")
	}
	if lt := step.LongTask; lt != nil && lt.DurationMS < 0 {
		return fmt.Errorf("long_task: duration_ms must be non-negative")
	}
	if in := step.Interaction; in != nil && in.ProcessingEndMS < in.ProcessingStartMS {
		return fmt.Errorf("interaction: processing_end_ms precedes processing_start_ms")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertContains, AssertNotContains:
		if a.Text == "" {
			return fmt.Errorf("text is required for %s", a.Type)
		}
	case AssertCount:
		if a.Text == "" && a.Severity == "" {
			return fmt.Errorf("text or severity is required for count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative")
		}
	case AssertOrder:
		if len(a.Texts) == 0 {
			return fmt.Errorf("texts list is required for order")
		}
	case AssertMode:
		if a.Mode == "" {
			return fmt.Errorf("mode is required for mode")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
