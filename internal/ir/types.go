package ir

import (
	"fmt"
	"time"
)

// Severity classifies a log entry and selects its output channel.
type Severity string

const (
	// SeverityStateChange marks a state mutation performed inside an effect.
	SeverityStateChange Severity = "state-change"

	// SeverityEffectRun marks an effect that ran without mutating state.
	// These entries only ever print inside a group.
	SeverityEffectRun Severity = "effect-run"

	// SeveritySlowEffect marks an effect whose body exceeded the slow threshold.
	SeveritySlowEffect Severity = "slow-effect"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityStateChange, SeverityEffectRun, SeveritySlowEffect:
		return true
	}
	return false
}

// Metadata is the call-site information injected by the source rewriter.
// The core treats every field as opaque text.
type Metadata struct {
	Location  string `json:"location"`
	Component string `json:"component"`
	StateName string `json:"state_name,omitempty"`
}

// GroupKey returns the duplicate-counting key for this call site.
func (m Metadata) GroupKey() string {
	return GroupKey(m.Location, m.Component)
}

// GroupKey composes the "location:component" key used for i/N ordinals.
func GroupKey(location, component string) string {
	return location + ":" + component
}

// EffectContext describes the effect whose body is currently executing.
//
// Changed is nil on the initial run and a non-nil (possibly empty) list of
// dependency names on every later run.
type EffectContext struct {
	Location         string   `json:"location"`
	Component        string   `json:"component"`
	Kind             string   `json:"kind,omitempty"`
	Changed          []string `json:"changed"`
	MutationOccurred bool     `json:"mutation_occurred"`
}

// Entry is a single emitted diagnostic record.
type Entry struct {
	// Seq orders entries by emission; assigned by the engine.
	Seq       int64         `json:"seq"`
	Message   string        `json:"message"`
	Timestamp time.Duration `json:"timestamp"`
	Severity  Severity      `json:"severity"`
	Location  string        `json:"location"`
	Component string        `json:"component"`
}

// GroupKey returns the entry's duplicate-counting key.
func (e Entry) GroupKey() string {
	return GroupKey(e.Location, e.Component)
}

// WindowSource identifies which timing signal produced a window.
type WindowSource string

const (
	WindowSourceLongTask    WindowSource = "long-task"
	WindowSourceInteraction WindowSource = "interaction"
)

// Window is a closed timing interval [Start, End] used once to partition
// the log buffer.
type Window struct {
	Start  time.Duration `json:"start"`
	End    time.Duration `json:"end"`
	Label  string        `json:"label"`
	Source WindowSource  `json:"source"`

	// Populated after partitioning.
	Mutations int `json:"mutations"`
	Others    int `json:"others"`
}

// Duration returns End-Start.
func (w Window) Duration() time.Duration {
	return w.End - w.Start
}

// Contains reports whether ts falls inside the window, bounds inclusive.
func (w Window) Contains(ts time.Duration) bool {
	return ts >= w.Start && ts <= w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s[%s..%s]", w.Source, w.Start, w.End)
}

// LongTask is a completed main-thread stall reported by the host.
type LongTask struct {
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
}

// InteractionReport is one completed input-processing report.
// Several reports may share an InteractionID; zero means non-interactive.
type InteractionReport struct {
	InteractionID   uint64        `json:"interaction_id"`
	Name            string        `json:"name"`
	Start           time.Duration `json:"start"`
	ProcessingStart time.Duration `json:"processing_start"`
	ProcessingEnd   time.Duration `json:"processing_end"`
	Duration        time.Duration `json:"duration"`
}
