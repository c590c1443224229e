package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/cascade/internal/config"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/hooks"
	"github.com/roach88/cascade/internal/host"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/printer"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/testutil"
	"github.com/roach88/cascade/internal/tracker"
)

const (
	signalLongTask    = "long-task"
	signalInteraction = "interaction"
)

// Result is the outcome of one scenario run.
type Result struct {
	Scenario   string
	SessionID  string
	Mode       engine.Mode
	Transcript string
	Entries    []ir.Entry
	Windows    []ir.Window
	Errors     []string
}

// Passed reports whether every step and assertion succeeded.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

// AddError records a failure.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// RecordEntry implements engine.Recorder.
func (r *Result) RecordEntry(e ir.Entry) {
	r.Entries = append(r.Entries, e)
}

// RecordWindow implements engine.Recorder.
func (r *Result) RecordWindow(w ir.Window) {
	r.Windows = append(r.Windows, w)
}

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	store     *store.Store
	generator store.SessionGenerator
	logger    *slog.Logger
	ctx       context.Context
	config    *config.Config
}

// WithStore persists the run's entries and windows as a new session.
func WithStore(st *store.Store, gen store.SessionGenerator) RunOption {
	return func(c *runConfig) {
		c.store = st
		c.generator = gen
	}
}

// WithLogger sets the diagnostic logger. Logs are discarded by default.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = l }
}

// WithConfig sets the configuration used when the scenario carries none.
func WithConfig(cfg config.Config) RunOption {
	return func(c *runConfig) { c.config = &cfg }
}

// WithContext sets the context for store writes.
func WithContext(ctx context.Context) RunOption {
	return func(c *runConfig) { c.ctx = ctx }
}

// Harness holds the wiring for one run.
type Harness struct {
	scenario   *Scenario
	clock      *testutil.ManualClock
	feed       *engine.Feed
	engine     *engine.Engine
	inst       *hooks.Instrumentation
	rt         *host.Runtime
	components map[string]ComponentDef
	mounted    map[string]*host.Component
	setters    map[string]map[string]*hooks.Setter
	logger     *slog.Logger
}

// Run executes scenario and evaluates its assertions. Step failures and
// assertion failures are reported in Result.Errors; the returned error is
// reserved for setup problems.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	rc := runConfig{ctx: context.Background()}
	for _, opt := range opts {
		opt(&rc)
	}
	if rc.logger == nil {
		rc.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg := config.Default()
	if rc.config != nil {
		cfg = *rc.config
	}
	if scenario.Config != "" {
		var err error
		cfg, err = config.Parse(scenario.Name+".cue", []byte(scenario.Config))
		if err != nil {
			return nil, fmt.Errorf("scenario config: %w", err)
		}
	}

	result := &Result{Scenario: scenario.Name, SessionID: scenario.Session}

	h := &Harness{
		scenario:   scenario,
		clock:      testutil.NewManualClock(),
		components: make(map[string]ComponentDef, len(scenario.Components)),
		mounted:    make(map[string]*host.Component),
		setters:    make(map[string]map[string]*hooks.Setter),
		logger:     rc.logger,
	}
	if scenario.LowResolutionClock {
		h.clock = testutil.NewLowResolutionClock()
	}
	for _, c := range scenario.Components {
		h.components[c.Name] = c
	}

	feedOpts := cfg.FeedOptions()
	for _, sig := range scenario.Unsupported {
		switch sig {
		case signalLongTask:
			feedOpts = append(feedOpts, engine.WithoutLongTasks())
		case signalInteraction:
			feedOpts = append(feedOpts, engine.WithoutInteractions())
		}
	}
	h.feed = engine.NewFeed(feedOpts...)

	engOpts := append(cfg.EngineOptions(),
		engine.WithClock(h.clock),
		engine.WithSignals(h.feed),
		engine.WithLogger(h.logger),
		engine.WithRecorder(result),
	)
	if rc.store != nil {
		rec, err := h.openSession(rc, cfg, result)
		if err != nil {
			return nil, err
		}
		engOpts = append(engOpts, engine.WithRecorder(rec))
	}

	var transcript bytes.Buffer
	h.engine = engine.New(printer.NewSingleWriterConsole(&transcript), engOpts...)
	result.Mode = h.engine.Mode()

	hookOpts := append(cfg.HookOptions(),
		hooks.WithClock(h.clock),
		hooks.WithTracker(tracker.New()),
		hooks.WithLogger(h.logger),
	)
	h.inst = hooks.New(h.engine, hookOpts...)
	h.rt = host.NewRuntime(host.WithLogger(h.logger))

	for i, step := range scenario.Steps {
		if err := h.step(step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			break
		}
	}
	h.engine.Close()

	result.Transcript = transcript.String()
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) openSession(rc runConfig, cfg config.Config, result *Result) (*store.Recorder, error) {
	if result.SessionID == "" {
		gen := rc.generator
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		result.SessionID = gen.Generate()
	}
	err := rc.store.CreateSession(rc.ctx, store.Session{
		ID:        result.SessionID,
		Name:      h.scenario.Name,
		Mode:      cfg.Mode,
		StartedAt: time.Now(),
		Meta:      map[string]string{"description": h.scenario.Description},
	})
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return rc.store.Recorder(rc.ctx, result.SessionID, h.logger), nil
}

func (h *Harness) step(s Step) error {
	switch {
	case s.Mount != "":
		def := h.components[s.Mount]
		if _, ok := h.mounted[s.Mount]; ok {
			return fmt.Errorf("mount: %s is already mounted", s.Mount)
		}
		h.mounted[s.Mount] = h.rt.Mount(def.Name, h.renderer(def))
		return h.rt.Flush()

	case s.Unmount != "":
		c, err := h.component(s.Unmount)
		if err != nil {
			return err
		}
		c.Unmount()
		delete(h.mounted, s.Unmount)
		delete(h.setters, s.Unmount)
		return nil

	case s.Render != "":
		c, err := h.component(s.Render)
		if err != nil {
			return err
		}
		c.Render()
		return h.rt.Flush()

	case s.Set != nil:
		if _, err := h.component(s.Set.Component); err != nil {
			return err
		}
		apply(h.setters[s.Set.Component][s.Set.State], s.Set.SetDef)
		return h.rt.Flush()

	case s.AdvanceMS != 0:
		h.clock.Advance(ms(s.AdvanceMS))
		return nil

	case s.LongTask != nil:
		h.feed.PublishLongTasks(ir.LongTask{
			Start:    ms(s.LongTask.StartMS),
			Duration: ms(s.LongTask.DurationMS),
		})
		return nil

	case s.Interaction != nil:
		in := s.Interaction
		h.feed.PublishInteractions(ir.InteractionReport{
			InteractionID:   in.ID,
			Name:            in.Name,
			Start:           ms(in.StartMS),
			ProcessingStart: ms(in.ProcessingStartMS),
			ProcessingEnd:   ms(in.ProcessingEndMS),
			Duration:        ms(in.DurationMS),
		})
		return nil

	case s.Flush:
		h.engine.Flush()
		return nil
	}
	return fmt.Errorf("empty step")
}

func (h *Harness) component(name string) (*host.Component, error) {
	c, ok := h.mounted[name]
	if !ok {
		return nil, fmt.Errorf("%s is not mounted", name)
	}
	return c, nil
}

// renderer builds the render function for def: state hooks first, then
// effects, always in declaration order.
func (h *Harness) renderer(def ComponentDef) func(*host.Component) {
	file := def.file()
	return func(c *host.Component) {
		values := make(map[string]any, len(def.States))
		setters := make(map[string]*hooks.Setter, len(def.States))
		for _, st := range def.States {
			loc := fmt.Sprintf("%s:%d", file, st.Line)
			v, set := h.inst.UseState(c, st.Initial, loc, def.Name, st.Name)
			values[st.Name] = v
			setters[st.Name] = set
		}
		h.setters[def.Name] = setters

		for _, eff := range def.Effects {
			loc := fmt.Sprintf("%s:%d", file, eff.Line)
			var deps []any
			if eff.Deps != nil {
				deps = make([]any, len(eff.Deps))
				for i, name := range eff.Deps {
					deps[i] = values[name]
				}
			}
			body := h.effectBody(eff, setters)
			if eff.Layout {
				h.inst.UseLayoutEffect(c, body, deps, loc, def.Name, eff.Deps)
			} else {
				h.inst.UseEffect(c, body, deps, loc, def.Name, eff.Deps)
			}
		}
	}
}

func (h *Harness) effectBody(eff EffectDef, setters map[string]*hooks.Setter) func() func() {
	return func() func() {
		if eff.CostMS > 0 {
			h.clock.Advance(ms(eff.CostMS))
		}
		for _, set := range eff.Sets {
			apply(setters[set.State], set)
		}
		return nil
	}
}

func apply(s *hooks.Setter, set SetDef) {
	if set.Add != 0 {
		add := set.Add
		s.Call(func(v any) any {
			n, _ := v.(int)
			return n + add
		})
		return
	}
	s.Call(set.Value)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
