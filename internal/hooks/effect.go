package hooks

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cascade/internal/deps"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/tracker"
)

// DefaultSlowThreshold is the body duration at or above which an effect
// run is reported as slow.
const DefaultSlowThreshold = 8 * time.Millisecond

const (
	KindEffect       = "useEffect"
	KindLayoutEffect = "useLayoutEffect"
)

// Emitter receives instrumentation entries. *engine.Engine satisfies it.
type Emitter interface {
	Emit(ir.Entry)
}

// clockSource is implemented by emitters that own a clock, such as
// *engine.Engine. Timing effects on it keeps one time origin per run.
type clockSource interface {
	Clock() engine.Clock
}

// Site identifies one instrumented effect in source.
type Site struct {
	Location  string
	Component string
	Kind      string
	DepNames  []string
}

// EffectMemory is the per-instance state an effect keeps across runs.
// The zero value is an effect that has not run yet.
type EffectMemory struct {
	prev []any
	ran  bool
}

// Instrumentor wraps effect bodies and owns the shared emitter, tracker
// and clock used by Tracked wrappers.
type Instrumentor struct {
	emitter Emitter
	tracker *tracker.Tracker
	clock   engine.Clock
	slow    time.Duration
	logger  *slog.Logger
}

// Option configures an Instrumentor.
type Option func(*Instrumentor)

// WithTracker sets the execution context tracker. Defaults to tracker.Default.
func WithTracker(t *tracker.Tracker) Option {
	return func(in *Instrumentor) { in.tracker = t }
}

// WithClock sets the clock used to time effect bodies. Defaults to the
// emitter's clock when it has one, else a new engine.SystemClock.
func WithClock(c engine.Clock) Option {
	return func(in *Instrumentor) { in.clock = c }
}

// WithSlowThreshold overrides DefaultSlowThreshold.
func WithSlowThreshold(d time.Duration) Option {
	return func(in *Instrumentor) { in.slow = d }
}

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(in *Instrumentor) { in.logger = l }
}

// NewInstrumentor creates an Instrumentor that emits to e.
func NewInstrumentor(e Emitter, opts ...Option) *Instrumentor {
	in := &Instrumentor{
		emitter: e,
		tracker: tracker.Default,
		slow:    DefaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.clock == nil {
		if cs, ok := e.(clockSource); ok {
			in.clock = cs.Clock()
		} else {
			in.clock = engine.NewSystemClock()
		}
	}
	if in.logger == nil {
		in.logger = slog.Default()
	}
	return in
}

// Tracker returns the execution context tracker in use.
func (in *Instrumentor) Tracker() *tracker.Tracker {
	return in.tracker
}

// Run executes body as one run of the effect at site with the given
// dependency values. The body runs inside a fresh execution context; the
// previous context is restored however the body exits, and a panic
// propagates after the restore with no entries emitted.
//
// On normal completion a slow-effect entry is emitted when the body took
// at least the slow threshold, and an effect-run entry when the body made
// no tracked state change.
func (in *Instrumentor) Run(mem *EffectMemory, site Site, cur []any, body func() func()) func() {
	var changed []string
	if mem.ran {
		changed = deps.Diff(mem.prev, cur, site.DepNames)
		if changed == nil {
			changed = []string{}
		}
	}
	mem.ran = true
	mem.prev = snapshot(cur)

	ctx := &ir.EffectContext{
		Location:  site.Location,
		Component: site.Component,
		Kind:      kindOrDefault(site.Kind),
		Changed:   changed,
	}

	var cleanup func()
	start := in.clock.Now()
	in.tracker.Run(ctx, func() { cleanup = body() })
	elapsed := in.clock.Now() - start

	if elapsed >= in.slow {
		in.emit(ir.Entry{
			Severity:  ir.SeveritySlowEffect,
			Location:  site.Location,
			Component: site.Component,
			Message: fmt.Sprintf("%s in %s (%s) took %s",
				ctx.Kind, site.Component, site.Location, formatMillis(elapsed)),
		})
	}
	if !ctx.MutationOccurred {
		in.emit(ir.Entry{
			Severity:  ir.SeverityEffectRun,
			Location:  site.Location,
			Component: site.Component,
			Message: fmt.Sprintf("%s in %s (%s) ran: %s",
				ctx.Kind, site.Component, site.Location, deps.Reason(changed)),
		})
	}
	return cleanup
}

func (in *Instrumentor) emit(e ir.Entry) {
	defer func() {
		if r := recover(); r != nil {
			in.logger.Warn("emit failed", "severity", e.Severity, "panic", r)
		}
	}()
	in.emitter.Emit(e)
}

// snapshot copies cur so later mutation of the caller's slice does not
// rewrite history. nil stays nil; empty stays non-nil.
func snapshot(cur []any) []any {
	if cur == nil {
		return nil
	}
	out := make([]any, len(cur))
	copy(out, cur)
	return out
}

func kindOrDefault(kind string) string {
	if kind == "" {
		return KindEffect
	}
	return kind
}

func formatMillis(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
