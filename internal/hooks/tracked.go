package hooks

import (
	"fmt"
	"log/slog"
	"weak"

	"github.com/roach88/cascade/internal/deps"
	"github.com/roach88/cascade/internal/ir"
)

// Tracked wraps a host mutation handle of type K. Calls are always
// forwarded to the handle with the original argument. When a call happens
// inside an effect and changes the value, the effect's context is marked
// and a state-change entry is emitted.
type Tracked[K any] struct {
	meta    ir.Metadata
	current any
	reduce  func(state, action any) any
	target  weak.Pointer[K]
	forward func(*K, any)
	inst    *Instrumentor
}

// Metadata returns the state hook's source metadata.
func (t *Tracked[K]) Metadata() ir.Metadata {
	return t.meta
}

// Value returns the wrapper's view of the current state.
func (t *Tracked[K]) Value() any {
	return t.current
}

// Call applies action. For plain state, action is a value or an updater
// func(any) any; for reducer state it is passed to the reducer.
func (t *Tracked[K]) Call(action any) {
	next, ok := t.next(action)
	if ok {
		if !deps.Same(next, t.current) {
			t.record()
		}
		t.current = next
	}
	if k := t.target.Value(); k != nil {
		t.forward(k, action)
	}
}

// next computes the resulting state without touching the host. A panic in
// user code is left for the host call to surface.
func (t *Tracked[K]) next(action any) (v any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.inst.logger.Debug("state preview failed", "state", t.meta.StateName, "panic", r)
			ok = false
		}
	}()
	if t.reduce != nil {
		return t.reduce(t.current, action), true
	}
	if updater, isUpdater := action.(func(any) any); isUpdater {
		return updater(t.current), true
	}
	return action, true
}

func (t *Tracked[K]) record() {
	ctx := t.inst.tracker.MarkMutation()
	if ctx == nil {
		return
	}
	t.inst.emit(ir.Entry{
		Severity:  ir.SeverityStateChange,
		Location:  ctx.Location,
		Component: ctx.Component,
		Message:   stateChangeMessage(ctx, t.meta),
	})
}

func stateChangeMessage(ctx *ir.EffectContext, meta ir.Metadata) string {
	name := meta.StateName
	if name == "" {
		name = "state"
	}
	target := name
	if meta.Location != "" && meta.Location != ctx.Location {
		target = fmt.Sprintf("%s (%s)", name, meta.Location)
	}
	return fmt.Sprintf("%s in %s (%s) set %s: %s",
		kindOrDefault(ctx.Kind), ctx.Component, ctx.Location, target, deps.Reason(ctx.Changed))
}

// LogValue implements slog.LogValuer.
func (t *Tracked[K]) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("state", t.meta.StateName),
		slog.String("component", t.meta.Component),
	)
}
