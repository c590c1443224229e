// Package tracker holds the "currently executing effect" slot.
//
// The slot is a depth-one save/restore stack: installing a context returns
// the one it replaced, and the caller restores it when the effect body
// exits. Run pairs the two with a defer so the slot is restored on every
// exit path, panics included.
//
// The host executes effects to completion one at a time, so at most one
// context is active. The slot is an atomic pointer so that an instrumented
// setter fired from another goroutine reads a consistent value.
package tracker

import (
	"sync/atomic"

	"github.com/roach88/cascade/internal/ir"
)

// Tracker is an injectable execution-context slot.
type Tracker struct {
	current atomic.Pointer[ir.EffectContext]
}

// New returns a tracker with no active context.
func New() *Tracker {
	return &Tracker{}
}

// Default is the process-wide tracker used when none is injected.
var Default = New()

// Current returns the active context, or nil when no effect is running.
func (t *Tracker) Current() *ir.EffectContext {
	return t.current.Load()
}

// Install makes ctx the active context and returns the previous one.
// Every Install must be paired with exactly one Restore.
func (t *Tracker) Install(ctx *ir.EffectContext) *ir.EffectContext {
	return t.current.Swap(ctx)
}

// Restore reinstates a context previously returned by Install.
func (t *Tracker) Restore(prev *ir.EffectContext) {
	t.current.Store(prev)
}

// Run installs ctx for the duration of fn. The previous context is restored
// when fn returns or panics; a panic propagates unchanged.
func (t *Tracker) Run(ctx *ir.EffectContext, fn func()) {
	prev := t.Install(ctx)
	defer t.Restore(prev)
	fn()
}

// MarkMutation records that the active effect mutated state and returns
// that effect's context, or nil when no effect is running.
func (t *Tracker) MarkMutation() *ir.EffectContext {
	ctx := t.current.Load()
	if ctx == nil {
		return nil
	}
	ctx.MutationOccurred = true
	return ctx
}

// Reset clears the slot. Intended for tests that simulate effect execution.
func (t *Tracker) Reset() {
	t.current.Store(nil)
}
