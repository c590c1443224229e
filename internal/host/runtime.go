package host

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cascade/internal/deps"
)

// DefaultMaxPasses bounds how many render passes Flush performs before
// giving up on a render loop.
const DefaultMaxPasses = 100

// ErrRenderLoop is returned by Flush when components keep re-dirtying.
var ErrRenderLoop = errors.New("render loop: components still dirty after max passes")

// Runtime owns mounted components and the dirty queue.
type Runtime struct {
	components []*Component
	dirty      []*Component
	maxPasses  int
	logger     *slog.Logger
	renders    int
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMaxPasses sets the Flush pass limit.
func WithMaxPasses(n int) Option {
	return func(r *Runtime) { r.maxPasses = n }
}

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// NewRuntime creates an empty runtime.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{maxPasses: DefaultMaxPasses}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Mount creates a component, renders it once and commits its effects.
func (r *Runtime) Mount(name string, render func(*Component)) *Component {
	c := &Component{Name: name, rt: r, render: render}
	r.components = append(r.components, c)
	c.Render()
	return c
}

// Component returns the mounted component with the given name.
func (r *Runtime) Component(name string) (*Component, bool) {
	for _, c := range r.components {
		if c.Name == name && !c.unmounted {
			return c, true
		}
	}
	return nil, false
}

// Renders returns the total number of render passes performed.
func (r *Runtime) Renders() int {
	return r.renders
}

// Flush re-renders dirty components in the order they became dirty until
// none remain.
func (r *Runtime) Flush() error {
	for pass := 0; len(r.dirty) > 0; pass++ {
		if pass >= r.maxPasses {
			names := make([]string, len(r.dirty))
			for i, c := range r.dirty {
				names[i] = c.Name
			}
			return fmt.Errorf("%w (%d passes, dirty: %v)", ErrRenderLoop, r.maxPasses, names)
		}
		batch := r.dirty
		r.dirty = nil
		for _, c := range batch {
			c.dirty = false
			if !c.unmounted {
				c.Render()
			}
		}
	}
	return nil
}

func (r *Runtime) markDirty(c *Component) {
	if c.dirty || c.unmounted {
		return
	}
	c.dirty = true
	r.dirty = append(r.dirty, c)
}

// Dispatch is the mutation entry point for one state or reducer hook
// instance. The pointer is stable for the life of the hook, so it doubles
// as the hook's identity.
type Dispatch struct {
	comp    *Component
	slot    *stateSlot
	reducer func(state, action any) any
}

// Call applies action. For a state hook, action is either the new value
// or an updater func(any) any applied to the current value. For a reducer
// hook, action is passed to the reducer. A result identical to the
// current value is a no-op.
func (d *Dispatch) Call(action any) {
	next := Apply(d.reducer, d.slot.value, action)
	if deps.Same(next, d.slot.value) {
		return
	}
	d.slot.value = next
	d.comp.rt.markDirty(d.comp)
}

// Apply computes the state that action produces from current.
func Apply(reducer func(state, action any) any, current, action any) any {
	if reducer != nil {
		return reducer(current, action)
	}
	if updater, ok := action.(func(any) any); ok {
		return updater(current)
	}
	return action
}
