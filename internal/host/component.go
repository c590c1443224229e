package host

import (
	"fmt"

	"github.com/roach88/cascade/internal/deps"
)

// EffectKind orders effect commits: layout effects run before effects.
type EffectKind int

const (
	KindEffect EffectKind = iota
	KindLayoutEffect
)

// Component is one mounted render function and its hook slots.
type Component struct {
	Name string

	rt        *Runtime
	render    func(*Component)
	slots     []any
	cursor    int
	pending   []*effectSlot
	dirty     bool
	unmounted bool
}

type stateSlot struct {
	value    any
	dispatch *Dispatch
}

// Ref is a mutable box that survives re-renders.
type Ref struct {
	Value any
}

type effectSlot struct {
	kind    EffectKind
	fn      func() func()
	deps    []any
	cleanup func()
	ran     bool
}

// Render runs the render function and commits effects whose deps changed.
func (c *Component) Render() {
	if c.unmounted {
		return
	}
	c.cursor = 0
	c.pending = c.pending[:0]
	c.rt.renders++
	c.render(c)
	c.commit()
}

func (c *Component) commit() {
	for _, kind := range []EffectKind{KindLayoutEffect, KindEffect} {
		for _, e := range c.pending {
			if e.kind != kind {
				continue
			}
			if e.cleanup != nil {
				e.cleanup()
				e.cleanup = nil
			}
			e.cleanup = e.fn()
			e.ran = true
		}
	}
}

// nextSlot returns the slot at the cursor, creating it with init on the
// first render.
func (c *Component) nextSlot(init func() any) any {
	i := c.cursor
	c.cursor++
	if i < len(c.slots) {
		return c.slots[i]
	}
	s := init()
	c.slots = append(c.slots, s)
	return s
}

// State declares a state hook and returns its value and dispatch.
func (c *Component) State(initial any) (any, *Dispatch) {
	return c.Reducer(nil, initial)
}

// Reducer declares a reducer hook. A nil reducer behaves like State.
func (c *Component) Reducer(reducer func(state, action any) any, initial any) (any, *Dispatch) {
	s, ok := c.nextSlot(func() any {
		slot := &stateSlot{value: initial}
		slot.dispatch = &Dispatch{comp: c, slot: slot, reducer: reducer}
		return slot
	}).(*stateSlot)
	if !ok {
		panic(fmt.Sprintf("host: hook order changed in %s at slot %d", c.Name, c.cursor-1))
	}
	return s.value, s.dispatch
}

// Ref declares a ref hook. init runs on the first render only.
func (c *Component) Ref(init func() any) *Ref {
	r, ok := c.nextSlot(func() any { return &Ref{Value: init()} }).(*Ref)
	if !ok {
		panic(fmt.Sprintf("host: hook order changed in %s at slot %d", c.Name, c.cursor-1))
	}
	return r
}

// Effect declares an effect. fn runs after render when deps changed since
// the last run; a nil deps list runs it after every render. fn may return
// a cleanup that runs before the next run and on unmount.
func (c *Component) Effect(fn func() func(), deps []any) {
	c.effect(KindEffect, fn, deps)
}

// LayoutEffect is Effect committed before ordinary effects.
func (c *Component) LayoutEffect(fn func() func(), deps []any) {
	c.effect(KindLayoutEffect, fn, deps)
}

func (c *Component) effect(kind EffectKind, fn func() func(), next []any) {
	e, ok := c.nextSlot(func() any { return &effectSlot{kind: kind} }).(*effectSlot)
	if !ok {
		panic(fmt.Sprintf("host: hook order changed in %s at slot %d", c.Name, c.cursor-1))
	}
	e.fn = fn
	if !e.ran || next == nil || depsChanged(e.deps, next) {
		c.pending = append(c.pending, e)
	}
	e.deps = next
}

func depsChanged(prev, next []any) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		if !deps.Same(prev[i], next[i]) {
			return true
		}
	}
	return false
}

// Unmount runs every effect cleanup and detaches the component.
func (c *Component) Unmount() {
	if c.unmounted {
		return
	}
	c.unmounted = true
	for _, s := range c.slots {
		if e, ok := s.(*effectSlot); ok && e.cleanup != nil {
			e.cleanup()
			e.cleanup = nil
		}
	}
}
