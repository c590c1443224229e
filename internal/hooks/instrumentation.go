package hooks

import (
	"weak"

	"github.com/roach88/cascade/internal/host"
	"github.com/roach88/cascade/internal/ir"
)

// Setter is the wrapper handed to components in place of a host dispatch.
type Setter = Tracked[host.Dispatch]

// Instrumentation is what instrumented component code calls instead of
// the host hooks. Location and component arguments are injected at
// build time.
type Instrumentation struct {
	inst     *Instrumentor
	wrappers *Cache[host.Dispatch, *Setter]
}

// New creates the facade over a fresh Instrumentor.
func New(e Emitter, opts ...Option) *Instrumentation {
	return &Instrumentation{
		inst:     NewInstrumentor(e, opts...),
		wrappers: NewCache[host.Dispatch, *Setter](),
	}
}

// Instrumentor returns the underlying effect instrumentor.
func (i *Instrumentation) Instrumentor() *Instrumentor {
	return i.inst
}

// Wrappers returns the number of live cached setters.
func (i *Instrumentation) Wrappers() int {
	return i.wrappers.Len()
}

// UseState is host State with a tracked setter.
func (i *Instrumentation) UseState(c *host.Component, initial any, location, component, stateName string) (any, *Setter) {
	v, d := c.State(initial)
	return v, i.Wrap(d, v, nil, ir.Metadata{Location: location, Component: component, StateName: stateName})
}

// UseReducer is host Reducer with a tracked dispatch.
func (i *Instrumentation) UseReducer(c *host.Component, reducer func(state, action any) any, initial any, location, component, stateName string) (any, *Setter) {
	v, d := c.Reducer(reducer, initial)
	return v, i.Wrap(d, v, reducer, ir.Metadata{Location: location, Component: component, StateName: stateName})
}

// Wrap returns the single wrapper for d, creating it on first sight with
// current as its view of the state. Later calls return the cached wrapper
// unchanged.
func (i *Instrumentation) Wrap(d *host.Dispatch, current any, reducer func(state, action any) any, meta ir.Metadata) *Setter {
	return i.wrappers.GetOrCreate(d, func(wp weak.Pointer[host.Dispatch]) *Setter {
		return &Setter{
			meta:    meta,
			current: current,
			reduce:  reducer,
			target:  wp,
			forward: (*host.Dispatch).Call,
			inst:    i.inst,
		}
	})
}

// UseEffect is host Effect with an instrumented body.
func (i *Instrumentation) UseEffect(c *host.Component, body func() func(), deps []any, location, component string, depNames []string) {
	i.effect(c, c.Effect, KindEffect, body, deps, location, component, depNames)
}

// UseLayoutEffect is host LayoutEffect with an instrumented body.
func (i *Instrumentation) UseLayoutEffect(c *host.Component, body func() func(), deps []any, location, component string, depNames []string) {
	i.effect(c, c.LayoutEffect, KindLayoutEffect, body, deps, location, component, depNames)
}

func (i *Instrumentation) effect(c *host.Component, register func(func() func(), []any), kind string,
	body func() func(), deps []any, location, component string, depNames []string) {
	mem := c.Ref(func() any { return &EffectMemory{} }).Value.(*EffectMemory)
	site := Site{Location: location, Component: component, Kind: kind, DepNames: depNames}
	register(func() func() {
		return i.inst.Run(mem, site, deps, body)
	}, deps)
}
