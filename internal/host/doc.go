// Package host is a minimal reactive runtime: components that re-render
// when their state changes, with state, reducer, ref and effect hooks.
//
// It stands in for the host framework that cascade instruments. The
// instrumentation only observes calls made through it; nothing in host
// knows about instrumentation.
//
// Model:
//   - Mount renders a component and commits its effects
//   - A Dispatch call that changes state marks the component dirty
//   - Flush re-renders dirty components until none remain, bounded by
//     a pass limit that catches runaway render loops
//   - Hooks are matched to slots by call order, so a render must call the
//     same hooks in the same order every time
//
// Runtime is not safe for concurrent use. Like the host frameworks it
// models, it runs on a single logical thread.
package host
