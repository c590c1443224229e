// Package hooks instruments the host runtime's state and effect hooks.
//
// Three pieces cooperate:
//
//   - Cache maps each host dispatch to exactly one Tracked wrapper. Keys are
//     held weakly so an unmounted component's dispatch can be collected.
//   - Tracked forwards every call to the host unchanged and, when the value
//     really changes inside a running effect, emits a state-change entry
//     attributed to that effect.
//   - Instrumentor runs effect bodies inside an execution context, diffs
//     their dependencies against the previous run, and emits effect-run and
//     slow-effect entries.
//
// Instrumentation is the facade the rewritten component code calls. It
// binds the three pieces to a host.Component.
package hooks
