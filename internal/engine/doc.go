// Package engine implements the cascade log buffer and windowed grouping
// engine.
//
// The engine receives entries from the hook instrumentation, buffers them
// with monotonic timestamps, and decides how each one is printed.
//
// ARCHITECTURE:
//
// Two independent timing sources feed one shared, ordered buffer:
//   - Long tasks: main-thread stalls over 50ms, reported after they finish
//   - Interactions: input-processing intervals, reported per interaction id
//
// Each reported interval becomes a Window. Partition splits the buffer
// against the window into before / during / after:
//  1. before is printed immediately, one line per entry
//  2. during is printed inside one collapsible group with a summary banner
//  3. after stays buffered for the next signal
//
// When no signal arrives, a debounced flush (100ms quiescence) drains the
// buffer. Effect-run entries never print from the flush: they only exist
// to give groups context.
//
// If the host supports neither timing source, or lacks a high-resolution
// clock, the engine runs unbuffered and prints each entry as it arrives.
//
// A Sink override bypasses all of this and receives entries synchronously
// in emission order.
//
// CONCURRENCY:
//
// The host drives instrumentation from one logical thread. Timer callbacks
// and signal deliveries may arrive on other goroutines, so every
// partition-and-print pass runs under the engine mutex: no entry is
// visited by two passes and none is printed twice.
package engine
