// Package ir provides the shared record types for cascade.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal. This
// keeps ir the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Timestamps are monotonic offsets (time.Duration) from the engine's
//     clock origin, never wall-clock readings
//   - A nil Changed list means "initial run"; an empty non-nil list means
//     "re-ran with no detected dependency change". The two must never be
//     collapsed.
//   - All JSON tags use snake_case
package ir
