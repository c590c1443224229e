// Package store persists cascade sessions in SQLite.
//
// A session is one run of an instrumented application (or scenario). The
// store keeps:
//   - sessions: id, name, engine mode, start time and metadata
//   - entries: every emitted entry, in emission order
//   - windows: every timing window that grouped entries
//
// # Ordering
//
// Entries and windows are ordered by their engine-assigned sequence and
// start time, never by insertion time. Queries add id COLLATE BINARY as a
// tiebreaker so results are identical across reads.
//
// # Idempotency
//
// Entry and window IDs are content-addressed (see ir.EntryID and
// ir.WindowID), and inserts use ON CONFLICT DO NOTHING, so recording the
// same session twice leaves one copy.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
