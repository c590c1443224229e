package store

import (
	"context"
	"log/slog"

	"github.com/roach88/cascade/internal/ir"
)

// Recorder writes everything the engine observes into one session. It
// satisfies engine.Recorder. Write failures are logged, never returned,
// so persistence problems cannot disturb the instrumented program.
type Recorder struct {
	ctx       context.Context
	store     *Store
	sessionID string
	logger    *slog.Logger
}

// Recorder returns a Recorder for sessionID.
func (s *Store) Recorder(ctx context.Context, sessionID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{ctx: ctx, store: s, sessionID: sessionID, logger: logger}
}

// RecordEntry persists e.
func (r *Recorder) RecordEntry(e ir.Entry) {
	if err := r.store.WriteEntry(r.ctx, r.sessionID, e); err != nil {
		r.logger.Warn("record entry failed", "session", r.sessionID, "seq", e.Seq, "error", err)
	}
}

// RecordWindow persists w.
func (r *Recorder) RecordWindow(w ir.Window) {
	if err := r.store.WriteWindow(r.ctx, r.sessionID, w); err != nil {
		r.logger.Warn("record window failed", "session", r.sessionID, "window", w.String(), "error", err)
	}
}

// Sink returns an entry sink that persists instead of printing. Installed
// with engine.SetSink, it takes over from console output entirely.
func (s *Store) Sink(ctx context.Context, sessionID string, logger *slog.Logger) func(ir.Entry) {
	return s.Recorder(ctx, sessionID, logger).RecordEntry
}
