package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

var (
	// ErrEmptySessionID is returned when a write names no session.
	ErrEmptySessionID = errors.New("session id is empty")

	// ErrUnknownSeverity is returned for an entry whose severity is not
	// one of the ir severities, on write or when reading a stored row.
	ErrUnknownSeverity = errors.New("unknown severity")
)

// CreateSession inserts a session row. Creating an existing ID is a no-op.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("create session: %w", ErrEmptySessionID)
	}
	meta, err := marshalMeta(sess.Meta)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, mode, started_at, meta)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.Name, sess.Mode, sess.StartedAt.UnixMilli(), meta)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// WriteEntry appends an entry to a session. Rewriting an entry with the
// same content is a no-op.
func (s *Store) WriteEntry(ctx context.Context, sessionID string, e ir.Entry) error {
	if sessionID == "" {
		return fmt.Errorf("write entry: %w", ErrEmptySessionID)
	}
	if !e.Severity.Valid() {
		return fmt.Errorf("write entry %d: %w: %q", e.Seq, ErrUnknownSeverity, e.Severity)
	}
	id, err := ir.EntryID(sessionID, e)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries
		(id, session_id, seq, ts_us, severity, location, component, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		id,
		sessionID,
		e.Seq,
		e.Timestamp.Microseconds(),
		string(e.Severity),
		e.Location,
		e.Component,
		e.Message,
	)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

// WriteWindow records a timing window that grouped entries.
func (s *Store) WriteWindow(ctx context.Context, sessionID string, w ir.Window) error {
	if sessionID == "" {
		return fmt.Errorf("write window: %w", ErrEmptySessionID)
	}
	id, err := ir.WindowID(sessionID, w)
	if err != nil {
		return fmt.Errorf("write window: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO windows
		(id, session_id, start_us, end_us, label, source, mutations, others)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		sessionID,
		w.Start.Microseconds(),
		w.End.Microseconds(),
		w.Label,
		string(w.Source),
		w.Mutations,
		w.Others,
	)
	if err != nil {
		return fmt.Errorf("write window: %w", err)
	}
	return nil
}
