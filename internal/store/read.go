package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/cascade/internal/ir"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("session not found")

// GetSession returns one session without counts.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, mode, started_at, meta FROM sessions WHERE id = ?
	`, id)

	var (
		sess    Session
		started int64
		meta    string
	)
	if err := row.Scan(&sess.ID, &sess.Name, &sess.Mode, &started, &meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, fmt.Errorf("get session %q: %w", id, ErrSessionNotFound)
		}
		return Session{}, fmt.Errorf("get session %q: %w", id, err)
	}
	sess.StartedAt = time.UnixMilli(started).UTC()
	m, err := unmarshalMeta(meta)
	if err != nil {
		return Session{}, fmt.Errorf("get session %q: %w", id, err)
	}
	sess.Meta = m
	return sess, nil
}

// ListSessions returns every session with entry and window counts, most
// recent first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.mode, s.started_at, s.meta,
			(SELECT COUNT(*) FROM entries e WHERE e.session_id = s.id),
			(SELECT COUNT(*) FROM windows w WHERE w.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at DESC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var (
			sess    Session
			started int64
			meta    string
		)
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.Mode, &started, &meta, &sess.Entries, &sess.Windows); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt = time.UnixMilli(started).UTC()
		if sess.Meta, err = unmarshalMeta(meta); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadEntries returns a session's entries in emission order.
// Returns an empty slice (not nil) when the session has none.
func (s *Store) ReadEntries(ctx context.Context, sessionID string) ([]ir.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, ts_us, severity, location, component, message
		FROM entries
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []ir.Entry{}
	for rows.Next() {
		var (
			e        ir.Entry
			ts       int64
			severity string
		)
		if err := rows.Scan(&e.Seq, &ts, &severity, &e.Location, &e.Component, &e.Message); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Timestamp = time.Duration(ts) * time.Microsecond
		e.Severity = ir.Severity(severity)
		if !e.Severity.Valid() {
			return nil, fmt.Errorf("entry %d: %w: %q", e.Seq, ErrUnknownSeverity, severity)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ReadWindows returns a session's windows ordered by start.
func (s *Store) ReadWindows(ctx context.Context, sessionID string) ([]ir.Window, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_us, end_us, label, source, mutations, others
		FROM windows
		WHERE session_id = ?
		ORDER BY start_us ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	defer rows.Close()

	windows := []ir.Window{}
	for rows.Next() {
		var (
			w          ir.Window
			start, end int64
			source     string
		)
		if err := rows.Scan(&start, &end, &w.Label, &source, &w.Mutations, &w.Others); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		w.Start = time.Duration(start) * time.Microsecond
		w.End = time.Duration(end) * time.Microsecond
		w.Source = ir.WindowSource(source)
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate windows: %w", err)
	}
	return windows, nil
}
