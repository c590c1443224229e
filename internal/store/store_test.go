package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/testutil"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestSession(t *testing.T, s *Store, id string, started time.Time) {
	t.Helper()
	require.NoError(t, s.CreateSession(context.Background(), Session{
		ID:        id,
		Name:      "scenario",
		Mode:      "buffered",
		StartedAt: started,
		Meta:      map[string]string{"scenario": "counter.yaml"},
	}))
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_MigratesV0Database(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE sessions (
		id TEXT PRIMARY KEY, name TEXT NOT NULL, mode TEXT NOT NULL, started_at INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sessions VALUES ('old', 'legacy', 'immediate', 0)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	sess, err := s.GetSession(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "legacy", sess.Name)
	assert.Empty(t, sess.Meta)
}

func TestCreateSession_RequiresID(t *testing.T) {
	s := createTestStore(t)
	err := s.CreateSession(context.Background(), Session{Name: "x"})
	assert.ErrorIs(t, err, ErrEmptySessionID)
}

func TestGetSession_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWriteAndReadEntries(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestSession(t, s, "s1", time.UnixMilli(1000))

	entries := []ir.Entry{
		{Seq: 2, Timestamp: 12 * time.Millisecond, Severity: ir.SeverityEffectRun, Location: "a.tsx:1", Component: "A", Message: "ran"},
		{Seq: 1, Timestamp: 10 * time.Millisecond, Severity: ir.SeverityStateChange, Location: "a.tsx:1", Component: "A", Message: "set"},
	}
	for _, e := range entries {
		require.NoError(t, s.WriteEntry(ctx, "s1", e))
	}
	// Rewriting is a no-op.
	require.NoError(t, s.WriteEntry(ctx, "s1", entries[0]))

	got, err := s.ReadEntries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entries[1], got[0])
	assert.Equal(t, entries[0], got[1])
}

func TestReadEntries_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	got, err := s.ReadEntries(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestWriteEntry_UnknownSessionFails(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteEntry(context.Background(), "ghost", ir.Entry{Seq: 1, Severity: ir.SeverityEffectRun})
	assert.Error(t, err, "foreign key must reject entries for unknown sessions")
}

func TestWriteEntry_RejectsUnknownSeverity(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "s1", time.UnixMilli(1000))

	err := s.WriteEntry(context.Background(), "s1", ir.Entry{Seq: 1, Severity: "fatal"})
	assert.ErrorIs(t, err, ErrUnknownSeverity)
}

func TestReadEntries_RejectsCorruptSeverity(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestSession(t, s, "s1", time.UnixMilli(1000))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, session_id, seq, ts_us, severity, location, component, message)
		VALUES ('x', 's1', 1, 0, 'fatal', '', '', 'm')`)
	require.NoError(t, err)

	_, err = s.ReadEntries(ctx, "s1")
	assert.ErrorIs(t, err, ErrUnknownSeverity)
}

func TestWriteAndReadWindows(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestSession(t, s, "s1", time.UnixMilli(0))

	w := ir.Window{
		Start:     100 * time.Millisecond,
		End:       160 * time.Millisecond,
		Label:     "Long task",
		Source:    ir.WindowSourceLongTask,
		Mutations: 3,
		Others:    1,
	}
	require.NoError(t, s.WriteWindow(ctx, "s1", w))
	require.NoError(t, s.WriteWindow(ctx, "s1", w))

	got, err := s.ReadWindows(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []ir.Window{w}, got)
}

func TestListSessions_CountsAndOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestSession(t, s, "older", time.UnixMilli(1000))
	createTestSession(t, s, "newer", time.UnixMilli(2000))
	require.NoError(t, s.WriteEntry(ctx, "older", ir.Entry{Seq: 1, Severity: ir.SeverityEffectRun, Message: "m"}))
	require.NoError(t, s.WriteWindow(ctx, "older", ir.Window{Label: "x", Source: ir.WindowSourceInteraction}))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "newer", sessions[0].ID)
	assert.Equal(t, "older", sessions[1].ID)
	assert.Equal(t, 1, sessions[1].Entries)
	assert.Equal(t, 1, sessions[1].Windows)
	assert.Equal(t, map[string]string{"scenario": "counter.yaml"}, sessions[1].Meta)
	assert.Equal(t, time.UnixMilli(1000).UTC(), sessions[1].StartedAt)
}

func TestRecorderAndSink(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	gen := testutil.NewFixedSessionGenerator("rec-1")
	id := gen.Generate()
	createTestSession(t, s, id, time.UnixMilli(0))

	rec := s.Recorder(ctx, id, nil)
	rec.RecordEntry(ir.Entry{Seq: 1, Severity: ir.SeverityStateChange, Message: "a"})
	rec.RecordWindow(ir.Window{Label: "click", Source: ir.WindowSourceInteraction, End: time.Millisecond})
	sink := s.Sink(ctx, id, nil)
	sink(ir.Entry{Seq: 2, Severity: ir.SeverityEffectRun, Message: "b"})

	entries, err := s.ReadEntries(ctx, id)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	windows, err := s.ReadWindows(ctx, id)
	require.NoError(t, err)
	assert.Len(t, windows, 1)
}

func TestRecorder_SwallowsErrors(t *testing.T) {
	s := createTestStore(t)
	rec := s.Recorder(context.Background(), "", nil)
	assert.NotPanics(t, func() {
		rec.RecordEntry(ir.Entry{Seq: 1})
		rec.RecordWindow(ir.Window{})
	})
}

func TestUUIDv7Generator(t *testing.T) {
	var gen UUIDv7Generator
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14], "version nibble")
}
