package engine

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/printer"
	"github.com/roach88/cascade/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const ms = time.Millisecond

type fixture struct {
	eng   *Engine
	rec   *printer.Recorder
	clock *testutil.ManualClock
	feed  *Feed
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		rec:   printer.NewRecorder(),
		clock: testutil.NewManualClock(),
		feed:  NewFeed(),
	}
	base := []Option{
		WithClock(f.clock),
		WithSignals(f.feed),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	f.eng = New(f.rec, append(base, opts...)...)
	return f
}

// emitAt sets the clock to at and emits an entry.
func (f *fixture) emitAt(at time.Duration, sev ir.Severity, loc, comp, msg string) {
	f.clock.Set(at)
	f.eng.Emit(ir.Entry{Severity: sev, Location: loc, Component: comp, Message: msg})
}

func texts(lines []printer.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

func TestEngine_BufferedWhenSignalsSupported(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, ModeBuffered, f.eng.Mode())

	f.emitAt(0, ir.SeverityStateChange, "a", "A", "m")
	assert.Empty(t, f.rec.Lines(), "buffered entries must not print yet")
	assert.Len(t, f.eng.Buffered(), 1)
}

func TestEngine_StampsTimestampAndSeq(t *testing.T) {
	f := newFixture(t)
	f.emitAt(5*ms, ir.SeverityStateChange, "a", "A", "one")
	f.emitAt(7*ms, ir.SeverityStateChange, "a", "A", "two")

	buf := f.eng.Buffered()
	require.Len(t, buf, 2)
	assert.Equal(t, 5*ms, buf[0].Timestamp)
	assert.Equal(t, int64(1), buf[0].Seq)
	assert.Equal(t, 7*ms, buf[1].Timestamp)
	assert.Equal(t, int64(2), buf[1].Seq)
}

func TestEngine_LongTaskGroupsWithOrdinals(t *testing.T) {
	f := newFixture(t)

	f.emitAt(10*ms, ir.SeverityStateChange, "app.tsx:4", "App", "set a")
	f.emitAt(20*ms, ir.SeverityStateChange, "app.tsx:4", "App", "set a")
	f.emitAt(30*ms, ir.SeverityStateChange, "app.tsx:4", "App", "set a")
	f.emitAt(40*ms, ir.SeverityStateChange, "list.tsx:9", "List", "set b")

	f.feed.PublishLongTasks(ir.LongTask{Start: 5 * ms, Duration: 60 * ms})

	lines := f.rec.Lines()
	assert.Equal(t, []string{
		"[state-change] 1/3 set a",
		"[state-change] 2/3 set a",
		"[state-change] 3/3 set a",
		"[state-change] set b",
	}, texts(lines))
	assert.Equal(t, []string{"Long task 60ms: 4 effect→setState"}, f.rec.Groups())
	assert.False(t, f.rec.Open())
	assert.Empty(t, f.eng.Buffered())
}

func TestEngine_LongTaskBeforeDuringAfter(t *testing.T) {
	f := newFixture(t)

	f.emitAt(1*ms, ir.SeverityStateChange, "a", "A", "before")
	f.emitAt(2*ms, ir.SeverityEffectRun, "a", "A", "before-run")
	f.emitAt(60*ms, ir.SeverityEffectRun, "b", "B", "during-run")
	f.emitAt(70*ms, ir.SeveritySlowEffect, "b", "B", "during-slow")
	f.emitAt(95*ms, ir.SeverityStateChange, "c", "C", "after")

	f.feed.PublishLongTasks(ir.LongTask{Start: 39 * ms, Duration: 51 * ms})

	lines := f.rec.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "[state-change] before", lines[0].Text)
	assert.Equal(t, "", lines[0].Group)
	assert.Equal(t, "[effect-run] 1/2 during-run", lines[1].Text)
	assert.Equal(t, printer.ChannelInfo, lines[1].Channel)
	assert.Equal(t, "[slow-effect] 2/2 during-slow", lines[2].Text)
	assert.Equal(t, printer.ChannelWarn, lines[2].Channel)
	assert.Equal(t, []string{"Long task 51ms: 2 other effects"}, f.rec.Groups())

	retained := f.eng.Buffered()
	require.Len(t, retained, 1)
	assert.Equal(t, "after", retained[0].Message)
}

func TestEngine_RetainedEntriesGroupInNextWindow(t *testing.T) {
	f := newFixture(t)

	f.emitAt(10*ms, ir.SeverityStateChange, "a", "A", "first")
	f.emitAt(80*ms, ir.SeverityStateChange, "b", "B", "second")

	f.feed.PublishLongTasks(ir.LongTask{Start: 0, Duration: 60 * ms})
	assert.Len(t, f.eng.Buffered(), 1)
	f.feed.PublishLongTasks(ir.LongTask{Start: 70 * ms, Duration: 60 * ms})

	lines := f.rec.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "[state-change] first", lines[0].Text)
	assert.Equal(t, "[state-change] second", lines[1].Text)
	assert.Len(t, f.rec.Groups(), 2)
	assert.Empty(t, f.eng.Buffered())
}

func TestEngine_WindowBoundsInclusive(t *testing.T) {
	f := newFixture(t)
	f.emitAt(50*ms, ir.SeverityStateChange, "a", "A", "at-start")
	f.emitAt(110*ms, ir.SeverityStateChange, "a", "A", "at-end")

	f.feed.PublishLongTasks(ir.LongTask{Start: 50 * ms, Duration: 60 * ms})

	for _, l := range f.rec.Lines() {
		assert.NotEmpty(t, l.Group, "%q should be grouped", l.Text)
	}
	assert.Len(t, f.rec.Lines(), 2)
}

func TestEngine_EmptyWindowPrintsNoGroup(t *testing.T) {
	f := newFixture(t)
	f.emitAt(300*ms, ir.SeverityStateChange, "a", "A", "later")

	f.feed.PublishLongTasks(ir.LongTask{Start: 0, Duration: 60 * ms})

	assert.Empty(t, f.rec.Groups())
	assert.Empty(t, f.rec.Lines())
	assert.Len(t, f.eng.Buffered(), 1)
}

func TestEngine_InteractionBeforeKeepsEffectRuns(t *testing.T) {
	f := newFixture(t)

	f.emitAt(1*ms, ir.SeverityEffectRun, "a", "A", "before-run")
	f.emitAt(60*ms, ir.SeverityStateChange, "b", "B", "during")

	f.feed.PublishInteractions(ir.InteractionReport{
		InteractionID:   7,
		Name:            "click",
		Start:           45 * ms,
		ProcessingStart: 50 * ms,
		ProcessingEnd:   90 * ms,
		Duration:        250 * ms,
	})

	lines := f.rec.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "[effect-run] before-run", lines[0].Text)
	assert.Equal(t, "", lines[0].Group)
	assert.Equal(t, "[state-change] during", lines[1].Text)
	assert.Equal(t, []string{"click 40ms: 1 effect→setState"}, f.rec.Groups())
}

func TestEngine_InteractionSelectsLongestPerID(t *testing.T) {
	f := newFixture(t)
	f.emitAt(15*ms, ir.SeverityStateChange, "a", "A", "pointer")

	f.feed.PublishInteractions(
		ir.InteractionReport{InteractionID: 3, Name: "pointerdown", ProcessingStart: 0, ProcessingEnd: 5 * ms, Duration: 210 * ms},
		ir.InteractionReport{InteractionID: 3, Name: "click", ProcessingStart: 10 * ms, ProcessingEnd: 20 * ms, Duration: 260 * ms},
		ir.InteractionReport{InteractionID: 0, Name: "scroll", ProcessingStart: 0, ProcessingEnd: 100 * ms, Duration: 400 * ms},
	)

	assert.Equal(t, []string{"click 10ms: 1 effect→setState"}, f.rec.Groups())
}

func TestEngine_FallbackFlush(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, FlushIdle, f.eng.FlushState())

	f.emitAt(0, ir.SeverityStateChange, "a", "A", "one")
	assert.Equal(t, FlushPending, f.eng.FlushState())
	assert.Equal(t, 1, f.clock.Pending())

	f.emitAt(50*ms, ir.SeverityEffectRun, "a", "A", "run")
	f.emitAt(60*ms, ir.SeveritySlowEffect, "a", "A", "slow")
	assert.Equal(t, 1, f.clock.Pending(), "re-arming while pending is a no-op")

	f.clock.Set(99 * ms)
	assert.Empty(t, f.rec.Lines())

	f.clock.Set(100 * ms)
	assert.Equal(t, []string{"[state-change] 1/2 one", "[slow-effect] 2/2 slow"}, texts(f.rec.Lines()))
	assert.Equal(t, FlushIdle, f.eng.FlushState())
	assert.Empty(t, f.eng.Buffered())
	assert.Empty(t, f.rec.Groups())
}

func TestEngine_OrdinalsOutsideGroups(t *testing.T) {
	t.Run("long task before batch", func(t *testing.T) {
		f := newFixture(t)
		f.emitAt(1*ms, ir.SeverityStateChange, "a", "A", "first")
		f.emitAt(2*ms, ir.SeverityStateChange, "b", "B", "other")
		f.emitAt(3*ms, ir.SeverityStateChange, "a", "A", "second")
		f.emitAt(70*ms, ir.SeverityStateChange, "c", "C", "during")

		f.feed.PublishLongTasks(ir.LongTask{Start: 60 * ms, Duration: 55 * ms})

		lines := f.rec.Lines()
		require.Len(t, lines, 4)
		assert.Equal(t, []string{
			"[state-change] 1/2 first",
			"[state-change] other",
			"[state-change] 2/2 second",
		}, texts(lines[:3]))
		for _, l := range lines[:3] {
			assert.Empty(t, l.Group)
		}
		assert.Equal(t, "[state-change] during", lines[3].Text)
	})

	t.Run("fallback flush", func(t *testing.T) {
		f := newFixture(t)
		f.emitAt(0, ir.SeverityStateChange, "a", "A", "first")
		f.emitAt(1*ms, ir.SeverityStateChange, "b", "B", "other")
		f.emitAt(2*ms, ir.SeveritySlowEffect, "a", "A", "second")

		f.clock.Set(100 * ms)

		assert.Equal(t, []string{
			"[state-change] 1/2 first",
			"[state-change] other",
			"[slow-effect] 2/2 second",
		}, texts(f.rec.Lines()))
	})

	t.Run("separate batches never number", func(t *testing.T) {
		f := newFixture(t)
		f.emitAt(0, ir.SeverityStateChange, "a", "A", "one")
		f.clock.Set(100 * ms)
		f.emitAt(150*ms, ir.SeverityStateChange, "a", "A", "two")
		f.clock.Set(250 * ms)

		assert.Equal(t, []string{"[state-change] one", "[state-change] two"}, texts(f.rec.Lines()))
	})
}

func TestEngine_FlushTimerRearmsAfterFiring(t *testing.T) {
	f := newFixture(t)
	f.emitAt(0, ir.SeverityStateChange, "a", "A", "one")
	f.clock.Set(100 * ms)

	f.emitAt(150*ms, ir.SeverityStateChange, "a", "A", "two")
	assert.Equal(t, FlushPending, f.eng.FlushState())
	f.clock.Set(250 * ms)

	assert.Equal(t, []string{"[state-change] one", "[state-change] two"}, texts(f.rec.Lines()))
}

func TestEngine_FlushEmptyIsNoop(t *testing.T) {
	f := newFixture(t)
	f.eng.Flush()
	f.eng.Flush()
	assert.Empty(t, f.rec.Lines())
}

func TestEngine_NoEntryPrintedTwice(t *testing.T) {
	f := newFixture(t)
	f.emitAt(10*ms, ir.SeverityStateChange, "a", "A", "x")
	f.feed.PublishLongTasks(ir.LongTask{Start: 0, Duration: 60 * ms})
	f.feed.PublishLongTasks(ir.LongTask{Start: 0, Duration: 60 * ms})
	f.clock.Advance(time.Second)
	f.eng.Flush()

	assert.Len(t, f.rec.Lines(), 1)
}

func TestEngine_SinkBypassesBuffer(t *testing.T) {
	f := newFixture(t)
	var got []ir.Entry
	f.eng.SetSink(func(e ir.Entry) { got = append(got, e) })

	f.emitAt(1*ms, ir.SeverityStateChange, "a", "A", "one")
	f.emitAt(2*ms, ir.SeverityEffectRun, "a", "A", "two")

	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Message)
	assert.Equal(t, "two", got[1].Message)
	assert.Empty(t, f.eng.Buffered())
	assert.Empty(t, f.rec.Lines())
	assert.Equal(t, 0, f.clock.Pending())

	f.eng.SetSink(nil)
	f.emitAt(3*ms, ir.SeverityStateChange, "a", "A", "three")
	assert.Len(t, f.eng.Buffered(), 1)
}

func TestEngine_SinkPanicRecovered(t *testing.T) {
	f := newFixture(t)
	f.eng.SetSink(func(ir.Entry) { panic("sink broke") })

	assert.NotPanics(t, func() {
		f.eng.Emit(ir.Entry{Severity: ir.SeverityStateChange})
	})
}

func TestEngine_ImmediateWithoutSignals(t *testing.T) {
	rec := printer.NewRecorder()
	eng := New(rec, WithClock(testutil.NewManualClock()))
	assert.Equal(t, ModeImmediate, eng.Mode())

	eng.Emit(ir.Entry{Severity: ir.SeverityStateChange, Message: "now"})
	eng.Emit(ir.Entry{Severity: ir.SeverityEffectRun, Message: "never alone"})
	assert.Equal(t, []string{"[state-change] now"}, texts(rec.Lines()))
}

func TestEngine_ImmediateWhenBothSignalsUnsupported(t *testing.T) {
	f := newFixture(t, WithSignals(NewFeed(WithoutLongTasks(), WithoutInteractions())))
	assert.Equal(t, ModeImmediate, f.eng.Mode())
}

type failingSource struct{}

func (failingSource) ObserveLongTasks(func([]ir.LongTask)) error {
	return errors.New("observer registry closed")
}

func (failingSource) ObserveInteractions(time.Duration, func([]ir.InteractionReport)) error {
	return &CapabilityError{Signal: "interaction", Err: ErrUnsupported}
}

func TestEngine_ObserveFailuresDegrade(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	eng := New(printer.NewRecorder(),
		WithClock(testutil.NewManualClock()),
		WithSignals(failingSource{}),
		WithLogger(logger),
	)

	assert.Equal(t, ModeImmediate, eng.Mode())
	out := logs.String()
	assert.Contains(t, out, `level=WARN msg="timing signal subscription failed" signal=long-task`)
	assert.Contains(t, out, `level=DEBUG msg="timing signal unavailable" signal=interaction`)
}

func TestEngine_BufferedWithOneSignal(t *testing.T) {
	f := newFixture(t, WithSignals(NewFeed(WithoutLongTasks())))
	assert.Equal(t, ModeBuffered, f.eng.Mode())
}

func TestEngine_ImmediateOnLowResolutionClock(t *testing.T) {
	rec := printer.NewRecorder()
	eng := New(rec, WithClock(testutil.NewLowResolutionClock()), WithSignals(NewFeed()))
	assert.Equal(t, ModeImmediate, eng.Mode())
}

func TestEngine_ForcedImmediate(t *testing.T) {
	f := newFixture(t, WithImmediate())
	assert.Equal(t, ModeImmediate, f.eng.Mode())
}

func TestEngine_CloseDrains(t *testing.T) {
	f := newFixture(t)
	f.emitAt(0, ir.SeverityStateChange, "a", "A", "pending")
	f.eng.Close()
	assert.Equal(t, []string{"[state-change] pending"}, texts(f.rec.Lines()))

	f.emitAt(1*ms, ir.SeverityStateChange, "a", "A", "late")
	assert.Len(t, f.rec.Lines(), 2)
}

type recordingRecorder struct {
	entries []ir.Entry
	windows []ir.Window
}

func (r *recordingRecorder) RecordEntry(e ir.Entry)   { r.entries = append(r.entries, e) }
func (r *recordingRecorder) RecordWindow(w ir.Window) { r.windows = append(r.windows, w) }

func TestEngine_RecorderSeesEntriesAndWindows(t *testing.T) {
	rr := &recordingRecorder{}
	f := newFixture(t, WithRecorder(rr))

	f.emitAt(10*ms, ir.SeverityStateChange, "a", "A", "x")
	f.emitAt(11*ms, ir.SeverityEffectRun, "a", "A", "y")
	f.feed.PublishLongTasks(ir.LongTask{Start: 0, Duration: 60 * ms})

	assert.Len(t, rr.entries, 2)
	require.Len(t, rr.windows, 1)
	assert.Equal(t, 1, rr.windows[0].Mutations)
	assert.Equal(t, 1, rr.windows[0].Others)
	assert.Equal(t, ir.WindowSourceLongTask, rr.windows[0].Source)
}
