package printer

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func entry(sev ir.Severity, loc, comp, msg string) ir.Entry {
	return ir.Entry{Severity: sev, Location: loc, Component: comp, Message: msg}
}

func TestFormat(t *testing.T) {
	e := entry(ir.SeverityStateChange, "a.tsx:1", "A", "set count")
	assert.Equal(t, "[state-change] set count", Format(e, 1, 1))
	assert.Equal(t, "[state-change] 2/3 set count", Format(e, 2, 3))
}

func TestPrintBatch_RoutesBySeverity(t *testing.T) {
	rec := NewRecorder()
	p := New(rec)

	p.PrintBatch([]ir.Entry{
		entry(ir.SeverityStateChange, "a", "A", "m1"),
		entry(ir.SeverityEffectRun, "b", "B", "m2"),
		entry(ir.SeveritySlowEffect, "c", "C", "m3"),
	})

	lines := rec.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, ChannelLog, lines[0].Channel)
	assert.Equal(t, ChannelInfo, lines[1].Channel)
	assert.Equal(t, ChannelWarn, lines[2].Channel)
}

func TestPrintGroup_Ordinals(t *testing.T) {
	rec := NewRecorder()
	p := New(rec)

	same := entry(ir.SeverityStateChange, "a.tsx:3", "App", "set x")
	other := entry(ir.SeverityStateChange, "b.tsx:9", "List", "set y")
	p.PrintGroup("Long task 80ms", []ir.Entry{same, same, other, same})

	lines := rec.Lines()
	require.Len(t, lines, 4)
	assert.Equal(t, "[state-change] 1/3 set x", lines[0].Text)
	assert.Equal(t, "[state-change] 2/3 set x", lines[1].Text)
	assert.Equal(t, "[state-change] set y", lines[2].Text)
	assert.Equal(t, "[state-change] 3/3 set x", lines[3].Text)
	for _, l := range lines {
		assert.Equal(t, "Long task 80ms", l.Group)
	}
	assert.False(t, rec.Open(), "group must be closed")
}

func TestPrintGroup_EmptyPrintsNothing(t *testing.T) {
	rec := NewRecorder()
	New(rec).PrintGroup("nothing", nil)
	assert.Empty(t, rec.Groups())
	assert.Empty(t, rec.Lines())
}

func TestCount(t *testing.T) {
	m, o := Count([]ir.Entry{
		{Severity: ir.SeverityStateChange},
		{Severity: ir.SeverityStateChange},
		{Severity: ir.SeverityEffectRun},
		{Severity: ir.SeveritySlowEffect},
	})
	assert.Equal(t, 2, m)
	assert.Equal(t, 2, o)
}

func TestGroupLabel(t *testing.T) {
	w := ir.Window{Start: 0, End: 123400 * time.Microsecond, Label: "Long task", Mutations: 3, Others: 1}
	assert.Equal(t, "Long task 123ms: 3 effect→setState, 1 other effects", GroupLabel(w))

	w = ir.Window{End: 250 * time.Millisecond, Label: "click", Mutations: 2}
	assert.Equal(t, "click 250ms: 2 effect→setState", GroupLabel(w))

	w = ir.Window{End: 60 * time.Millisecond, Source: ir.WindowSourceLongTask}
	assert.Equal(t, "long-task 60ms", GroupLabel(w))
}

func TestWriterConsole_IndentsGroups(t *testing.T) {
	var buf bytes.Buffer
	c := NewSingleWriterConsole(&buf)
	p := New(c)

	p.PrintBatch([]ir.Entry{entry(ir.SeverityStateChange, "a", "A", "before")})
	p.PrintGroup("G", []ir.Entry{entry(ir.SeveritySlowEffect, "a", "A", "inside")})

	assert.Equal(t, "[state-change] before\n▸ G\n  [slow-effect] inside\n", buf.String())
}

func TestWriterConsole_SplitsWarnings(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewWriterConsole(&out, &errOut)
	c.Log("l")
	c.Info("i")
	c.Warn("w")
	c.GroupEnd() // unbalanced end is ignored

	assert.Equal(t, "l\ni\n", out.String())
	assert.Equal(t, "w\n", errOut.String())
}
