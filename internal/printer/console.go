package printer

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Channel names the output stream a line was written to.
type Channel string

const (
	ChannelLog  Channel = "log"
	ChannelInfo Channel = "info"
	ChannelWarn Channel = "warn"
)

// Console is a set of console-style output channels with collapsible groups.
type Console interface {
	Log(line string)
	Info(line string)
	Warn(line string)
	Group(label string)
	GroupEnd()
}

// WriterConsole writes channels to io.Writers. Group contents are indented
// under a "▸ label" banner.
//
// Thread-safety: all methods are safe for concurrent use.
type WriterConsole struct {
	mu    sync.Mutex
	out   map[Channel]io.Writer
	depth int
}

// NewWriterConsole routes log and info lines to stdout and warnings to stderr.
func NewWriterConsole(stdout, stderr io.Writer) *WriterConsole {
	return &WriterConsole{out: map[Channel]io.Writer{
		ChannelLog:  stdout,
		ChannelInfo: stdout,
		ChannelWarn: stderr,
	}}
}

// NewSingleWriterConsole routes every channel to w, which keeps the
// relative order of channels in one transcript.
func NewSingleWriterConsole(w io.Writer) *WriterConsole {
	return NewWriterConsole(w, w)
}

func (c *WriterConsole) Log(line string)  { c.write(ChannelLog, line) }
func (c *WriterConsole) Info(line string) { c.write(ChannelInfo, line) }
func (c *WriterConsole) Warn(line string) { c.write(ChannelWarn, line) }

func (c *WriterConsole) Group(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out[ChannelLog], "%s▸ %s\n", strings.Repeat("  ", c.depth), label)
	c.depth++
}

func (c *WriterConsole) GroupEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depth > 0 {
		c.depth--
	}
}

func (c *WriterConsole) write(ch Channel, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out[ch], "%s%s\n", strings.Repeat("  ", c.depth), line)
}

// Line is one call recorded by a Recorder.
type Line struct {
	Channel Channel
	Text    string
	// Group is the label of the enclosing group, empty at top level.
	Group string
}

// Recorder is an in-memory Console for tests and the scenario harness.
type Recorder struct {
	mu     sync.Mutex
	lines  []Line
	groups []string
	opened []string
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Log(line string)  { r.add(ChannelLog, line) }
func (r *Recorder) Info(line string) { r.add(ChannelInfo, line) }
func (r *Recorder) Warn(line string) { r.add(ChannelWarn, line) }

func (r *Recorder) Group(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = append(r.groups, label)
	r.opened = append(r.opened, label)
}

func (r *Recorder) GroupEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.groups); n > 0 {
		r.groups = r.groups[:n-1]
	}
}

func (r *Recorder) add(ch Channel, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var group string
	if n := len(r.groups); n > 0 {
		group = r.groups[n-1]
	}
	r.lines = append(r.lines, Line{Channel: ch, Text: text, Group: group})
}

// Lines returns a copy of every recorded line in order.
func (r *Recorder) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Line, len(r.lines))
	copy(out, r.lines)
	return out
}

// Groups returns the labels of every group opened so far.
func (r *Recorder) Groups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.opened))
	copy(out, r.opened)
	return out
}

// Open reports whether a group is still open.
func (r *Recorder) Open() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups) > 0
}

// Reset discards everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines, r.groups, r.opened = nil, nil, nil
}
