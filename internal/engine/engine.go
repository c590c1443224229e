package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/printer"
)

// Sink receives every entry synchronously, bypassing buffering and
// grouping. Used for deterministic tests and telemetry forwarding.
type Sink func(ir.Entry)

// Recorder observes the engine without changing what it prints.
// The telemetry store implements it.
type Recorder interface {
	RecordEntry(e ir.Entry)
	RecordWindow(w ir.Window)
}

// Mode reports how the engine disposes of entries.
type Mode string

const (
	// ModeBuffered correlates entries with timing windows.
	ModeBuffered Mode = "buffered"
	// ModeImmediate prints each entry as it is emitted.
	ModeImmediate Mode = "immediate"
)

// Engine buffers entries and correlates them with timing windows.
//
// Thread-safety model:
//   - Emit, OnLongTasks, OnInteractions, Flush: safe from any goroutine
//   - All buffer mutation and printing happens under mu
//
// INVARIANTS:
//   - An entry leaves the buffer only by being printed, or by being kept
//     as the after-partition for the next window
//   - No entry is printed twice
//   - Effect-run entries never print from the fallback flush
type Engine struct {
	mu      sync.Mutex
	buffer  []ir.Entry
	flush   debouncer
	mode    Mode
	closed  bool
	printer *printer.Printer

	clock               Clock
	seq                 *Sequence
	logger              *slog.Logger
	sink                atomic.Pointer[Sink]
	recorders           []Recorder
	signals             SignalSource
	forceImmediate      bool
	interactionMinimum  time.Duration
	flushDelay          time.Duration
	scheduler           Scheduler
	longTasksObserved   bool
	interactionObserved bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the monotonic time source. If clock also implements
// Scheduler it becomes the scheduler unless WithScheduler overrides it.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithScheduler sets the timer used by the fallback flush.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSignals subscribes the engine to a timing source.
func WithSignals(src SignalSource) Option {
	return func(e *Engine) { e.signals = src }
}

// WithFlushDelay sets the fallback flush quiescence period.
func WithFlushDelay(d time.Duration) Option {
	return func(e *Engine) { e.flushDelay = d }
}

// WithInteractionThreshold sets the minimum interaction duration grouped.
func WithInteractionThreshold(d time.Duration) Option {
	return func(e *Engine) { e.interactionMinimum = d }
}

// WithImmediate forces unbuffered printing.
func WithImmediate() Option {
	return func(e *Engine) { e.forceImmediate = true }
}

// WithRecorder adds an observer of entries and windows.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorders = append(e.recorders, r) }
}

// WithSequence sets the counter used to stamp Entry.Seq.
func WithSequence(s *Sequence) Option {
	return func(e *Engine) { e.seq = s }
}

// New creates an engine printing to console.
//
// The engine subscribes to the configured SignalSource. A source that
// cannot observe either signal type, a missing source, or a clock without
// high resolution all leave the engine in ModeImmediate. None of these is
// an error.
func New(console printer.Console, opts ...Option) *Engine {
	e := &Engine{
		printer:            printer.New(console),
		interactionMinimum: DefaultInteractionThreshold,
		flushDelay:         DefaultFlushDelay,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.seq == nil {
		e.seq = NewSequence()
	}
	if e.clock == nil {
		e.clock = NewSystemClock()
	}
	if e.scheduler == nil {
		if s, ok := e.clock.(Scheduler); ok {
			e.scheduler = s
		} else {
			e.scheduler = NewSystemClock()
		}
	}
	e.flush = debouncer{delay: e.flushDelay, sched: e.scheduler}

	e.observe()
	e.mode = e.detectMode()
	e.logger.Debug("engine ready",
		"mode", e.mode,
		"long_tasks", e.longTasksObserved,
		"interactions", e.interactionObserved,
	)
	return e
}

// observe subscribes to each signal type, ignoring unsupported ones.
func (e *Engine) observe() {
	if e.signals == nil {
		return
	}
	e.longTasksObserved = e.observed("long-task",
		e.signals.ObserveLongTasks(e.OnLongTasks))
	e.interactionObserved = e.observed("interaction",
		e.signals.ObserveInteractions(e.interactionMinimum, e.OnInteractions))
}

// observed reports whether a subscription succeeded. A missing capability
// is expected and logged at debug; any other failure is logged as a
// warning. Either way the engine degrades instead of failing.
func (e *Engine) observed(signal string, err error) bool {
	switch {
	case err == nil:
		return true
	case IsUnsupported(err):
		e.logger.Debug("timing signal unavailable", "signal", signal, "error", err)
	default:
		e.logger.Warn("timing signal subscription failed", "signal", signal, "error", err)
	}
	return false
}

func (e *Engine) detectMode() Mode {
	if e.forceImmediate {
		return ModeImmediate
	}
	if !e.longTasksObserved && !e.interactionObserved {
		return ModeImmediate
	}
	if r, ok := e.clock.(resolutionReporter); ok && !r.HighResolution() {
		return ModeImmediate
	}
	return ModeBuffered
}

// Clock returns the time source entries are stamped with.
func (e *Engine) Clock() Clock {
	return e.clock
}

// Mode returns how the engine disposes of entries.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetSink installs a sink override. Pass nil to restore default output.
func (e *Engine) SetSink(s Sink) {
	if s == nil {
		e.sink.Store(nil)
		return
	}
	e.sink.Store(&s)
}

// Emit stamps entry with the current time and sequence number and routes
// it to the sink, the printer, or the buffer.
func (e *Engine) Emit(entry ir.Entry) {
	entry.Timestamp = e.clock.Now()
	entry.Seq = e.seq.Next()

	for _, r := range e.recorders {
		e.record(r, entry)
	}

	if s := e.sink.Load(); s != nil {
		e.deliver(*s, entry)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode == ModeImmediate || e.closed {
		e.printer.PrintBatch(withoutEffectRuns([]ir.Entry{entry}))
		return
	}

	e.buffer = append(e.buffer, entry)
	e.flush.arm(e.onFlushTimer)
}

func (e *Engine) deliver(s Sink, entry ir.Entry) {
	defer guard(e.logger, "sink")
	s(entry)
}

func (e *Engine) record(r Recorder, entry ir.Entry) {
	defer guard(e.logger, "recorder")
	r.RecordEntry(entry)
}

// OnLongTasks handles one batch of completed long tasks. Entries before a
// task print individually without effect-run entries.
func (e *Engine) OnLongTasks(tasks []ir.LongTask) {
	windows := LongTaskWindows(tasks)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range windows {
		e.processWindow(w, true)
	}
}

// OnInteractions handles one batch of interaction reports. Entries before
// an interaction print individually, effect-run entries included.
func (e *Engine) OnInteractions(reports []ir.InteractionReport) {
	windows := InteractionWindows(reports, e.interactionMinimum)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range windows {
		e.processWindow(w, false)
	}
}

// processWindow partitions the buffer against w and prints.
// Must be called with mu held.
func (e *Engine) processWindow(w ir.Window, dropEffectRunsBefore bool) {
	before, during, after := Partition(e.buffer, w)
	e.buffer = after

	if dropEffectRunsBefore {
		before = withoutEffectRuns(before)
	}
	e.printer.PrintBatch(before)

	if len(during) == 0 {
		return
	}
	w.Mutations, w.Others = printer.Count(during)
	e.printer.PrintGroup(printer.GroupLabel(w), during)

	e.logger.Debug("window grouped",
		"source", w.Source,
		"label", w.Label,
		"entries", len(during),
		"retained", len(after),
	)
	for _, r := range e.recorders {
		e.recordWindow(r, w)
	}
}

func (e *Engine) recordWindow(r Recorder, w ir.Window) {
	defer guard(e.logger, "recorder")
	r.RecordWindow(w)
}

func (e *Engine) onFlushTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flush.fired()
	e.flushLocked()
}

// Flush drains the buffer now, exactly as the fallback timer would.
// Flushing an empty buffer is a no-op.
func (e *Engine) Flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushLocked()
}

func (e *Engine) flushLocked() {
	if len(e.buffer) == 0 {
		return
	}
	batch := e.buffer
	e.buffer = nil
	e.printer.PrintBatch(withoutEffectRuns(batch))
}

// FlushState returns the fallback timer state.
func (e *Engine) FlushState() FlushState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flush.state
}

// Buffered returns a copy of the entries awaiting disposition.
func (e *Engine) Buffered() []ir.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ir.Entry, len(e.buffer))
	copy(out, e.buffer)
	return out
}

// Close drains the buffer. Entries emitted afterwards print immediately.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushLocked()
	e.closed = true
}
