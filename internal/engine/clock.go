package engine

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic time source. Readings are offsets from an origin.
type Clock interface {
	Now() time.Duration
}

// Scheduler runs f once after d. There is no cancel: the engine's
// debouncer only ever arms a timer when none is pending.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// resolutionReporter is implemented by clocks that may lack high
// resolution. Engines built on a low-resolution clock run unbuffered.
type resolutionReporter interface {
	HighResolution() bool
}

// SystemClock reads the process monotonic clock and schedules with
// time.AfterFunc.
type SystemClock struct {
	origin time.Time
}

// NewSystemClock creates a clock whose origin is now.
func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

// Now returns the monotonic time elapsed since the origin.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.origin)
}

// AfterFunc schedules f on a runtime timer.
func (c *SystemClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// HighResolution reports true: time.Since uses the monotonic reading.
func (c *SystemClock) HighResolution() bool {
	return true
}

// Sequence is a monotonic logical counter used to stamp entries in
// emission order.
//
// Thread-safety: Sequence is safe for concurrent use.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next value. The first call on a new sequence returns 1.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last value handed out.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
