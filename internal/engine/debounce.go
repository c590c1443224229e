package engine

import "time"

// DefaultFlushDelay is how long the buffer waits for a timing signal
// before the fallback flush drains it.
const DefaultFlushDelay = 100 * time.Millisecond

// FlushState is the fallback timer's state.
type FlushState int

const (
	// FlushIdle means no flush is scheduled.
	FlushIdle FlushState = iota
	// FlushPending means a flush timer is armed.
	FlushPending
)

func (s FlushState) String() string {
	if s == FlushPending {
		return "pending"
	}
	return "idle"
}

// debouncer arms at most one flush timer at a time.
//
// Transitions:
//
//	idle    --arm-->   pending (timer scheduled)
//	pending --arm-->   pending (no-op)
//	pending --fired--> idle
//
// Not safe for concurrent use; the engine mutex guards it.
type debouncer struct {
	state FlushState
	delay time.Duration
	sched Scheduler
}

// arm schedules fire unless a timer is already pending.
// It reports whether a new timer was scheduled.
func (d *debouncer) arm(fire func()) bool {
	if d.state == FlushPending {
		return false
	}
	d.state = FlushPending
	d.sched.AfterFunc(d.delay, fire)
	return true
}

func (d *debouncer) fired() {
	d.state = FlushIdle
}
