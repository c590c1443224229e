package testutil

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a deterministic time source and scheduler for tests.
//
// Time only moves when Advance or Set is called. Timers scheduled with
// AfterFunc fire during Advance, in due order, on the caller's goroutine.
//
// Thread-safety: all methods are safe for concurrent use. Timer callbacks
// run without the internal lock held.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []manualTimer
	nextID int
	lowRes bool
}

type manualTimer struct {
	id  int
	due time.Duration
	fn  func()
}

// NewManualClock creates a clock reading 0 with no timers.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// NewLowResolutionClock creates a manual clock that reports itself as
// lacking high resolution.
func NewLowResolutionClock() *ManualClock {
	return &ManualClock{lowRes: true}
}

// Now returns the current reading.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// HighResolution reports whether the clock claims high resolution.
func (c *ManualClock) HighResolution() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.lowRes
}

// AfterFunc schedules fn to run once the clock reaches now+d.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.timers = append(c.timers, manualTimer{id: c.nextID, due: c.now + d, fn: fn})
}

// Advance moves the clock forward by d, firing every timer that comes due.
// Timers scheduled by a firing callback also fire if they fall in range.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	c.advanceTo(target)
}

// Set moves the clock to an absolute reading. Moving backwards is ignored.
func (c *ManualClock) Set(t time.Duration) {
	c.advanceTo(t)
}

func (c *ManualClock) advanceTo(target time.Duration) {
	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].due == c.timers[j].due {
				return c.timers[i].id < c.timers[j].id
			}
			return c.timers[i].due < c.timers[j].due
		})
		if len(c.timers) == 0 || c.timers[0].due > target {
			if target > c.now {
				c.now = target
			}
			c.mu.Unlock()
			return
		}
		t := c.timers[0]
		c.timers = c.timers[1:]
		if t.due > c.now {
			c.now = t.due
		}
		c.mu.Unlock()

		t.fn()
	}
}

// Pending returns the number of timers not yet fired.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
