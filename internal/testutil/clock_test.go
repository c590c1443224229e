package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_AdvanceFiresDueTimers(t *testing.T) {
	c := NewManualClock()
	var fired []string

	c.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "a") })
	c.AfterFunc(5*time.Millisecond, func() { fired = append(fired, "b") })
	assert.Equal(t, 2, c.Pending())

	c.Advance(7 * time.Millisecond)
	assert.Equal(t, []string{"b"}, fired)
	assert.Equal(t, 7*time.Millisecond, c.Now())

	c.Advance(3 * time.Millisecond)
	assert.Equal(t, []string{"b", "a"}, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestManualClock_NowDuringCallbackIsDueTime(t *testing.T) {
	c := NewManualClock()
	var at time.Duration
	c.AfterFunc(4*time.Millisecond, func() { at = c.Now() })

	c.Advance(20 * time.Millisecond)
	assert.Equal(t, 4*time.Millisecond, at)
	assert.Equal(t, 20*time.Millisecond, c.Now())
}

func TestManualClock_RescheduleFromCallback(t *testing.T) {
	c := NewManualClock()
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			c.AfterFunc(time.Millisecond, tick)
		}
	}
	c.AfterFunc(time.Millisecond, tick)

	c.Advance(10 * time.Millisecond)
	assert.Equal(t, 3, count)
}

func TestManualClock_SetIgnoresBackwards(t *testing.T) {
	c := NewManualClock()
	c.Set(50 * time.Millisecond)
	c.Set(10 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, c.Now())
}

func TestManualClock_Resolution(t *testing.T) {
	assert.True(t, NewManualClock().HighResolution())
	assert.False(t, NewLowResolutionClock().HighResolution())
}

func TestFixedSessionGenerator(t *testing.T) {
	assert.Equal(t, "s-1", NewFixedSessionGenerator("s-1").Generate())
	assert.Equal(t, "test-session-default", NewFixedSessionGenerator("").Generate())
}
