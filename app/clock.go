package app

import (
	"time"

	"github.com/loov/hrtime"
)

// FrameClock measures frame deltas on the high-resolution timer and
// aggregates frame rate over fixed sampling windows.
type FrameClock struct {
	now func() time.Duration

	start time.Duration
	last  time.Duration

	windowStart  time.Duration
	windowFrames int
}

func NewFrameClock() *FrameClock {
	return newFrameClock(hrtime.Now)
}

func newFrameClock(now func() time.Duration) *FrameClock {
	t := now()
	return &FrameClock{now: now, start: t, last: t, windowStart: t}
}

// Tick marks the start of a frame and returns the time since the previous
// Tick.
func (c *FrameClock) Tick() time.Duration {
	t := c.now()
	delta := t - c.last
	c.last = t
	c.windowFrames++
	return delta
}

// Elapsed is the time since the clock was created.
func (c *FrameClock) Elapsed() time.Duration {
	return c.now() - c.start
}

// Sample returns the frame rate over the current window once at least
// interval has passed, and starts a new window.
func (c *FrameClock) Sample(interval time.Duration) (float64, bool) {
	if interval <= 0 {
		return 0, false
	}
	t := c.now()
	span := t - c.windowStart
	if span < interval {
		return 0, false
	}
	fps := float64(c.windowFrames) / span.Seconds()
	c.windowStart = t
	c.windowFrames = 0
	return fps, true
}
