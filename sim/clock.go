// Package sim provides simulated dispenser hardware: a clock, a stepper-driven wheel with an optical
// index mark, a vibration sensor, and a hopper that drops pills into it. It lets the real control code
// run on a host, in tests and in the simulator command.
package sim

import (
	"sync"
	"time"
)

// Clock is a manual clock. Sleep advances it instantly, so code paced by the clock runs without
// waiting. A non-zero Scale makes Sleep also block for d/Scale of real time
type Clock struct {
	mu    sync.Mutex
	now   time.Time
	Scale int
}

// NewClock starts a Clock at a fixed instant
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Sleep(d time.Duration) {
	if c.Scale > 0 {
		time.Sleep(d / time.Duration(c.Scale))
	}
	c.Advance(d)
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
