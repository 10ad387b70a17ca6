package core

import (
	"sync/atomic"
	"time"
)

// Clock is the millisecond time base of the firmware. Values wrap around
// after about 49 days; all comparisons use unsigned differences.
type Clock interface {
	Millis() uint32
}

// SystemClock counts milliseconds since it was created.
type SystemClock struct {
	boot time.Time
}

// NewSystemClock starts a clock at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{boot: time.Now()}
}

// Millis returns the time since boot.
func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.boot) / time.Millisecond)
}

// ManualClock is set explicitly (tests, simulation).
type ManualClock struct {
	ms atomic.Uint32
}

// Millis returns the current value.
func (c *ManualClock) Millis() uint32 {
	return c.ms.Load()
}

// Set sets the current time.
func (c *ManualClock) Set(ms uint32) {
	c.ms.Store(ms)
}

// Advance moves the clock forward and returns the new time.
func (c *ManualClock) Advance(ms uint32) uint32 {
	return c.ms.Add(ms)
}
