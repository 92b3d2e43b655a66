package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a ManualClock: a Monday at 08:00 UTC.
var Epoch = time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)

// ManualClock is a wall clock that only moves when told to.
//
// It satisfies engine.Clock, so tests control every timestamp the engine
// writes: join times, last updates, unlock times and expiry.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock reading start. A zero start means Epoch.
func NewManualClock(start time.Time) *ManualClock {
	if start.IsZero() {
		start = Epoch
	}
	return &ManualClock{now: start.UTC()}
}

// Now returns the current reading.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new reading.
//
// Panics on a negative d: time never runs backwards in a test either.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	if d < 0 {
		panic("ManualClock: negative advance")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// AdvanceDays moves the clock forward by n whole days.
func (c *ManualClock) AdvanceDays(n int) time.Time {
	return c.Advance(time.Duration(n) * 24 * time.Hour)
}

// Set jumps to t. Unlike Advance it may move backwards; scenario runners use
// it to replay absolute timestamps.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
