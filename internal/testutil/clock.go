package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a resettable logical clock for tests.
//
// It satisfies hooks.Sequencer, so a dispatcher built with it stamps
// events 1, 2, 3... on every run of the same scenario.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock whose first Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next call to Next() returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// FixedTime returns a wall clock frozen at t, for store.WithClock.
func FixedTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
