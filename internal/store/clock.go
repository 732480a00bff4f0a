package store

import "sync/atomic"

// Clock hands out the logical sequence numbers that order audit rows.
type Clock interface {
	Next() int64
	Current() int64
}

// LogicalClock is a monotonic Clock. Safe for concurrent use.
type LogicalClock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *LogicalClock {
	return &LogicalClock{}
}

// NewClockAt creates a clock whose first Next returns start+1. Used when
// reopening a log.
func NewClockAt(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}
