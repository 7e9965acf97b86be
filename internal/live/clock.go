package live

import "sync/atomic"

// Clock is a monotonic logical clock. Every commit event published to a
// Tracker is stamped with a strictly increasing sequence number from it, so
// delivery order can be checked against commit order.
//
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments the clock and returns the new sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
