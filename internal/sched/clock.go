package sched

import "sync/atomic"

// Clock is the monotonic logical clock for update and pass ordering.
//
// Every pending update is stamped with an expiration marker from Next() at
// creation, and every committed pass takes its sequence number from the same
// clock. Ordering is therefore explicit and deterministic; wall-clock time
// is never consulted.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// although the scheduler's single-logical-thread design means calls are
// normally serialized anyway.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments the clock and returns the new value.
// Each call returns a unique, strictly increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the latest value handed out without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
