package pipe

import "sync/atomic"

// Sequencer stamps recorded events and actions with a logical sequence
// number. Implemented by Clock and testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock. The first Next returns 1.
//
// Journal entries are ordered by seq, never by wall-clock time, so a replay
// of the same events produces the same sequence.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
