package engine

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic time source. Only differences between readings
// matter.
type Clock interface {
	Now() time.Duration
}

// MonotonicClock reads the process monotonic clock.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() time.Duration { return time.Since(c.start) }

// ManualClock only moves when told to.
type ManualClock struct {
	now atomic.Int64
}

func (c *ManualClock) Now() time.Duration { return time.Duration(c.now.Load()) }

func (c *ManualClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

func (c *ManualClock) Set(d time.Duration) { c.now.Store(int64(d)) }
