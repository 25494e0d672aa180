package timing

import "time"

// Clock is a monotonic time source. Callers sample it once per operation
// and compare samples as opaque durations.
type Clock interface {
	Now() time.Duration
}

// MonotonicClock measures time elapsed since its creation.
type MonotonicClock struct {
	origin time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.origin)
}
