// Package system provides the wall clocks used to stamp watch runs.
package system

import "time"

// Clock implements watch.Clock using time.Now. Readings are UTC and truncated
// to microseconds so they survive a JSON round trip unchanged.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Fixed is a clock frozen at a single instant, used for replays and tests.
type Fixed struct {
	At time.Time
}

// Now returns the frozen instant in UTC.
func (f Fixed) Now() time.Time {
	return f.At.UTC()
}
