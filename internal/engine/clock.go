package engine

import "time"

// Clock is the engine's time source.
//
// Every timestamp the engine writes (join times, last updates, unlock times,
// status transitions) comes from one Clock reading taken under the
// challenge lock, so tests can drive time explicitly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant. Used by the CLI --now flag.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return time.Time(c).UTC()
}
