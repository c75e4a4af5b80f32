// Package clock provides the engine's server-authoritative time source.
//
// Client timestamps are never trusted; every "is lot closed?" decision
// goes through a Clock. The default implementation wraps time.Now and
// never runs backward, matching the teacher's use of time.Now() at
// every comparison point in handlers/auction.go.
package clock

import "time"

// Clock is the only authority for "now" inside the engine, closer and
// invoicer. Tests substitute FixedClock/OffsetClock for deterministic
// property tests (§8).
type Clock interface {
	Now() time.Time
}

// SystemClock delegates to time.Now. It is monotonic-safe: Go's
// time.Time carries a monotonic reading alongside the wall clock, and
// comparisons (After/Before/Sub) use it automatically, so SystemClock
// never observes time running backward relative to itself.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Useful for boundary tests
// (§8: "bid at current_close_at exactly rejected").
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (f FixedClock) Now() time.Time { return f.At }

// OffsetClock returns SystemClock's time shifted by a fixed delta, for
// simulating clock skew in tests without losing monotonic behavior
// within a single test run.
type OffsetClock struct {
	Delta time.Duration
}

// Now returns time.Now() shifted by Delta.
func (o OffsetClock) Now() time.Time { return time.Now().Add(o.Delta) }
