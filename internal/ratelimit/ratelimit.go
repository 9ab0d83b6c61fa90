// Package ratelimit implements the per-session sliding-window counter.
package ratelimit

import "time"

// Limiter admits at most max events per trailing window. Refused events are
// not recorded, so a client hammering the limiter does not extend its own
// penalty. A Limiter is owned by a single session and is only touched from
// that session's read path; it needs no locking.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time
	events []time.Time
}

// New returns a Limiter using the wall clock.
func New(max int, window time.Duration) *Limiter {
	return NewWithClock(max, window, time.Now)
}

// NewWithClock returns a Limiter with an injected clock for tests.
func NewWithClock(max int, window time.Duration, now func() time.Time) *Limiter {
	return &Limiter{max: max, window: window, now: now}
}

// Allow records and admits the event unless the trailing window is full.
func (l *Limiter) Allow() bool {
	now := l.now()
	l.events = pruneTime(l.events, now.Add(-l.window))
	if len(l.events) >= l.max {
		return false
	}
	l.events = append(l.events, now)
	return true
}

// pruneTime removes entries older than cutoff from a sorted time slice.
func pruneTime(s []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(s) && s[i].Before(cutoff) {
		i++
	}
	return s[i:]
}
