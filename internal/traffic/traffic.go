// Package traffic keeps sliding windows of fetch outcomes. The poll loop
// records one outcome per location per cycle; the preview server records
// rate-limit denials. Health and metrics read the same windows.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a recorded event.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeDenied
)

// retention bounds how long timestamps are kept; health windows longer than
// this see only the retained part.
const retention = 6 * time.Hour

var defaultTracker = NewTracker(time.Now)

// RecordSuccess records a location fetch that decoded and rendered.
func RecordSuccess() { defaultTracker.Record(OutcomeSuccess) }

// RecordError records a location fetch that failed (transport or payload).
func RecordError() { defaultTracker.Record(OutcomeError) }

// RecordDenied records a preview request rejected by the rate limiter.
func RecordDenied() { defaultTracker.Record(OutcomeDenied) }

// ErrorRate returns (errorCount, totalCount) within the window. Denials are excluded.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.Count(OutcomeDenied, window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() { defaultTracker.Reset() }

// Tracker maintains per-outcome timestamp windows.
type Tracker struct {
	mu    sync.Mutex
	now   func() time.Time
	times map[Outcome][]time.Time
}

// NewTracker returns a tracker using now as its clock.
func NewTracker(now func() time.Time) *Tracker {
	return &Tracker{now: now, times: make(map[Outcome][]time.Time)}
}

// Record appends an outcome at the current time and prunes expired entries.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.times[o] = append(t.times[o], now)
	t.pruneLocked(now)
}

// Count returns the number of o outcomes not older than window.
func (t *Tracker) Count(o Outcome, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.times[o], t.now().Add(-window))
}

// ErrorRate returns (errorCount, totalCount) within the window, where total is
// successes plus errors.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errs := countSince(t.times[OutcomeError], cutoff)
	return errs, errs + countSince(t.times[OutcomeSuccess], cutoff)
}

// Reset clears all outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = make(map[Outcome][]time.Time)
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for o, times := range t.times {
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[o] = append(times[:0], times[i:]...)
		}
	}
}
