// Package ratelimit bounds outbound request rate with a sliding window.
//
// The limiter tracks the timestamps of admitted requests over the
// trailing 60 seconds. A sliding window (rather than fixed-aligned
// buckets) means a burst straddling a bucket boundary can never exceed
// the budget: at any instant, at most maxPerWindow admissions exist in
// the trailing window.
//
// Wait never fails on its own — it only delays. The one failure mode
// is caller cancellation via the context.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// windowDuration is the width of the sliding window.
	windowDuration = 60 * time.Second

	// boundaryBuffer pads the computed wait so a waker does not race
	// the expiry of the oldest timestamp on coarse clocks.
	boundaryBuffer = 100 * time.Millisecond
)

// Limiter admits requests at a bounded rate over a sliding window.
// A single Limiter is shared by every outbound call the process makes,
// so all mutation of the timestamp window happens under one mutex.
type Limiter struct {
	mu       sync.Mutex
	enabled  bool
	max      int
	window   time.Duration
	admitted []time.Time

	// now and sleep are indirections for tests. Same pattern as the
	// package-level timeNow var elsewhere in this codebase, but kept
	// per-instance so concurrent tests don't interfere.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Snapshot is a point-in-time view of the limiter, used by the status
// resource. It carries no mutable state.
type Snapshot struct {
	Enabled      bool `json:"enabled"`
	MaxPerWindow int  `json:"maxPerWindow"`
	InWindow     int  `json:"inWindow"`
}

// New creates a limiter admitting at most maxPerWindow requests per
// sliding 60-second window. When disabled, Wait returns immediately.
func New(enabled bool, maxPerWindow int) *Limiter {
	return &Limiter{
		enabled: enabled,
		max:     maxPerWindow,
		window:  windowDuration,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Wait blocks until the caller is within the rate budget, then records
// the admission and returns. It returns an error only if ctx is
// cancelled while waiting.
//
// Prune, admission check, and append happen inside one critical
// section: the sleep is a suspension point, and two sleepers waking in
// the wrong order could otherwise both append and overshoot the budget.
// After sleeping, the admission check runs again rather than appending
// blindly.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	for {
		l.mu.Lock()
		if !l.enabled {
			l.mu.Unlock()
			return nil
		}

		now := l.now()
		l.prune(now)

		if len(l.admitted) < l.max {
			l.admitted = append(l.admitted, now)
			l.mu.Unlock()
			return nil
		}

		// Window is full. Wait until the oldest admission ages out,
		// plus a small buffer against clock granularity.
		oldest := l.admitted[0]
		wait := l.window - now.Sub(oldest) + boundaryBuffer
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Snapshot reports the limiter's current occupancy.
func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	return Snapshot{
		Enabled:      l.enabled,
		MaxPerWindow: l.max,
		InWindow:     len(l.admitted),
	}
}

// prune drops admissions older than the window. Callers must hold mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.admitted) && !l.admitted[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.admitted = append(l.admitted[:0], l.admitted[i:]...)
	}
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
