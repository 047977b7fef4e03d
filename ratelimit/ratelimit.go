// Package ratelimit implements the sliding-window per-identity attempt
// counter used by SSHServer (per remote IP). It is
// deliberately small and map-backed, following the registry-behind-a-mutex
// idiom the rest of the forge core uses for shared mutable state.
package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time.Now so the sliding window is testable without real
// sleeps.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the real wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Limiter is a sliding-window counter: at most MaxAttempts failures are
// permitted per identity within Window; entries older than Window are
// evicted lazily on access and by an explicit Sweep call.
type Limiter struct {
	MaxAttempts int
	Window      time.Duration
	clock       Clock

	mu      sync.Mutex
	entries map[string][]time.Time
}

// New creates a Limiter with the given limits using the real system clock.
func New(maxAttempts int, window time.Duration) *Limiter {
	return NewWithClock(maxAttempts, window, SystemClock{})
}

// NewWithClock creates a Limiter using an injected Clock, for deterministic
// tests of the sliding-window property in spec.md §8.
func NewWithClock(maxAttempts int, window time.Duration, clock Clock) *Limiter {
	return &Limiter{
		MaxAttempts: maxAttempts,
		Window:      window,
		clock:       clock,
		entries:     make(map[string][]time.Time),
	}
}

// Allow records a failed attempt for identity and reports whether the
// identity remains under its attempt limit. It returns false once the
// (MaxAttempts+1)th failure within the window occurs.
func (l *Limiter) Allow(identity string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	attempts := l.evictLocked(identity, now)
	if len(attempts) >= l.MaxAttempts {
		l.entries[identity] = attempts
		return false
	}

	l.entries[identity] = append(attempts, now)
	return true
}

// Count reports the number of non-evicted attempts currently tracked for
// identity, for observability.
func (l *Limiter) Count(identity string) int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	attempts := l.evictLocked(identity, now)
	l.entries[identity] = attempts
	return len(attempts)
}

// Sweep evicts all expired entries across every tracked identity and
// removes identities left with zero attempts. Intended to be called
// periodically by a background goroutine.
func (l *Limiter) Sweep() {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for identity := range l.entries {
		attempts := l.evictLocked(identity, now)
		if len(attempts) == 0 {
			delete(l.entries, identity)
		} else {
			l.entries[identity] = attempts
		}
	}
}

// evictLocked returns the attempts for identity with entries older than
// Window removed. Caller must hold l.mu.
func (l *Limiter) evictLocked(identity string, now time.Time) []time.Time {
	attempts := l.entries[identity]
	if len(attempts) == 0 {
		return attempts
	}

	cutoff := now.Add(-l.Window)
	kept := attempts[:0:0]
	for _, t := range attempts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
