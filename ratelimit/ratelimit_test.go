package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestLimiterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := NewWithClock(3, 10*time.Second, clock)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("1.2.3.4"), "attempt %d should be allowed", i)
	}

	require.False(t, l.Allow("1.2.3.4"), "4th attempt within window must be rejected")

	clock.Advance(11 * time.Second)
	require.True(t, l.Allow("1.2.3.4"), "attempt after window elapses must be allowed")
}

func TestLimiterIdentitiesAreIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := NewWithClock(1, time.Minute, clock)

	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
}

func TestSweepEvictsExpiredEntries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := NewWithClock(5, time.Second, clock)

	l.Allow("x")
	require.Equal(t, 1, l.Count("x"))

	clock.Advance(2 * time.Second)
	l.Sweep()

	l.mu.Lock()
	_, exists := l.entries["x"]
	l.mu.Unlock()
	require.False(t, exists, "sweep should remove identities with no live attempts")
}
