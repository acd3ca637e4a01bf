//go:build linux || darwin

package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTimer_Sleep verifies Sleep suspends for at least the duration.
func TestTimer_Sleep(t *testing.T) {
	d := newTestDispatcher(t)

	start := time.Now()
	require.NoError(t, NewTimer(d).Sleep(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 1, d.Stats().PooledTimers)
}

// TestTimer_SleepZero verifies non-positive durations still complete.
func TestTimer_SleepZero(t *testing.T) {
	d := newTestDispatcher(t)
	timer := NewTimer(d)
	require.NoError(t, timer.Sleep(0))
	require.NoError(t, timer.Sleep(-time.Second))
}

// TestTimer_InterruptedEarly verifies a 100ms sleep interrupted at 10ms
// observes cancellation near 10ms.
func TestTimer_InterruptedEarly(t *testing.T) {
	d := newTestDispatcher(t)
	g := NewContextGroup(d)

	var (
		sleepErr error
		elapsed  time.Duration
		sleeper  *Context
	)
	g.Spawn(func() {
		sleeper = d.CurrentContext()
		start := time.Now()
		sleepErr = NewTimer(d).Sleep(100 * time.Millisecond)
		elapsed = time.Since(start)
	})
	g.Spawn(func() {
		assert.NoError(t, NewTimer(d).Sleep(10*time.Millisecond))
		d.InterruptContext(sleeper)
	})

	require.NoError(t, g.Wait())
	require.ErrorIs(t, sleepErr, ErrInterrupted)
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.Less(t, elapsed, 80*time.Millisecond)

	// both timers went back to the pool, including the interrupted one
	assert.Equal(t, 2, d.Stats().PooledTimers)
}

// TestTimer_PoolReuse verifies sequential sleeps share one pooled timer, and
// that a reused timer is not left armed by an earlier interrupt.
func TestTimer_PoolReuse(t *testing.T) {
	d := newTestDispatcher(t)
	g := NewContextGroup(d)

	g.Spawn(func() {
		assert.ErrorIs(t, NewTimer(d).Sleep(5*time.Millisecond), ErrInterrupted)
	})
	require.NoError(t, d.Yield())
	g.Interrupt()
	require.NoError(t, g.Wait())
	require.Equal(t, 1, d.Stats().PooledTimers)

	// longer than the interrupted sleep would have been
	start := time.Now()
	require.NoError(t, NewTimer(d).Sleep(30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 1, d.Stats().PooledTimers)
}

// TestTimer_MaxPooledTimers verifies timers over the limit are closed.
func TestTimer_MaxPooledTimers(t *testing.T) {
	d := newTestDispatcher(t, WithMaxPooledTimers(1))
	g := NewContextGroup(d)
	for i := 0; i < 3; i++ {
		g.Spawn(func() {
			assert.NoError(t, NewTimer(d).Sleep(time.Millisecond))
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, d.Stats().PooledTimers)
}

// TestTimer_ConcurrentSleepOnOneTimer verifies one Timer admits a single
// sleeper.
func TestTimer_ConcurrentSleepOnOneTimer(t *testing.T) {
	d := newTestDispatcher(t)
	timer := NewTimer(d)

	var second error
	d.Spawn(func() {
		second = timer.Sleep(time.Millisecond)
	})
	require.NoError(t, timer.Sleep(5*time.Millisecond))
	assert.ErrorIs(t, second, ErrOperationPending)
}

// TestContextGroupTimeout_InterruptsGroup verifies the timeout interrupts a
// blocked member.
func TestContextGroupTimeout_InterruptsGroup(t *testing.T) {
	d := newTestDispatcher(t)
	g := NewContextGroup(d)

	var sleepErr error
	g.Spawn(func() {
		sleepErr = NewTimer(d).Sleep(time.Hour)
	})
	timeout := NewContextGroupTimeout(d, g, 10*time.Millisecond)

	start := time.Now()
	require.NoError(t, g.Wait())
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, sleepErr, ErrInterrupted)

	require.NoError(t, timeout.Close())
	assert.True(t, timeout.Fired())
}

// TestContextGroupTimeout_CloseBeforeFiring verifies closing early leaves the
// group alone.
func TestContextGroupTimeout_CloseBeforeFiring(t *testing.T) {
	d := newTestDispatcher(t)
	g := NewContextGroup(d)

	var sleepErr error
	g.Spawn(func() {
		sleepErr = NewTimer(d).Sleep(20 * time.Millisecond)
	})
	timeout := NewContextGroupTimeout(d, g, time.Hour)
	require.NoError(t, d.Yield())
	require.NoError(t, timeout.Close())
	assert.False(t, timeout.Fired())

	require.NoError(t, g.Wait())
	assert.NoError(t, sleepErr)
}

// TestTimer_InterruptAfterFireIsSticky verifies a sleep whose timer already
// fired completes normally when interrupted before it resumes, leaving the
// interrupt pending for the next suspension point.
func TestTimer_InterruptAfterFireIsSticky(t *testing.T) {
	d := newTestDispatcher(t)
	g := NewContextGroup(d)

	var (
		sleeper  *Context
		sleepErr = errNotRun
		sticky   bool
	)
	g.Spawn(func() {
		sleeper = d.CurrentContext()
		sleepErr = NewTimer(d).Sleep(time.Millisecond)
		sticky = d.Interrupted()
	})
	require.NoError(t, d.Yield())
	require.NotNil(t, sleeper)

	collectReady(t, d)
	d.InterruptContext(sleeper)

	require.NoError(t, g.Wait())
	assert.NoError(t, sleepErr)
	assert.True(t, sticky)
}
