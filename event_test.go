//go:build linux || darwin

package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEvent_SetWakesAllWaiters verifies a single Set releases every waiter.
func TestEvent_SetWakesAllWaiters(t *testing.T) {
	d := newTestDispatcher(t)
	ev := NewEvent(d)
	g := NewContextGroup(d)

	var woken int
	for i := 0; i < 3; i++ {
		g.Spawn(func() {
			assert.NoError(t, ev.Wait())
			woken++
		})
	}
	require.NoError(t, d.Yield())
	assert.Zero(t, woken)
	assert.False(t, ev.Get())

	ev.Set()
	assert.True(t, ev.Get())
	require.NoError(t, g.Wait())
	assert.Equal(t, 3, woken)
}

// TestEvent_WaitWhenSet verifies waiting on a set event does not suspend.
func TestEvent_WaitWhenSet(t *testing.T) {
	d := newTestDispatcher(t)
	ev := NewEvent(d)
	ev.Set()
	require.NoError(t, ev.Wait())

	ev.Clear()
	assert.False(t, ev.Get())
}

// TestEvent_InterruptedWaiterIsUnlinked verifies an interrupted waiter
// returns ErrInterrupted and is not woken again by Set.
func TestEvent_InterruptedWaiterIsUnlinked(t *testing.T) {
	d := newTestDispatcher(t)
	ev := NewEvent(d)
	g := NewContextGroup(d)

	var waitErr error
	var resumes int
	g.Spawn(func() {
		waitErr = ev.Wait()
		resumes++
	})
	require.NoError(t, d.Yield())
	require.Len(t, ev.waiters, 1)

	g.Interrupt()
	assert.Empty(t, ev.waiters)
	require.NoError(t, g.Wait())
	assert.ErrorIs(t, waitErr, ErrInterrupted)

	ev.Set()
	require.NoError(t, d.Yield())
	assert.Equal(t, 1, resumes)
}

// TestEvent_StickyInterrupt verifies an earlier interrupt fails the wait
// without suspending.
func TestEvent_StickyInterrupt(t *testing.T) {
	d := newTestDispatcher(t)
	ev := NewEvent(d)
	d.Interrupt()
	require.ErrorIs(t, ev.Wait(), ErrInterrupted)
	assert.False(t, d.Interrupted())
}

// TestEvent_SetFromTimer verifies a waiter in the main Context is woken by
// another Context.
func TestEvent_SetFromTimer(t *testing.T) {
	d := newTestDispatcher(t)
	ev := NewEvent(d)

	d.Spawn(func() {
		assert.NoError(t, NewTimer(d).Sleep(5*time.Millisecond))
		ev.Set()
	})

	start := time.Now()
	require.NoError(t, ev.Wait())
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

// TestEvent_InterruptAfterSetIsSticky verifies a waiter already woken by Set
// returns success when interrupted before it resumes.
func TestEvent_InterruptAfterSetIsSticky(t *testing.T) {
	d := newTestDispatcher(t)
	e := NewEvent(d)
	g := NewContextGroup(d)

	var (
		waiter  *Context
		waitErr = errNotRun
		sticky  bool
	)
	g.Spawn(func() {
		waiter = d.CurrentContext()
		waitErr = e.Wait()
		sticky = d.Interrupted()
	})
	require.NoError(t, d.Yield())

	e.Set()
	d.InterruptContext(waiter)

	require.NoError(t, g.Wait())
	assert.NoError(t, waitErr)
	assert.True(t, sticky)
}

// TestEvent_ThreadChecks verifies every Event method rejects foreign
// goroutines.
func TestEvent_ThreadChecks(t *testing.T) {
	d := newTestDispatcher(t)
	e := NewEvent(d)

	for name, call := range map[string]func(){
		"Get":   func() { e.Get() },
		"Set":   e.Set,
		"Clear": e.Clear,
	} {
		t.Run(name, func(t *testing.T) {
			recovered := make(chan any, 1)
			go func() {
				defer func() { recovered <- recover() }()
				call()
			}()
			assert.Equal(t, ErrWrongGoroutine, <-recovered)
		})
	}
	assert.False(t, e.Get())
}
