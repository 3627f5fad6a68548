package clock

import (
	"sync"
	"time"
)

// VirtualClock is a controllable clock for deterministic replay tests.
// It allows advancing time instantly without waiting, so scheduled
// deliveries can be driven step by step.
//
// Thread-safe for concurrent use.
type VirtualClock struct {
	mu      sync.RWMutex
	current time.Time
	nextID  uint64
	waiters []waiter
}

type waiter struct {
	id       uint64
	deadline time.Time
	ch       chan time.Time
}

// NewVirtualClock creates a VirtualClock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{
		current: start,
	}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Since returns the virtual duration elapsed since t.
func (c *VirtualClock) Since(t time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Sub(t)
}

// NewTimer returns a Timer bound to virtual time. A zero or negative
// duration fires immediately.
func (c *VirtualClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	t := &virtualTimer{
		clock: c,
		id:    c.nextID,
		ch:    make(chan time.Time, 1),
	}

	if d <= 0 {
		t.ch <- c.current
		return t
	}

	c.waiters = append(c.waiters, waiter{
		id:       t.id,
		deadline: c.current.Add(d),
		ch:       t.ch,
	})
	return t
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *VirtualClock) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.waiters)
}

// Advance moves the virtual clock forward by the given duration.
// It fires any waiters whose deadlines have been reached.
// Panics if d is negative.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	c.drainWaiters()
}

// drainWaiters fires all waiters whose deadline is at or before the current time.
// Must be called with c.mu held.
func (c *VirtualClock) drainWaiters() {
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.deadline.After(c.current) {
			w.ch <- c.current
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
}

// remove drops the waiter with the given id. Reports whether it was pending.
func (c *VirtualClock) remove(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, w := range c.waiters {
		if w.id == id {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

type virtualTimer struct {
	clock *VirtualClock
	id    uint64
	ch    chan time.Time
}

func (t *virtualTimer) C() <-chan time.Time { return t.ch }

func (t *virtualTimer) Stop() bool { return t.clock.remove(t.id) }
