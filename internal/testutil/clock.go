package testutil

import (
	"sync"
	"time"
)

// FakeClock hands out timers that only fire when the test says so.
type FakeClock struct {
	mu     sync.Mutex
	timers []*FakeTimer
}

// FakeTimer is a timer created by FakeClock.AfterFunc.
type FakeTimer struct {
	clock   *FakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

// AfterFunc registers f. It runs on the next Fire or FireAll.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *FakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &FakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Stop prevents the timer from firing. It reports whether the timer was
// still pending.
func (t *FakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Duration returns the delay the timer was created with.
func (t *FakeTimer) Duration() time.Duration {
	return t.d
}

// Pending counts timers that were neither stopped nor fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Created counts every timer handed out so far.
func (c *FakeClock) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// FireAll runs every pending timer on the calling goroutine and returns how
// many ran.
func (c *FakeClock) FireAll() int {
	c.mu.Lock()
	var due []*FakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

// FireStale runs a timer even if it was stopped, simulating a callback that
// had already started when Stop was called.
func (c *FakeClock) FireStale(t *FakeTimer) {
	c.mu.Lock()
	t.fired = true
	c.mu.Unlock()
	t.f()
}
