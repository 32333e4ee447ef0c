// Package testutil provides deterministic test doubles for the scheduler:
// a manually fired deferred-callback scheduler and a recording host.
package testutil

import "sync"

// ManualDeferred is a DeferredScheduler whose callbacks only run when the
// test fires them. This makes Async passes fully deterministic: tests
// assert "nothing happened yet", fire, then assert the committed result.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex. Callbacks run on the goroutine that calls Fire/FireAll, outside
// the mutex.
type ManualDeferred struct {
	mu      sync.Mutex
	pending []func()
}

// Schedule queues fn without running it.
func (d *ManualDeferred) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, fn)
}

// Pending returns the number of callbacks waiting to fire.
func (d *ManualDeferred) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Fire runs the oldest pending callback. Returns false if none is pending.
func (d *ManualDeferred) Fire() bool {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return false
	}
	fn := d.pending[0]
	d.pending = d.pending[1:]
	d.mu.Unlock()

	fn()
	return true
}

// FireAll runs pending callbacks until none remain, including callbacks
// scheduled by the callbacks themselves. Returns the number fired.
func (d *ManualDeferred) FireAll() int {
	fired := 0
	for d.Fire() {
		fired++
	}
	return fired
}
