package sched

import "time"

// DeferredScheduler is the host-provided "run this soon, off the current
// call" primitive used for Task and Async work.
//
// The scheduler guarantees at most one outstanding callback per Scheduler
// (the callbackPending guard coalesces requests), so implementations only
// need to run the callback exactly once, eventually, on any goroutine. The
// core makes no assumption about timer granularity.
type DeferredScheduler interface {
	Schedule(fn func())
}

// TimerScheduler is the production DeferredScheduler, backed by the runtime
// timer facility.
type TimerScheduler struct {
	// Delay before the callback fires. Zero means "next timer tick".
	Delay time.Duration
}

// Schedule implements DeferredScheduler.
func (t TimerScheduler) Schedule(fn func()) {
	time.AfterFunc(t.Delay, fn)
}
