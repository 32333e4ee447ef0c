package sched

// schedulerContext is the scheduler's process-scoped mutable state: the
// batching/flush stack plus the deferred-callback guard.
//
// INVARIANTS:
//   - Depth counters never go negative; an underflow means a session was
//     restored twice and is a fatal assertion, not a runtime error.
//   - Every mutation happens through a begin/restore session pair. The
//     restore closure runs on all exit paths (callers defer it), so panics
//     inside user callbacks unwind the context correctly.
type schedulerContext struct {
	// batchDepth counts open RunBatched/FlushControlled sessions. While it
	// is above zero sync updates accumulate instead of flushing inline.
	batchDepth int

	// unbatching forces inline flushing even inside an open batching
	// session. Set around legacy initial mounts.
	unbatching bool

	// flushDepth counts explicit in-progress FlushSync calls.
	flushDepth int

	// inLifecycle is set while the work loop runs effect application or a
	// completed update's Done callback. FlushSync checks it to reject
	// reentrant flushes.
	inLifecycle bool

	// asyncDepth counts open async-zone scopes. Updates requested inside
	// one default to PriorityAsync.
	asyncDepth int

	// callbackPending is the single outstanding deferred-callback handle:
	// while set, further async scheduling requests coalesce into the
	// already-scheduled callback.
	callbackPending bool
}

// beginBatch opens a batching session. The returned restore must run on
// every exit path; it only restores depth, the flush decision at the
// outermost boundary belongs to the caller.
func (s *Scheduler) beginBatch() func() {
	s.ctx.batchDepth++
	return func() {
		s.ctx.batchDepth--
		if s.ctx.batchDepth < 0 {
			panic("sched: batch depth underflow")
		}
	}
}

// beginFlush opens an explicit flush session.
func (s *Scheduler) beginFlush() func() {
	s.ctx.flushDepth++
	return func() {
		s.ctx.flushDepth--
		if s.ctx.flushDepth < 0 {
			panic("sched: flush depth underflow")
		}
	}
}

// beginLifecycle marks the scope where the work loop hands control to
// lifecycle callbacks (effect application, Done callbacks).
func (s *Scheduler) beginLifecycle() func() {
	prev := s.ctx.inLifecycle
	s.ctx.inLifecycle = true
	return func() {
		s.ctx.inLifecycle = prev
	}
}

// beginUnbatched forces inline flushing for the duration of the scope.
func (s *Scheduler) beginUnbatched() func() {
	prev := s.ctx.unbatching
	s.ctx.unbatching = true
	return func() {
		s.ctx.unbatching = prev
	}
}

// beginAsyncZone opens an async-subtree scope.
func (s *Scheduler) beginAsyncZone() func() {
	s.ctx.asyncDepth++
	return func() {
		s.ctx.asyncDepth--
		if s.ctx.asyncDepth < 0 {
			panic("sched: async zone depth underflow")
		}
	}
}
