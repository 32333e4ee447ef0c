package sched

import "log/slog"

// performWork drains eligible work across all roots until none remains.
//
// Selection: roots holding Sync work are served before any root whose best
// class is lower; attach order breaks ties. Each iteration runs one pass,
// and lifecycle callbacks may enqueue more work for the loop to pick up, so
// the cascade quota bounds the iteration count.
func (s *Scheduler) performWork(min Priority) error {
	passes := 0
	for {
		root := s.registry.nextRootWithWork(min)
		if root == nil {
			return nil
		}

		passes++
		if passes > s.maxNestedPasses {
			return newUpdateDepthError(root.Container, passes, s.maxNestedPasses)
		}

		if err := s.runPass(root, min); err != nil {
			return err
		}
	}
}

// flushRoot drains one root's eligible work, leaving other roots' queues
// untouched. Used by unbatched scopes, where flushing the whole registry
// would make an open batching session's work visible early.
func (s *Scheduler) flushRoot(root *Root, min Priority) error {
	passes := 0
	for root.queue.HasWorkAt(min) && !root.inFlush {
		passes++
		if passes > s.maxNestedPasses {
			return newUpdateDepthError(root.Container, passes, s.maxNestedPasses)
		}

		if err := s.runPass(root, min); err != nil {
			return err
		}
	}
	return nil
}

// runPass executes one pass for root: drain, fold, reconcile once, apply
// effects, commit.
//
// Atomicity: the folded state is committed only after both collaborator
// calls succeed. On failure the root keeps its previous state, the drained
// updates stay consumed (at-most-once application), and the error
// propagates after the context unwinds.
func (s *Scheduler) runPass(root *Root, min Priority) error {
	if root.inFlush {
		// Selection skips mid-pass roots; reaching here means the guard
		// was bypassed.
		panic("sched: overlapping pass on container " + root.Container)
	}

	updates := root.queue.Drain(min)
	if len(updates) == 0 {
		return nil
	}

	root.inFlush = true
	defer func() { root.inFlush = false }()

	// Drain orders by class, so the first update carries the pass's class.
	passClass := updates[0].Priority

	state := root.state
	for _, u := range updates {
		if u.Apply != nil {
			state = u.Apply(state)
		}
	}

	fx, err := s.host.Reconcile(root.Container, state)
	if err != nil {
		slog.Error("reconcile failed",
			"container", root.Container,
			"priority", passClass.String(),
			"updates", len(updates),
			"error", err,
		)
		return &PassError{Container: root.Container, Phase: PhaseReconcile, Err: err}
	}

	if err := s.applyEffects(root, fx); err != nil {
		slog.Error("effect application failed",
			"container", root.Container,
			"priority", passClass.String(),
			"updates", len(updates),
			"error", err,
		)
		return &PassError{Container: root.Container, Phase: PhaseEffects, Err: err}
	}

	root.state = state
	root.mounted = true
	seq := s.clock.Next()

	s.recordPass(PassRecord{
		Seq:         seq,
		RunToken:    s.runToken,
		Container:   root.Container,
		Priority:    passClass.String(),
		UpdateCount: len(updates),
	})

	slog.Debug("pass committed",
		"container", root.Container,
		"seq", seq,
		"priority", passClass.String(),
		"updates", len(updates),
	)

	s.runDoneCallbacks(updates)
	return nil
}

// applyEffects hands the reconciliation result to the host in lifecycle
// scope: component code the host calls back into may dispatch updates, but
// FlushSync from there is rejected as reentrant.
func (s *Scheduler) applyEffects(root *Root, fx Effects) error {
	restore := s.beginLifecycle()
	defer restore()
	return s.host.ApplyEffects(root.Container, fx)
}

// runDoneCallbacks runs completion callbacks for the committed updates, in
// application order, in lifecycle scope.
func (s *Scheduler) runDoneCallbacks(updates []Update) {
	restore := s.beginLifecycle()
	defer restore()

	for _, u := range updates {
		if u.Done != nil {
			u.Done()
		}
	}
}

// recordPass forwards a committed pass to the recorder, if any. Recorder
// failures are logged, never propagated: journaling is observability, not
// part of the pass.
func (s *Scheduler) recordPass(rec PassRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordPass(rec); err != nil {
		slog.Error("pass journal write failed",
			"container", rec.Container,
			"seq", rec.Seq,
			"error", err,
		)
	}
}
