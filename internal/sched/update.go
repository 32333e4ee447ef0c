package sched

// State is the opaque per-root state the scheduler folds updates into.
// The scheduler never inspects it; only Apply transforms and the Host see
// its contents.
type State = any

// Effects is the opaque result of a reconciliation pass, handed unchanged
// to the Host's effect-application call.
type Effects = any

// Update is one requested state change.
//
// An update is immutable once created and is consumed exactly once: drained
// and applied by the pass that processes it, never re-queued. There is no
// withdrawal operation.
type Update struct {
	// Priority is the urgency class resolved at creation time.
	Priority Priority

	// Expiration is the logical clock stamp taken when the update was
	// requested. Monotonically increasing across the scheduler.
	Expiration int64

	// Apply transforms the previous state into the next one. It must be a
	// pure function of its argument; the work loop folds a pass's updates
	// left to right through it.
	Apply func(State) State

	// Done, if non-nil, runs as a lifecycle callback after the pass that
	// applied this update commits.
	Done func()
}

// UpdateQueue holds a root's pending updates in insertion order.
//
// Draining is priority-bucketed: Sync updates are eligible before any
// lower-class update regardless of insertion order, then Task, then Async,
// FIFO within each class. The queue is owned by its root and is only
// mutated by the owning scheduler's enqueue/drain operations.
type UpdateQueue struct {
	updates []Update
}

// NewUpdateQueue creates an empty queue.
func NewUpdateQueue() *UpdateQueue {
	return &UpdateQueue{}
}

// Enqueue appends an update.
func (q *UpdateQueue) Enqueue(u Update) {
	q.updates = append(q.updates, u)
}

// Len returns the number of pending updates.
func (q *UpdateQueue) Len() int {
	return len(q.updates)
}

// HasWorkAt reports whether any pending update is at least as urgent as min.
func (q *UpdateQueue) HasWorkAt(min Priority) bool {
	for _, u := range q.updates {
		if u.Priority >= min {
			return true
		}
	}
	return false
}

// HasClass reports whether any pending update has exactly the given class.
func (q *UpdateQueue) HasClass(p Priority) bool {
	for _, u := range q.updates {
		if u.Priority == p {
			return true
		}
	}
	return false
}

// Drain removes and returns every update at least as urgent as min, ordered
// by class (Sync first) and by insertion order within a class. Updates below
// min stay queued in their original order. Draining an empty or ineligible
// queue returns nil and is a no-op.
func (q *UpdateQueue) Drain(min Priority) []Update {
	if !q.HasWorkAt(min) {
		return nil
	}

	drained := make([]Update, 0, len(q.updates))
	for class := PrioritySync; class >= min; class-- {
		for _, u := range q.updates {
			if u.Priority == class {
				drained = append(drained, u)
			}
		}
	}

	var keep []Update
	for _, u := range q.updates {
		if u.Priority < min {
			keep = append(keep, u)
		}
	}
	q.updates = keep

	return drained
}
