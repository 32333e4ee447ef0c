package testutil

import "sync"

// CommittedPass is one observable pass output: the container and the state
// the host was told to render.
type CommittedPass struct {
	Container string
	State     any
}

// RecordingHost is a Host double: Reconcile passes the folded state through
// as the effect payload, ApplyEffects commits it to Containers. Tests read
// Containers as "what is on screen" and Passes as the observable history.
//
// Fault injection and lifecycle hooks are optional function fields; leave
// them nil for the happy path.
type RecordingHost struct {
	mu sync.Mutex

	containers map[string]any
	passes     []CommittedPass

	// FailReconcile, if set, is consulted before each reconciliation; a
	// non-nil return fails the pass in the reconcile phase.
	FailReconcile func(container string, state any) error

	// FailEffects, if set, is consulted before each commit; a non-nil
	// return fails the pass in the effects phase.
	FailEffects func(container string, state any) error

	// OnCommit, if set, runs after each commit, still inside effect
	// application — i.e. in lifecycle scope. Tests use it to exercise
	// reentrant scheduling from component lifecycles.
	OnCommit func(container string, state any)
}

// NewRecordingHost creates an empty recording host.
func NewRecordingHost() *RecordingHost {
	return &RecordingHost{containers: make(map[string]any)}
}

// Reconcile implements the scheduler's Host interface.
func (h *RecordingHost) Reconcile(container string, state any) (any, error) {
	if h.FailReconcile != nil {
		if err := h.FailReconcile(container, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// ApplyEffects implements the scheduler's Host interface.
func (h *RecordingHost) ApplyEffects(container string, fx any) error {
	if h.FailEffects != nil {
		if err := h.FailEffects(container, fx); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.containers[container] = fx
	h.passes = append(h.passes, CommittedPass{Container: container, State: fx})
	h.mu.Unlock()

	if h.OnCommit != nil {
		h.OnCommit(container, fx)
	}
	return nil
}

// Rendered returns the committed contents of a container and whether it has
// ever been rendered.
func (h *RecordingHost) Rendered(container string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.containers[container]
	return v, ok
}

// Passes returns a copy of the observable pass history, in commit order.
func (h *RecordingHost) Passes() []CommittedPass {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CommittedPass, len(h.passes))
	copy(out, h.passes)
	return out
}

// PassCount returns the number of committed passes.
func (h *RecordingHost) PassCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.passes)
}
