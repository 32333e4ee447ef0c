package sched

// RootMode selects a root's default update priority.
type RootMode int

const (
	// RootModeLegacy renders synchronously by default. Legacy roots may
	// still contain async-tagged zones.
	RootModeLegacy RootMode = iota + 1

	// RootModeAsync defers every update originating in the root to the
	// deferred callback.
	RootModeAsync
)

// String returns the mode name used in logs and scenario files.
func (m RootMode) String() string {
	switch m {
	case RootModeLegacy:
		return "legacy"
	case RootModeAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Root ties a container handle to its update queue and committed state.
//
// A root exists from Attach until Detach. Its queue is mutated only by the
// owning scheduler's enqueue and drain operations, and at most one pass per
// root is active at a time (guarded by inFlush).
type Root struct {
	// Container is the host-environment handle this root renders into.
	Container string

	// Mode determines the default priority of updates targeting this root.
	Mode RootMode

	queue *UpdateQueue

	// state is the last committed fold result. Never mutated mid-pass;
	// a failed pass leaves it untouched.
	state State

	// mounted is set after the first committed pass. Legacy roots mount
	// unbatched; see Scheduler.renderRoot.
	mounted bool

	// inFlush guards against overlapping passes on the same root.
	inFlush bool
}

// State returns the last committed state.
func (r *Root) State() State {
	return r.state
}

// Mounted reports whether the root has committed at least one pass.
func (r *Root) Mounted() bool {
	return r.mounted
}

// PendingUpdates returns the number of queued updates. Used for tests and
// diagnostics.
func (r *Root) PendingUpdates() int {
	return r.queue.Len()
}

// defaultPriority is the priority class implied by the root's mode.
func (r *Root) defaultPriority() Priority {
	if r.Mode == RootModeAsync {
		return PriorityAsync
	}
	return PrioritySync
}

// Registry maps container handles to their roots.
//
// Iteration order is attach order, which keeps cross-root work selection
// deterministic.
type Registry struct {
	roots map[string]*Root
	order []*Root
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{roots: make(map[string]*Root)}
}

// Attach creates the root for a container, replacing any existing one.
// A replaced root keeps its position in the attach order; its queued
// updates are dropped with it.
func (g *Registry) Attach(container string, mode RootMode) *Root {
	root := &Root{
		Container: container,
		Mode:      mode,
		queue:     NewUpdateQueue(),
	}

	if old, ok := g.roots[container]; ok {
		for i, r := range g.order {
			if r == old {
				g.order[i] = root
				break
			}
		}
	} else {
		g.order = append(g.order, root)
	}
	g.roots[container] = root

	return root
}

// Lookup returns the root for a container, or nil if detached.
func (g *Registry) Lookup(container string) *Root {
	return g.roots[container]
}

// Detach destroys the root for a container, dropping its pending updates.
// Returns false if no root was attached.
func (g *Registry) Detach(container string) bool {
	root, ok := g.roots[container]
	if !ok {
		return false
	}
	delete(g.roots, container)
	for i, r := range g.order {
		if r == root {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of attached roots.
func (g *Registry) Len() int {
	return len(g.roots)
}

// Containers returns the attached container handles in attach order.
func (g *Registry) Containers() []string {
	out := make([]string, 0, len(g.order))
	for _, r := range g.order {
		out = append(out, r.Container)
	}
	return out
}

// nextRootWithWork selects the root for the next pass: roots holding work in
// a higher class are served before any root whose best class is lower, and
// attach order breaks ties within a class. Roots currently mid-pass are
// skipped; their new work is picked up when the active pass completes.
func (g *Registry) nextRootWithWork(min Priority) *Root {
	for class := PrioritySync; class >= min; class-- {
		for _, root := range g.order {
			if root.inFlush {
				continue
			}
			if root.queue.HasClass(class) {
				return root
			}
		}
	}
	return nil
}
