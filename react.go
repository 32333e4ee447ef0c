// Package react provides the public surface of the update scheduling and
// batching core: root management, render and dispatch scheduling, and the
// batching scopes that control when queued work flushes.
//
// The engine itself is policy-free about what "rendering" means. Callers
// supply a Host that turns a committed state into effects and applies those
// effects to a container; the engine decides when each pass runs and which
// queued updates fold into it.
package react

import (
	"github.com/MauricioAndrades/react/internal/sched"
)

// Host applies committed passes to containers. See sched.Host.
type Host = sched.Host

// State is an opaque root state value.
type State = sched.State

// Effects is the opaque output of Host.Reconcile.
type Effects = sched.Effects

// PassRecord describes one committed pass.
type PassRecord = sched.PassRecord

// PassRecorder receives a record after each committed pass.
type PassRecorder = sched.PassRecorder

// DeferredScheduler schedules the coalesced deferred callback.
type DeferredScheduler = sched.DeferredScheduler

// Error predicates, re-exported so callers never import internal packages.
var (
	IsReentrantFlush      = sched.IsReentrantFlush
	IsUpdateDepthExceeded = sched.IsUpdateDepthExceeded
	IsUnknownRoot         = sched.IsUnknownRoot
	IsPassFailure         = sched.IsPassFailure
)

// Option configures an Engine.
type Option = sched.Option

// Engine configuration options.
var (
	WithDeferred        = sched.WithDeferred
	WithRecorder        = sched.WithRecorder
	WithMaxNestedPasses = sched.WithMaxNestedPasses
	WithTokenGenerator  = sched.WithTokenGenerator
)

// Engine is the top-level scheduling engine. One Engine owns a set of
// roots; all scheduling operations on those roots go through it.
//
// Engine methods are safe for concurrent use. Calls made from lifecycle
// callbacks run inline on the calling goroutine.
type Engine struct {
	s *sched.Scheduler
}

// New creates an Engine driving the given host. Panics if host is nil.
func New(host Host, opts ...Option) *Engine {
	return &Engine{s: sched.New(host, opts...)}
}

// RunToken returns the engine's unique run identifier.
func (e *Engine) RunToken() string {
	return e.s.RunToken()
}

// Render schedules a render of tree into container, implicitly creating a
// legacy-mode root on first use. The first render of an unmounted legacy
// root applies synchronously even inside an open batch; subsequent renders
// follow normal batching rules. An optional done callback fires after the
// update's pass commits.
func (e *Engine) Render(container string, tree State, done ...func()) error {
	return e.s.Render(container, tree, firstDone(done))
}

// Dispatch schedules a state transformation on container. The root must
// already exist (via Render or CreateRoot).
func (e *Engine) Dispatch(container string, apply func(State) State, done ...func()) error {
	return e.s.Dispatch(container, apply, firstDone(done))
}

// Unmount removes a container's root and discards its queued updates.
// Returns false if no such root exists.
func (e *Engine) Unmount(container string) bool {
	return e.s.Detach(container)
}

// Mounted reports whether container has a root that committed at least one
// pass.
func (e *Engine) Mounted(container string) bool {
	return e.s.Mounted(container)
}

// Containers returns all attached containers in attach order.
func (e *Engine) Containers() []string {
	return e.s.Containers()
}

// FlushSync runs fn and synchronously applies all queued work across every
// root before returning, regardless of priority class or any enclosing
// batch. Calling it from a lifecycle callback is an error.
func (e *Engine) FlushSync(fn func()) error {
	return e.s.FlushSync(fn)
}

// FlushControlled runs fn inside a batch. At an outer flush boundary the
// batch flushes synchronously when fn returns; inside an enclosing batch
// the work stays queued and flushes with that batch.
func (e *Engine) FlushControlled(fn func()) error {
	return e.s.FlushControlled(fn)
}

// AsyncZone runs fn with async priority as the default for sync-class
// updates scheduled within it, even on legacy roots.
func (e *Engine) AsyncZone(fn func()) {
	e.s.InAsyncZone(fn)
}

// BatchedUpdates runs fn inside a batch: sync-class updates scheduled
// during fn queue instead of applying immediately, and flush once when the
// outermost batch closes. fn's return value passes through.
func BatchedUpdates[T any](e *Engine, fn func() T) (T, error) {
	var out T
	_, err := e.s.RunBatched(func() any {
		out = fn()
		return nil
	})
	return out, err
}

// RootHandle is an explicitly created async-mode root.
type RootHandle struct {
	engine    *Engine
	container string
}

// CreateRoot attaches an async-mode root for container and returns a
// handle to it. Updates on async roots default to async priority and
// apply from the deferred callback.
func (e *Engine) CreateRoot(container string) *RootHandle {
	e.s.Attach(container, sched.RootModeAsync)
	return &RootHandle{engine: e, container: container}
}

// Container returns the container this root renders into.
func (h *RootHandle) Container() string {
	return h.container
}

// Render schedules a render on this root.
func (h *RootHandle) Render(tree State, done ...func()) error {
	return h.engine.s.Render(h.container, tree, firstDone(done))
}

// Dispatch schedules a state transformation on this root.
func (h *RootHandle) Dispatch(apply func(State) State, done ...func()) error {
	return h.engine.s.Dispatch(h.container, apply, firstDone(done))
}

// Unmount detaches this root.
func (h *RootHandle) Unmount() bool {
	return h.engine.s.Detach(h.container)
}

func firstDone(done []func()) func() {
	if len(done) > 0 {
		return done[0]
	}
	return nil
}
