package sched

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// Host is the pair of external collaborators the scheduler drives: the
// reconciliation algorithm and the effect-application layer. The scheduler
// treats both as opaque; it only decides when they run.
//
// Reconcile is invoked exactly once per pass with the folded state.
// ApplyEffects is invoked with Reconcile's result and may have externally
// observable side effects; code it calls back into (component lifecycles)
// runs in lifecycle scope, where FlushSync is illegal.
type Host interface {
	Reconcile(container string, state State) (Effects, error)
	ApplyEffects(container string, fx Effects) error
}

// PassRecord describes one committed pass, for the journal.
type PassRecord struct {
	Seq         int64  `json:"seq"`
	RunToken    string `json:"run_token"`
	Container   string `json:"container"`
	Priority    string `json:"priority"`
	UpdateCount int    `json:"update_count"`
}

// PassRecorder receives a record after each committed pass. Recorder
// failures are logged and do not fail the pass.
type PassRecorder interface {
	RecordPass(rec PassRecord) error
}

// DefaultMaxNestedPasses is the default update cascade quota: the maximum
// number of passes one flush boundary may execute before the scheduler
// assumes a lifecycle callback is scheduling updates in a loop.
const DefaultMaxNestedPasses = 1000

// Scheduler owns all scheduling state: the batching/flush context, the root
// registry, the logical clock, and the deferred-callback guard.
//
// Thread-safety model:
//   - Every public entry point serializes behind one mutex.
//   - Reentrant calls from lifecycle callbacks (made on the goroutine that
//     already holds the lock) are detected by goroutine id and run inline.
//   - The deferred callback acquires the same lock, so Sync and Async
//     passes never interleave.
type Scheduler struct {
	mu    sync.Mutex
	owner atomic.Int64 // goid of the goroutine currently inside the scheduler

	ctx      schedulerContext
	registry *Registry
	clock    *Clock
	host     Host

	deferred DeferredScheduler
	recorder PassRecorder
	runToken string

	maxNestedPasses int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDeferred replaces the deferred-callback scheduler. Tests use a
// manually fired implementation to drive Async passes deterministically.
func WithDeferred(d DeferredScheduler) Option {
	return func(s *Scheduler) {
		s.deferred = d
	}
}

// WithRecorder installs a pass recorder (e.g. the SQLite journal).
func WithRecorder(r PassRecorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// WithMaxNestedPasses overrides the update cascade quota.
func WithMaxNestedPasses(n int) Option {
	return func(s *Scheduler) {
		s.maxNestedPasses = n
	}
}

// WithTokenGenerator overrides the run token source. Tests pass a
// FixedGenerator for deterministic journal output.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Scheduler) {
		s.runToken = g.Generate()
	}
}

// New creates a Scheduler driving the given host.
func New(host Host, opts ...Option) *Scheduler {
	if host == nil {
		panic("sched: nil host")
	}

	s := &Scheduler{
		registry:        NewRegistry(),
		clock:           NewClock(),
		host:            host,
		deferred:        TimerScheduler{},
		runToken:        UUIDv7Generator{}.Generate(),
		maxNestedPasses: DefaultMaxNestedPasses,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// acquire takes the scheduler lock unless the calling goroutine already
// holds it (a lifecycle callback re-entering a public operation). The
// returned release must be deferred.
func (s *Scheduler) acquire() func() {
	gid := goid.Get()
	if s.owner.Load() == gid {
		return func() {}
	}

	s.mu.Lock()
	s.owner.Store(gid)
	return func() {
		s.owner.Store(0)
		s.mu.Unlock()
	}
}

// RunToken returns the token correlating this scheduler's journal records.
func (s *Scheduler) RunToken() string {
	return s.runToken
}

// Clock returns the scheduler's logical clock. Used by tests and
// diagnostics.
func (s *Scheduler) Clock() *Clock {
	return s.clock
}

// Attach creates (or replaces) the root for a container.
func (s *Scheduler) Attach(container string, mode RootMode) {
	release := s.acquire()
	defer release()

	s.registry.Attach(container, mode)
	slog.Debug("root attached", "container", container, "mode", mode.String())
}

// Detach destroys the root for a container, dropping any queued updates.
// Returns false if no root was attached.
func (s *Scheduler) Detach(container string) bool {
	release := s.acquire()
	defer release()

	ok := s.registry.Detach(container)
	if ok {
		slog.Debug("root detached", "container", container)
	}
	return ok
}

// Mounted reports whether the container's root has committed at least one
// pass. Returns false for detached containers.
func (s *Scheduler) Mounted(container string) bool {
	release := s.acquire()
	defer release()

	root := s.registry.Lookup(container)
	return root != nil && root.mounted
}

// Containers returns the attached container handles in attach order.
func (s *Scheduler) Containers() []string {
	release := s.acquire()
	defer release()

	return s.registry.Containers()
}

// Render requests a full-state replacement for a container, attaching a
// legacy root on first use. done, if non-nil, runs as a lifecycle callback
// after the pass that applies the update commits.
func (s *Scheduler) Render(container string, tree State, done func()) error {
	release := s.acquire()
	defer release()

	root := s.registry.Lookup(container)
	if root == nil {
		root = s.registry.Attach(container, RootModeLegacy)
		slog.Debug("root attached", "container", container, "mode", root.Mode.String())
	}
	return s.renderRoot(root, tree, done)
}

// Dispatch requests a state transformation for a container. The apply
// function must be a pure transform; it is folded with the root's other
// pending updates into a single pass.
func (s *Scheduler) Dispatch(container string, apply func(State) State, done func()) error {
	release := s.acquire()
	defer release()

	root := s.registry.Lookup(container)
	if root == nil {
		return &ScheduleError{
			Code:      ErrCodeUnknownRoot,
			Message:   "dispatch against a container with no attached root",
			Container: container,
		}
	}

	return s.enqueue(root, Update{
		Priority:   s.resolvePriority(root),
		Expiration: s.clock.Next(),
		Apply:      apply,
		Done:       done,
	})
}

// renderRoot enqueues a replace-state update for root.
//
// The initial mount of a legacy root is unbatched: the first paint of a
// container is visible before the caller proceeds, even from inside an open
// batching session. An async zone suppresses that and defers the mount with
// everything else.
func (s *Scheduler) renderRoot(root *Root, tree State, done func()) error {
	u := Update{
		Priority:   s.resolvePriority(root),
		Expiration: s.clock.Next(),
		Apply:      func(State) State { return tree },
		Done:       done,
	}

	if !root.mounted && root.Mode == RootModeLegacy && s.ctx.asyncDepth == 0 {
		restore := s.beginUnbatched()
		defer restore()
		u.Priority = PrioritySync
	}

	return s.enqueue(root, u)
}

// resolvePriority decides a new update's class from the current context and
// the target root: Sync unless the originating scope is tagged async or the
// root itself is in async mode. Async never auto-promotes afterwards.
func (s *Scheduler) resolvePriority(root *Root) Priority {
	if s.ctx.asyncDepth > 0 || root.defaultPriority() == PriorityAsync {
		return PriorityAsync
	}
	return PrioritySync
}

// enqueue admits an update and decides whether to flush now or defer.
//
// Sync updates flush inline when no batching session is open and the root
// is not already mid-pass ("renders synchronously by default"). Unbatching
// scopes flush the target root even inside a batch. Task and Async updates
// always wait for the deferred callback.
func (s *Scheduler) enqueue(root *Root, u Update) error {
	root.queue.Enqueue(u)
	slog.Debug("update queued",
		"container", root.Container,
		"priority", u.Priority.String(),
		"expiration", u.Expiration,
		"queued", root.queue.Len(),
	)

	if u.Priority == PrioritySync {
		switch {
		case s.ctx.unbatching && !root.inFlush:
			return s.flushRoot(root, PrioritySync)
		case s.ctx.batchDepth == 0 && !root.inFlush:
			return s.performWork(PrioritySync)
		}
		// Batching open or root mid-pass: picked up at the boundary close
		// or by the loop already on the stack.
		return nil
	}

	s.ensureDeferredCallback()
	return nil
}

// RunBatched executes fn inside a batching session. Updates requested
// during fn accumulate; the outermost session close flushes the Sync work
// accumulated during the batch in one boundary. Nested calls are
// transparent. fn's value is returned to the caller.
//
// A panic inside fn restores the context and propagates; the accumulated
// work then flushes at the next boundary instead.
func (s *Scheduler) RunBatched(fn func() any) (any, error) {
	release := s.acquire()
	defer release()

	restore := s.beginBatch()
	var result any
	func() {
		defer restore()
		if fn != nil {
			result = fn()
		}
	}()

	if s.ctx.batchDepth > 0 {
		// Nested session: only the outermost close flushes.
		return result, nil
	}
	return result, s.performWork(PrioritySync)
}

// FlushSync executes fn, then unconditionally flushes all queued work —
// every priority class, every root — collapsing each root's queue into one
// pass. It flushes even when called inside an open RunBatched session.
//
// Calling FlushSync from a lifecycle callback of an in-progress flush fails
// with ErrCodeReentrantFlush instead of reordering work. Nested FlushSync
// calls from ordinary code are legal: the inner call flushes immediately
// and the outer one observes the already-flushed state.
func (s *Scheduler) FlushSync(fn func()) error {
	release := s.acquire()
	defer release()

	if s.ctx.inLifecycle {
		return newReentrantFlushError()
	}

	restoreFlush := s.beginFlush()
	defer restoreFlush()

	if fn != nil {
		// fn's own updates accumulate and flush as one unit below.
		restoreBatch := s.beginBatch()
		func() {
			defer restoreBatch()
			fn()
		}()
	}

	return s.performWork(PriorityAsync)
}

// FlushControlled executes fn as controlled work: applied before the
// surrounding host-event callback yields back to the host. Inside an open
// batching session it defers to that session's boundary; standalone it
// flushes when fn returns. fn's return value, if any, is discarded by
// construction.
func (s *Scheduler) FlushControlled(fn func()) error {
	release := s.acquire()
	defer release()

	if s.ctx.batchDepth > 0 {
		if fn != nil {
			fn()
		}
		return nil
	}

	restore := s.beginBatch()
	func() {
		defer restore()
		if fn != nil {
			fn()
		}
	}()
	return s.performWork(PrioritySync)
}

// InAsyncZone runs fn with the async-subtree marker set: every update
// requested inside it (and its nested scopes) defaults to PriorityAsync
// regardless of the target root's mode.
func (s *Scheduler) InAsyncZone(fn func()) {
	release := s.acquire()
	defer release()

	restore := s.beginAsyncZone()
	defer restore()
	if fn != nil {
		fn()
	}
}

// ensureDeferredCallback schedules the deferred callback unless one is
// already outstanding; concurrent requests coalesce into that callback's
// next invocation.
func (s *Scheduler) ensureDeferredCallback() {
	if s.ctx.callbackPending {
		return
	}
	s.ctx.callbackPending = true
	slog.Debug("deferred callback scheduled")
	s.deferred.Schedule(s.runDeferredPass)
}

// runDeferredPass is the deferred callback body: drain everything still
// pending, lowest class included. Errors here have no caller to propagate
// to, so they are logged and the scheduler continues — retrying would make
// replay non-deterministic.
func (s *Scheduler) runDeferredPass() {
	release := s.acquire()
	defer release()

	s.ctx.callbackPending = false
	if err := s.performWork(PriorityAsync); err != nil {
		slog.Error("deferred pass failed", "error", err)
	}
}
