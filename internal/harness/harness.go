// Package harness executes conformance scenarios against a real scheduler.
//
// Unlike unit tests, scenarios exercise the whole stack: public scheduling
// operations, priority resolution, batching boundaries, the deferred
// callback (fired manually for determinism), and the pass records the
// scheduler would hand a journal. The resulting trace is compared against
// golden files, which serve as the source of truth for observable
// scheduling behavior.
package harness

import (
	"fmt"

	"github.com/MauricioAndrades/react/internal/sched"
	"github.com/MauricioAndrades/react/internal/testutil"
)

// TraceEvent is one observable event in a scenario trace: a committed pass,
// or the firing of the deferred callback.
type TraceEvent struct {
	Type      string `json:"type"` // "pass" or "fire_deferred"
	Seq       int64  `json:"seq,omitempty"`
	Container string `json:"container,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Updates   int    `json:"updates,omitempty"`
	State     any    `json:"state,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step succeeded and every expect clause matched.
	Pass bool `json:"pass"`

	// Trace contains the observable events in order.
	Trace []TraceEvent `json:"trace"`

	// Final holds the rendered contents of each declared container that
	// committed at least one pass.
	Final map[string]any `json:"final,omitempty"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// runner drives one scenario execution.
type runner struct {
	scheduler *sched.Scheduler
	deferred  *testutil.ManualDeferred
	host      *testutil.RecordingHost
	result    *Result
}

// RecordPass implements sched.PassRecorder: every committed pass becomes a
// trace event carrying the state the host just rendered.
func (r *runner) RecordPass(rec sched.PassRecord) error {
	state, _ := r.host.Rendered(rec.Container)
	r.result.Trace = append(r.result.Trace, TraceEvent{
		Type:      "pass",
		Seq:       rec.Seq,
		Container: rec.Container,
		Priority:  rec.Priority,
		Updates:   rec.UpdateCount,
		State:     state,
	})
	return nil
}

// Run validates and executes a scenario, returning its result. An error is
// returned only for invalid scenarios; scheduling failures are reported in
// Result.Errors so traces still show what happened up to the failure.
func Run(s *Scenario) (*Result, error) {
	if s == nil {
		return nil, fmt.Errorf("nil scenario")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	r := &runner{
		deferred: &testutil.ManualDeferred{},
		host:     testutil.NewRecordingHost(),
		result:   &Result{Pass: true, Trace: []TraceEvent{}},
	}
	r.scheduler = sched.New(r.host,
		sched.WithDeferred(r.deferred),
		sched.WithRecorder(r),
		sched.WithTokenGenerator(sched.NewFixedGenerator("run-"+s.Name)),
	)

	for _, decl := range s.Roots {
		mode := sched.RootModeLegacy
		if decl.Mode == "async" {
			mode = sched.RootModeAsync
		}
		r.scheduler.Attach(decl.Container, mode)
	}

	r.steps(s.Steps)
	r.checkExpectations(s)

	return r.result, nil
}

func (r *runner) steps(steps []Step) {
	for _, st := range steps {
		r.step(st)
	}
}

func (r *runner) step(st Step) {
	switch {
	case st.Render != nil:
		if err := r.scheduler.Render(st.Render.Container, st.Render.Value, nil); err != nil {
			r.fail(fmt.Sprintf("render %s: %v", st.Render.Container, err))
		}

	case st.Dispatch != nil:
		suffix := st.Dispatch.Append
		err := r.scheduler.Dispatch(st.Dispatch.Container, func(prev any) any {
			s, _ := prev.(string)
			return s + suffix
		}, nil)
		if err != nil {
			r.fail(fmt.Sprintf("dispatch %s: %v", st.Dispatch.Container, err))
		}

	case st.Batch != nil:
		_, err := r.scheduler.RunBatched(func() any {
			r.steps(st.Batch)
			return nil
		})
		if err != nil {
			r.fail(fmt.Sprintf("batch: %v", err))
		}

	case st.FlushSync != nil:
		if err := r.scheduler.FlushSync(func() { r.steps(st.FlushSync) }); err != nil {
			r.fail(fmt.Sprintf("flush_sync: %v", err))
		}

	case st.Controlled != nil:
		if err := r.scheduler.FlushControlled(func() { r.steps(st.Controlled) }); err != nil {
			r.fail(fmt.Sprintf("controlled: %v", err))
		}

	case st.AsyncZone != nil:
		r.scheduler.InAsyncZone(func() { r.steps(st.AsyncZone) })

	case st.FireDeferred:
		r.result.Trace = append(r.result.Trace, TraceEvent{Type: "fire_deferred"})
		r.deferred.FireAll()

	case st.Unmount != "":
		r.scheduler.Detach(st.Unmount)
	}
}

func (r *runner) checkExpectations(s *Scenario) {
	final := make(map[string]any)
	for _, decl := range s.Roots {
		if state, ok := r.host.Rendered(decl.Container); ok {
			final[decl.Container] = state
		}
	}
	if len(final) > 0 {
		r.result.Final = final
	}

	// Check in declaration order so failure messages are deterministic.
	for _, decl := range s.Roots {
		want, checked := s.Expect[decl.Container]
		if !checked {
			continue
		}
		container := decl.Container
		got, ok := r.host.Rendered(container)
		if !ok {
			r.fail(fmt.Sprintf("expected container %q to hold %v, but it was never rendered", container, want))
			continue
		}
		if got != want {
			r.fail(fmt.Sprintf("container %q holds %v, expected %v", container, got, want))
		}
	}
}

func (r *runner) fail(msg string) {
	r.result.Pass = false
	r.result.Errors = append(r.result.Errors, msg)
}
