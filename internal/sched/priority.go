package sched

import "fmt"

// Priority is the urgency class of a pending update.
//
// The classes form a total order: Sync > Task > Async. Sync work preempts
// everything and is applied before the scheduling call returns (unless a
// batching session is open). Task work rides the deferred callback but is
// drained before Async work. Async work is never promoted automatically;
// only an explicit FlushSync applies it early.
type Priority int

const (
	// PriorityAsync is the lowest class. Updates in this class wait for the
	// deferred callback even when nothing else is pending.
	PriorityAsync Priority = iota + 1

	// PriorityTask is the intermediate class for timer/animation style work.
	PriorityTask

	// PrioritySync is the highest class. Sync updates are applied inline
	// unless batching is active.
	PrioritySync
)

// Preempts reports whether p is strictly more urgent than other.
func (p Priority) Preempts(other Priority) bool {
	return p > other
}

// String returns the lower-case name used in logs, the pass journal, and
// harness traces.
func (p Priority) String() string {
	switch p {
	case PrioritySync:
		return "sync"
	case PriorityTask:
		return "task"
	case PriorityAsync:
		return "async"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a journal/trace name back into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "sync":
		return PrioritySync, nil
	case "task":
		return PriorityTask, nil
	case "async":
		return PriorityAsync, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}
