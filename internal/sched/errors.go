package sched

import (
	"errors"
	"fmt"
)

// ScheduleError represents a scheduling rule violation detected at a public
// entry point.
//
// Schedule errors include:
//   - Reentrant flush: FlushSync invoked from a lifecycle callback of an
//     in-progress flush
//   - Update depth exceeded: lifecycle callbacks kept enqueueing sync work
//     until the cascade quota ran out
//   - Unknown root: an update was dispatched against a detached container
type ScheduleError struct {
	// Code identifies the error category.
	Code ScheduleErrorCode

	// Message is a human-readable description.
	Message string

	// Container identifies the affected root, when one is involved.
	Container string
}

// ScheduleErrorCode categorizes schedule errors.
type ScheduleErrorCode string

const (
	// ErrCodeReentrantFlush indicates FlushSync was called from inside a
	// lifecycle callback of a flush that is still in progress.
	ErrCodeReentrantFlush ScheduleErrorCode = "REENTRANT_FLUSH"

	// ErrCodeUpdateDepthExceeded indicates a runaway update cascade: passes
	// kept producing new sync work past the configured quota.
	ErrCodeUpdateDepthExceeded ScheduleErrorCode = "UPDATE_DEPTH_EXCEEDED"

	// ErrCodeUnknownRoot indicates the target container has no attached root.
	ErrCodeUnknownRoot ScheduleErrorCode = "UNKNOWN_ROOT"
)

// Error implements the error interface.
func (e *ScheduleError) Error() string {
	if e.Container != "" {
		return fmt.Sprintf("%s: %s (container=%s)", e.Code, e.Message, e.Container)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsReentrantFlush returns true if the error is an illegal reentrant flush.
// Uses errors.As to handle wrapped errors.
func IsReentrantFlush(err error) bool {
	var se *ScheduleError
	if errors.As(err, &se) {
		return se.Code == ErrCodeReentrantFlush
	}
	return false
}

// IsUpdateDepthExceeded returns true if the error is a cascade quota error.
func IsUpdateDepthExceeded(err error) bool {
	var se *ScheduleError
	if errors.As(err, &se) {
		return se.Code == ErrCodeUpdateDepthExceeded
	}
	return false
}

// IsUnknownRoot returns true if the error targets a detached container.
func IsUnknownRoot(err error) bool {
	var se *ScheduleError
	if errors.As(err, &se) {
		return se.Code == ErrCodeUnknownRoot
	}
	return false
}

// newReentrantFlushError creates the error for FlushSync called from a
// lifecycle callback.
func newReentrantFlushError() *ScheduleError {
	return &ScheduleError{
		Code:    ErrCodeReentrantFlush,
		Message: "FlushSync called from inside a lifecycle callback of an in-progress flush",
	}
}

// newUpdateDepthError creates the error for an exhausted cascade quota.
func newUpdateDepthError(container string, passes, limit int) *ScheduleError {
	return &ScheduleError{
		Code:      ErrCodeUpdateDepthExceeded,
		Message:   fmt.Sprintf("update cascade exceeded quota (%d passes > %d limit); likely a lifecycle callback scheduling updates in a loop", passes, limit),
		Container: container,
	}
}

// PassPhase names the collaborator call that failed during a pass.
type PassPhase string

const (
	// PhaseReconcile is the external reconciliation call.
	PhaseReconcile PassPhase = "reconcile"

	// PhaseEffects is the external effect-application call.
	PhaseEffects PassPhase = "effects"
)

// PassError is returned when the external reconcile/effects collaborator
// fails during a pass.
//
// The failing pass is not committed: the root keeps its previous state and
// the drained updates are considered consumed but not durably applied.
// Subsequent updates to the same root proceed on the next pass. The
// scheduler never retries on its own.
type PassError struct {
	Container string    // The root whose pass failed
	Phase     PassPhase // Which collaborator call failed
	Err       error     // The collaborator's error
}

// Error implements the error interface.
func (e *PassError) Error() string {
	return fmt.Sprintf("pass failed for container %s during %s: %v", e.Container, e.Phase, e.Err)
}

// Unwrap exposes the collaborator's error for errors.Is/As chains.
func (e *PassError) Unwrap() error {
	return e.Err
}

// IsPassFailure returns true if the error is a collaborator pass failure.
// Uses errors.As to handle wrapped errors.
func IsPassFailure(err error) bool {
	var pe *PassError
	return errors.As(err, &pe)
}
