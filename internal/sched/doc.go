// Package sched implements the update scheduling and batching core of the
// reconciliation engine.
//
// The scheduler sits between "a component requested a state change" and "the
// tree is re-rendered". It decides when pending updates are applied, in what
// grouping, and at what priority. The tree diffing itself and the host
// mutation layer are external collaborators reached through the Host
// interface.
//
// ARCHITECTURE:
//
// Single logical thread:
// All scheduler state is mutated behind one mutex. Reentrant calls from
// lifecycle callbacks (code the scheduler itself invoked while holding the
// lock) are detected by goroutine id and run inline. The deferred-callback
// goroutine takes the same lock, so passes never overlap.
//
// Priority classes:
// Sync > Task > Async. Sync work is applied before the call that scheduled
// it returns, unless a batching session is open. Async work is never applied
// inline; it strictly requires the deferred callback to fire.
//
// Scoped context sessions:
// Every mutation of the scheduler context (batch depth, flush depth,
// lifecycle flag, async zone depth) goes through a begin/restore pair. The
// restore runs on all exit paths, including panics, which is the discipline
// that keeps reentrant batch/flush nesting from corrupting state.
//
// Pass execution:
// A pass drains one root's eligible updates, folds them left to right into a
// single state, calls Reconcile exactly once, applies the resulting effects,
// and only then commits. Observers never see a half-applied queue.
package sched
