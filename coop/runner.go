// Package coop is the cooperative-task primitive a suspend/resume
// backup or restore routine needs. Go's native equivalent of a
// suspend-on-I/O coroutine is a goroutine blocking on a context-bound
// call; Runner's job is only the one piece worth enforcing explicitly:
// at most one backup/restore task in flight at a time, with a trigger
// arriving mid-flight simply ignored.
package coop

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Runner bounds a family of routines (the backup routine, the restore
// routine) to at most one in-flight invocation, shared across every
// trigger source (a periodic ticker, an admin-initiated request, ...)
// that calls RunExclusive on the same Runner.
type Runner struct {
	sem *semaphore.Weighted
}

func NewRunner() *Runner {
	return &Runner{sem: semaphore.NewWeighted(1)}
}

// RunExclusive runs fn if no other task is currently in flight on this
// Runner, blocking the caller until fn returns. If a task is already
// running, it returns (false, nil) immediately without calling fn - the
// caller's trigger is simply dropped. Callers that must not block (e.g.
// a periodic ticker) should invoke RunExclusive from their own
// goroutine.
func (r *Runner) RunExclusive(ctx context.Context, fn func(ctx context.Context) error) (ran bool, err error) {
	if !r.sem.TryAcquire(1) {
		return false, nil
	}
	defer r.sem.Release(1)
	return true, fn(ctx)
}

// Busy reports whether a task is currently in flight.
func (r *Runner) Busy() bool {
	if !r.sem.TryAcquire(1) {
		return true
	}
	r.sem.Release(1)
	return false
}
