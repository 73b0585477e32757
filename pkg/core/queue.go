package core

import "context"

// Queue is an ordered, mutable collection of jobs.
//
// Pop removes and returns the next job, or ErrQueueEmpty when there is none.
// Implementations shared by concurrent processors must make Pop atomic: a
// given job is returned to at most one caller. The same holds for Push on a
// failed queue written by several processors.
type Queue interface {
	Pop(ctx context.Context) (*Job, error)
	Push(ctx context.Context, job *Job) error
}

// ShouldQueue is implemented by structured handlers. Instances are built
// from a job's params by a registered constructor, then Handle is invoked.
type ShouldQueue interface {
	Handle(ctx context.Context) (any, error)
}
