// Package processor provides the bounded batch loop of the jobs package.
//
// A Processor repeatedly pops one job from a pending queue, invokes its
// handler through an Invoker, and, when the handler fails, annotates the job
// and pushes it to an optional failed queue. A batch is bounded by a job
// count (Limit, default 10) and an optional wall-clock budget (TimeLimit),
// and ends early when the pending queue reports core.ErrQueueEmpty.
//
// Execute returns one core.Outcome per attempted iteration:
//
//	p := processor.New(pending, resolver,
//	    processor.Limit(50),
//	    processor.TimeLimit(30*time.Second),
//	    processor.FailedQueue(failed),
//	)
//	outcomes := p.Execute(ctx)
//	summary := processor.Summarize(outcomes)
//
// Most users should import the root package github.com/jdziat/simple-batch-jobs
// which re-exports these functions.
package processor
