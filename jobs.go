// Package jobs runs bounded batches of queued jobs.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	// Create queues
//	db, _ := gorm.Open(sqlite.Open("jobs.db"), &gorm.Config{})
//	pending := jobs.NewGormQueue(db, "default")
//	pending.Migrate(ctx)
//	failed := jobs.NewGormQueue(db, "failed")
//
//	// Register handlers
//	r := jobs.NewResolver()
//	r.Register("send-email", func(ctx context.Context, to string) error {
//	    return sendEmail(ctx, to)
//	})
//
//	// Enqueue jobs
//	jobs.NewDispatcher(pending).Dispatch(ctx, "send-email", "user@example.com")
//
//	// Run one batch of at most 10 jobs
//	p := jobs.NewProcessor(pending, r, jobs.FailedQueue(failed))
//	outcomes := p.Execute(ctx)
package jobs

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/dispatch"
	"github.com/jdziat/simple-batch-jobs/pkg/processor"
	"github.com/jdziat/simple-batch-jobs/pkg/queue"
	"github.com/jdziat/simple-batch-jobs/pkg/resolver"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
	"github.com/jdziat/simple-batch-jobs/pkg/storage"
	"github.com/jdziat/simple-batch-jobs/pkg/worker"
)

type (
	// Job represents a unit of work: a handler reference plus params.
	Job = core.Job

	// Params holds a job's positional, JSON-encoded parameters.
	Params = core.Params

	// Queue is the storage collaborator the processor pops from and
	// pushes failed jobs to.
	Queue = core.Queue

	// ShouldQueue is implemented by structured handlers.
	ShouldQueue = core.ShouldQueue

	// Outcome records one batch iteration.
	Outcome = core.Outcome

	// OutcomeKind classifies an Outcome.
	OutcomeKind = core.OutcomeKind

	// HandlerError wraps a failure raised by a job's handler.
	HandlerError = core.HandlerError

	// PanicError is returned when a handler panics.
	PanicError = core.PanicError

	// Resolver maps handler references to registered handlers.
	Resolver = resolver.Resolver

	// HandlerKind is the invocation strategy chosen at registration.
	HandlerKind = resolver.Kind

	// Processor drains bounded batches from a pending queue.
	Processor = processor.Processor

	// ProcessorOption configures a Processor.
	ProcessorOption = processor.Option

	// Summary aggregates the outcomes of one batch.
	Summary = processor.Summary

	// Dispatcher validates and pushes new jobs.
	Dispatcher = dispatch.Dispatcher

	// DispatchOption configures a Dispatcher.
	DispatchOption = dispatch.Option

	// MemoryQueue is an in-process FIFO queue.
	MemoryQueue = queue.Memory

	// GormQueue is a queue stored in a SQL table.
	GormQueue = storage.GormQueue

	// RedisQueue is a queue stored in a Redis list.
	RedisQueue = storage.RedisQueue

	// Worker runs processor batches continuously.
	Worker = worker.Worker

	// WorkerOption configures a Worker.
	WorkerOption = worker.WorkerOption
)

// Outcome kinds
const (
	OutcomeSuccess = core.OutcomeSuccess
	OutcomeFailure = core.OutcomeFailure
	OutcomeEmpty   = core.OutcomeEmpty
)

// Handler kinds
const (
	KindFunc       = resolver.KindFunc
	KindStructured = resolver.KindStructured
)

// DefaultLimit is the number of jobs a batch attempts by default.
const DefaultLimit = processor.DefaultLimit

// Security limits
const (
	MaxHandlerNameLength  = security.MaxHandlerNameLength
	MaxParamsSize         = security.MaxParamsSize
	MaxErrorMessageLength = security.MaxErrorMessageLength
	MaxQueueNameLength    = security.MaxQueueNameLength
)

// NewJob builds a job for handler with positional params.
func NewJob(handler string, params ...any) (*Job, error) {
	return core.NewJob(handler, params...)
}

// NewResolver creates an empty handler registry.
func NewResolver() *Resolver {
	return resolver.New()
}

// NewProcessor creates a Processor reading from pending and running jobs
// through r.
func NewProcessor(pending Queue, r *Resolver, opts ...ProcessorOption) *Processor {
	return processor.New(pending, r, opts...)
}

// Summarize counts outcomes by kind.
func Summarize(outcomes []Outcome) Summary {
	return processor.Summarize(outcomes)
}

// NewDispatcher creates a Dispatcher pushing to q.
func NewDispatcher(q Queue, opts ...DispatchOption) *Dispatcher {
	return dispatch.New(q, opts...)
}

// NewMemoryQueue creates an in-process queue.
func NewMemoryQueue(name string) *MemoryQueue {
	return queue.NewMemory(name)
}

// NewGormQueue creates a queue named name on db.
func NewGormQueue(db *gorm.DB, name string) *GormQueue {
	return storage.NewGormQueue(db, name)
}

// NewRedisQueue creates a queue named name on client.
func NewRedisQueue(client redis.UniversalClient, name string) *RedisQueue {
	return storage.NewRedisQueue(client, name)
}

// NewWorker creates a Worker running batches of p until its context ends.
func NewWorker(p *Processor, opts ...WorkerOption) *Worker {
	return worker.NewWorker(p, opts...)
}
