// Package dispatch enqueues jobs: it validates a handler reference and its
// params, builds a core.Job and pushes it to a pending queue.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// Registry reports whether a handler reference is known.
// *resolver.Resolver implements it.
type Registry interface {
	Has(name string) bool
}

// Option configures a Dispatcher.
type Option interface {
	ApplyDispatcher(*Dispatcher)
}

type optionFunc func(*Dispatcher)

func (f optionFunc) ApplyDispatcher(d *Dispatcher) { f(d) }

// WithResolver makes Dispatch reject handler references the registry does
// not know, so typos surface when enqueueing rather than when processing.
func WithResolver(r Registry) Option {
	return optionFunc(func(d *Dispatcher) {
		d.registry = r
	})
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	})
}

// Dispatcher pushes new jobs to a queue.
type Dispatcher struct {
	queue    core.Queue
	registry Registry
	logger   *slog.Logger
}

// New creates a Dispatcher pushing to q.
func New(q core.Queue, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:  q,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt.ApplyDispatcher(d)
	}
	return d
}

// Dispatch enqueues a job running handler with params. Each param is
// encoded as JSON and decoded positionally into the handler's arguments
// when the job runs.
func (d *Dispatcher) Dispatch(ctx context.Context, handler string, params ...any) (*core.Job, error) {
	if err := security.ValidateHandlerName(handler); err != nil {
		return nil, err
	}
	if d.registry != nil && !d.registry.Has(handler) {
		return nil, fmt.Errorf("%w: no handler registered for %q", core.ErrInvalidHandler, handler)
	}

	job, err := core.NewJob(handler, params...)
	if err != nil {
		return nil, err
	}
	if err := security.ValidateParams(job.Params); err != nil {
		return nil, err
	}

	if err := d.queue.Push(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: dispatch: %w", core.ErrQueueOperation, err)
	}

	d.logger.Debug("job dispatched", "job_id", job.ID, "handler", handler, "queue", job.Queue)
	return job, nil
}
