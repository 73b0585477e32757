package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// Invoker runs the handler referenced by a job.
// *resolver.Resolver implements it.
type Invoker interface {
	Handle(ctx context.Context, job *core.Job) (any, error)
}

// Processor drains up to Limit jobs from a pending queue per Execute call.
// A Processor is immutable after construction and safe for concurrent use;
// whether concurrent batches may share one pending queue depends on that
// queue's Pop being atomic.
type Processor struct {
	pending core.Queue
	invoker Invoker
	config  Config
	metrics *instruments
}

// New creates a Processor reading from pending and invoking jobs through
// invoker.
func New(pending core.Queue, invoker Invoker, opts ...Option) *Processor {
	config := Config{
		Limit:  DefaultLimit,
		Logger: slog.Default(),
		Now:    time.Now,
	}

	for _, opt := range opts {
		opt.ApplyProcessor(&config)
	}

	if config.Meter == nil {
		config.Meter = defaultMeter()
	}

	return &Processor{
		pending: pending,
		invoker: invoker,
		config:  config,
		metrics: newInstruments(config.Meter),
	}
}

// Limit returns how many jobs one batch attempts.
func (p *Processor) Limit() int {
	return p.config.Limit
}

// WithLimit returns a copy of the processor with a different limit.
// Negative values are clamped to 0. The receiver is not modified.
func (p *Processor) WithLimit(n int) *Processor {
	cp := *p
	Limit(n).ApplyProcessor(&cp.config)
	return &cp
}

// TimeLimit returns the wall-clock budget per batch; <= 0 means none.
func (p *Processor) TimeLimit() time.Duration {
	return p.config.TimeLimit
}

// FailedQueue returns the queue receiving failed jobs, or nil.
func (p *Processor) FailedQueue() core.Queue {
	return p.config.Failed
}

// Execute runs one batch and returns one outcome per attempted iteration.
//
// The batch ends when Limit iterations have run, when the pending queue
// reports core.ErrQueueEmpty (recorded as a final OutcomeEmpty), when the
// time budget is exceeded at an iteration boundary, when ctx is done at an
// iteration boundary, or when a failed job cannot be pushed to the failed
// queue. Execute never panics on handler or queue failures; every failure is
// captured in the returned outcomes.
func (p *Processor) Execute(ctx context.Context) []core.Outcome {
	outcomes := make([]core.Outcome, 0, min(p.config.Limit, 64))
	start := p.config.Now()
	log := p.config.Logger

	for remaining := p.config.Limit; remaining > 0; remaining-- {
		if ctx.Err() != nil {
			log.Info("batch cancelled", "attempted", len(outcomes), "error", ctx.Err())
			break
		}

		if len(outcomes) > 0 && p.config.TimeLimit > 0 {
			if elapsed := elapsedSince(p.config.Now, start); elapsed > p.config.TimeLimit {
				log.Info("batch time limit reached",
					"attempted", len(outcomes),
					"elapsed", elapsed,
					"time_limit", p.config.TimeLimit)
				break
			}
		}

		outcome, stop := p.step(ctx)
		p.metrics.record(ctx, outcome)
		outcomes = append(outcomes, outcome)
		if stop {
			break
		}
	}

	summary := Summarize(outcomes)
	log.Debug("batch finished",
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"requeued", summary.Requeued,
		"drained", summary.Drained)

	return outcomes
}

// step runs one iteration. stop reports whether the batch must end.
//
// A panic raised by the pending queue, the invoker or the failed queue is
// recovered here and recorded like the error it stands for.
func (p *Processor) step(ctx context.Context) (outcome core.Outcome, stop bool) {
	began := p.config.Now()
	var (
		job     *core.Job
		invoked bool
	)
	defer func() {
		if r := recover(); r != nil {
			outcome, stop = p.recovered(ctx, job, invoked, &core.PanicError{Value: r})
		}
		outcome.Duration = elapsedSince(p.config.Now, began)
	}()

	job, err := p.pending.Pop(ctx)
	if err == nil && job == nil {
		err = core.ErrQueueEmpty
	}
	if err != nil {
		job = nil
		if errors.Is(err, core.ErrQueueEmpty) {
			return core.Outcome{Kind: core.OutcomeEmpty, Err: err, Message: err.Error()}, true
		}
		return p.popFailure(err), false
	}

	result, err := p.invoker.Handle(ctx, job)
	invoked = true
	if err != nil {
		return p.handleFailure(ctx, job, err)
	}

	p.config.Logger.Debug("job completed", "job_id", job.ID, "handler", job.Handler)
	return core.Outcome{
		Kind:     core.OutcomeSuccess,
		JobID:    job.ID,
		Handler:  job.Handler,
		Result:   result,
		Dequeued: true,
	}, false
}

func (p *Processor) popFailure(err error) core.Outcome {
	p.config.Logger.Warn("failed to pop job", "error", err)
	return core.Outcome{
		Kind:    core.OutcomeFailure,
		Err:     fmt.Errorf("%w: pop: %w", core.ErrQueueOperation, err),
		Message: err.Error(),
		Code:    core.CodeOf(err),
	}
}

// recovered turns a panic caught in step into an outcome. Before a job is
// dequeued it is a queue failure. While the job runs it is a handler
// failure routed like any other. After the job ran the failure record is
// incomplete, so the batch stops.
func (p *Processor) recovered(ctx context.Context, job *core.Job, invoked bool, perr *core.PanicError) (core.Outcome, bool) {
	switch {
	case job == nil:
		return p.popFailure(perr), false
	case !invoked:
		return p.handleFailure(ctx, job, perr)
	default:
		p.config.Logger.Error("panic after job ran, stopping batch",
			"job_id", job.ID, "handler", job.Handler, "error", perr)
		return core.Outcome{
			Kind:     core.OutcomeFailure,
			JobID:    job.ID,
			Handler:  job.Handler,
			Err:      fmt.Errorf("%w: %w", core.ErrRequeueFailed, perr),
			Message:  perr.Error(),
			Dequeued: true,
		}, true
	}
}

// handleFailure records a handler failure and, when a failed queue is
// configured, annotates the job and pushes it there. A push failure ends
// the batch.
func (p *Processor) handleFailure(ctx context.Context, job *core.Job, err error) (core.Outcome, bool) {
	outcome := core.Outcome{
		Kind:     core.OutcomeFailure,
		JobID:    job.ID,
		Handler:  job.Handler,
		Err:      &core.HandlerError{Handler: job.Handler, Err: err},
		Message:  err.Error(),
		Code:     core.CodeOf(err),
		Dequeued: true,
	}

	log := p.config.Logger.With("job_id", job.ID, "handler", job.Handler)

	if p.config.Failed == nil {
		log.Warn("job failed", "error", err)
		return outcome, false
	}

	reason := security.SanitizeErrorMessage(err.Error())
	if reason == "" {
		reason = fmt.Sprintf("%T", err)
	}
	job.Fail(reason, p.config.Now())

	if pushErr := p.pushFailed(ctx, job); pushErr != nil {
		outcome.Err = errors.Join(outcome.Err, fmt.Errorf("%w: %w", core.ErrRequeueFailed, pushErr))
		log.Error("failed to push job to failed queue, stopping batch", "error", err, "push_error", pushErr)
		return outcome, true
	}

	outcome.Requeued = true
	log.Warn("job failed, moved to failed queue", "error", err)
	return outcome, false
}

// pushFailed pushes job to the failed queue, reporting a panic in Push as
// an error.
func (p *Processor) pushFailed(ctx context.Context, job *core.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.PanicError{Value: r}
		}
	}()
	return p.config.Failed.Push(ctx, job)
}
