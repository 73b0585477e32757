package jobs

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/jdziat/simple-batch-jobs/pkg/dispatch"
	"github.com/jdziat/simple-batch-jobs/pkg/processor"
	"github.com/jdziat/simple-batch-jobs/pkg/worker"
)

// Limit sets how many jobs one batch attempts. Negative values are
// clamped to 0.
func Limit(n int) ProcessorOption {
	return processor.Limit(n)
}

// TimeLimit sets the wall-clock budget of one batch; <= 0 disables it.
func TimeLimit(d time.Duration) ProcessorOption {
	return processor.TimeLimit(d)
}

// FailedQueue routes jobs whose handler fails to q.
func FailedQueue(q Queue) ProcessorOption {
	return processor.FailedQueue(q)
}

// WithLogger sets the processor logger.
func WithLogger(l *slog.Logger) ProcessorOption {
	return processor.WithLogger(l)
}

// WithMeter sets the OpenTelemetry meter for batch metrics.
func WithMeter(m metric.Meter) ProcessorOption {
	return processor.WithMeter(m)
}

// WithResolver makes a Dispatcher reject unregistered handler references.
func WithResolver(r *Resolver) DispatchOption {
	return dispatch.WithResolver(r)
}

// WithDispatchLogger sets the Dispatcher logger.
func WithDispatchLogger(l *slog.Logger) DispatchOption {
	return dispatch.WithLogger(l)
}

// Concurrency sets how many batches a Worker runs at once.
func Concurrency(n int) WorkerOption {
	return worker.Concurrency(n)
}

// PollInterval sets how long an idle Worker waits before the next batch.
func PollInterval(d time.Duration) WorkerOption {
	return worker.PollInterval(d)
}

// OnBatch registers fn to receive every batch summary of a Worker.
func OnBatch(fn func(Summary)) WorkerOption {
	return worker.OnBatch(fn)
}
