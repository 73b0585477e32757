package worker

import (
	"log/slog"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/processor"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// WorkerOption configures a Worker.
type WorkerOption interface {
	ApplyWorker(*WorkerConfig)
}

type workerOptionFunc func(*WorkerConfig)

func (f workerOptionFunc) ApplyWorker(c *WorkerConfig) { f(c) }

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	Logger       *slog.Logger
	OnBatch      func(processor.Summary)
}

// Concurrency sets how many batches run at once.
// Values are clamped to [1, MaxConcurrency].
func Concurrency(n int) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Concurrency = security.ClampConcurrency(n)
	})
}

// PollInterval sets how long an idle goroutine waits before the next batch.
// Non-positive values are ignored.
func PollInterval(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if d > 0 {
			c.PollInterval = d
		}
	})
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if l != nil {
			c.Logger = l
		}
	})
}

// OnBatch registers fn to receive the summary of every finished batch.
// fn may be called from several goroutines at once.
func OnBatch(fn func(processor.Summary)) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.OnBatch = fn
	})
}
