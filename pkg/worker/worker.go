package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/processor"
)

// Worker runs processor batches until its context is cancelled.
type Worker struct {
	processor *processor.Processor
	config    WorkerConfig
	wg        sync.WaitGroup
}

// NewWorker creates a worker that runs batches of p.
func NewWorker(p *processor.Processor, opts ...WorkerOption) *Worker {
	config := WorkerConfig{
		Concurrency:  1,
		PollInterval: time.Second,
		Logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt.ApplyWorker(&config)
	}

	return &Worker{processor: p, config: config}
}

// Config returns the effective configuration.
func (w *Worker) Config() WorkerConfig {
	return w.config
}

// Start runs batches until ctx is cancelled, then waits for in-flight
// batches to finish and returns ctx.Err().
func (w *Worker) Start(ctx context.Context) error {
	w.config.Logger.Info("worker started",
		"concurrency", w.config.Concurrency,
		"poll_interval", w.config.PollInterval,
		"limit", w.processor.Limit())

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.batchLoop(ctx, i)
	}

	<-ctx.Done()
	w.wg.Wait()
	w.config.Logger.Info("worker stopped")
	return ctx.Err()
}

func (w *Worker) batchLoop(ctx context.Context, slot int) {
	defer w.wg.Done()
	log := w.config.Logger.With("slot", slot)

	for ctx.Err() == nil {
		outcomes := w.processor.Execute(ctx)
		summary := processor.Summarize(outcomes)
		if w.config.OnBatch != nil && len(outcomes) > 0 {
			w.config.OnBatch(summary)
		}

		if !idle(outcomes) {
			continue
		}
		log.Debug("queue idle, waiting", "poll_interval", w.config.PollInterval)

		timer := time.NewTimer(w.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// idle reports whether the next batch should wait: the queue drained, or
// no iteration managed to dequeue a job.
func idle(outcomes []core.Outcome) bool {
	for _, o := range outcomes {
		if o.Empty() {
			return true
		}
	}
	for _, o := range outcomes {
		if o.Dequeued {
			return false
		}
	}
	return true
}
