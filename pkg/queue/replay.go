package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// Replay moves up to limit jobs from a failed queue back to a pending queue,
// clearing their failure annotation. It returns how many jobs were moved.
// It stops early when from is empty. If pushing to the pending queue fails,
// the job is returned to from and the error is reported.
func Replay(ctx context.Context, from, to core.Queue, limit int) (int, error) {
	moved := 0
	for moved < limit {
		job, err := from.Pop(ctx)
		if err == nil && job == nil {
			err = core.ErrQueueEmpty
		}
		if err != nil {
			if errors.Is(err, core.ErrQueueEmpty) {
				return moved, nil
			}
			return moved, fmt.Errorf("jobs: replay pop: %w", err)
		}

		reason, failedAt := job.FailureReason, job.FailedAt
		job.ClearFailure(time.Now())

		if err := to.Push(ctx, job); err != nil {
			job.FailureReason, job.FailedAt = reason, failedAt
			if backErr := from.Push(ctx, job); backErr != nil {
				return moved, errors.Join(fmt.Errorf("jobs: replay push: %w", err), fmt.Errorf("jobs: replay restore: %w", backErr))
			}
			return moved, fmt.Errorf("jobs: replay push: %w", err)
		}
		moved++
	}
	return moved, nil
}
