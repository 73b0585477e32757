package jobs

import (
	"context"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/schedule"
)

// Schedule computes when the next batch should run.
type Schedule = schedule.Schedule

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule {
	return schedule.Every(d)
}

// Daily creates a schedule that runs at hour:minute UTC each day.
func Daily(hour, minute int) Schedule {
	return schedule.Daily(hour, minute)
}

// Weekly creates a schedule that runs on day at hour:minute UTC each week.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return schedule.Weekly(day, hour, minute)
}

// Cron creates a schedule from a cron expression. It panics if the
// expression is invalid.
func Cron(expr string) Schedule {
	return schedule.Cron(expr)
}

// ParseCron creates a schedule from a cron expression or descriptor.
func ParseCron(expr string) (Schedule, error) {
	return schedule.ParseCron(expr)
}

// RunBatches executes a batch of p at every time produced by s until ctx is
// done. onBatch, when non-nil, receives the outcomes of each batch.
func RunBatches(ctx context.Context, s Schedule, p *Processor, onBatch func([]Outcome)) error {
	return schedule.Run(ctx, s, func(ctx context.Context) {
		outcomes := p.Execute(ctx)
		if onBatch != nil {
			onBatch(outcomes)
		}
	})
}
