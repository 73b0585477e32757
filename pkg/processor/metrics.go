package processor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// meterName is the instrumentation scope name for processor metrics.
const meterName = "github.com/jdziat/simple-batch-jobs"

// instruments records per-iteration metrics. If no MeterProvider is
// configured the global noop provider makes every call a no-op.
type instruments struct {
	duration   metric.Float64Histogram
	iterations metric.Int64Counter
	requeued   metric.Int64Counter
}

func defaultMeter() metric.Meter {
	return otel.Meter(meterName)
}

func newInstruments(meter metric.Meter) *instruments {
	// On error the API returns noop instruments, so errors are ignored.
	duration, _ := meter.Float64Histogram(
		"batchjobs.job.duration",
		metric.WithDescription("Duration of one batch iteration in seconds"),
		metric.WithUnit("s"),
	)
	iterations, _ := meter.Int64Counter(
		"batchjobs.job.iterations",
		metric.WithDescription("Batch iterations by outcome"),
		metric.WithUnit("{iteration}"),
	)
	requeued, _ := meter.Int64Counter(
		"batchjobs.job.requeued",
		metric.WithDescription("Jobs pushed to the failed queue"),
		metric.WithUnit("{job}"),
	)
	return &instruments{duration: duration, iterations: iterations, requeued: requeued}
}

func (m *instruments) record(ctx context.Context, o core.Outcome) {
	attrs := metric.WithAttributes(
		attribute.String("handler", o.Handler),
		attribute.String("outcome", string(o.Kind)),
	)
	m.iterations.Add(ctx, 1, attrs)
	if o.Kind != core.OutcomeEmpty {
		m.duration.Record(ctx, o.Duration.Seconds(), attrs)
	}
	if o.Requeued {
		m.requeued.Add(ctx, 1, metric.WithAttributes(attribute.String("handler", o.Handler)))
	}
}

func elapsedSince(now func() time.Time, start time.Time) time.Duration {
	return now().Sub(start)
}
