package processor

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// DefaultLimit is the number of jobs attempted per Execute call when no
// Limit option is given.
const DefaultLimit = 10

// Option configures a Processor.
type Option interface {
	ApplyProcessor(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyProcessor(c *Config) { f(c) }

// Config holds processor configuration. It is fixed once the Processor is
// constructed.
type Config struct {
	Limit     int           // jobs attempted per batch, >= 0
	TimeLimit time.Duration // wall-clock budget per batch, <= 0 disables
	Failed    core.Queue    // receives failed jobs, nil disables requeue
	Logger    *slog.Logger
	Meter     metric.Meter
	Now       func() time.Time
}

// Limit sets how many jobs one batch attempts.
// Negative values are clamped to 0.
func Limit(n int) Option {
	return optionFunc(func(c *Config) {
		c.Limit = security.ClampLimit(n)
	})
}

// TimeLimit sets the wall-clock budget of one batch. The budget is checked
// between jobs only; a running handler is never interrupted.
// Zero or negative disables it.
func TimeLimit(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.TimeLimit = d
	})
}

// FailedQueue routes jobs whose handler fails to q, annotated with the
// failure reason.
func FailedQueue(q core.Queue) Option {
	return optionFunc(func(c *Config) {
		c.Failed = q
	})
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithMeter sets the OpenTelemetry meter used for batch metrics.
// Defaults to the global MeterProvider.
func WithMeter(m metric.Meter) Option {
	return optionFunc(func(c *Config) {
		if m != nil {
			c.Meter = m
		}
	})
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *Config) {
		if now != nil {
			c.Now = now
		}
	})
}
