// Package config parses and validates batch runner configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup and pass the resulting [Config] on.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jdziat/simple-batch-jobs/pkg/schedule"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
	"github.com/jdziat/simple-batch-jobs/pkg/storage"
)

// Backend names accepted in BATCH_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// FailedQueueDisabled is the BATCH_FAILED_QUEUE value that turns the failed
// queue off. An empty value falls back to the default.
const FailedQueueDisabled = "-"

// Config holds all runner configuration sourced from environment variables.
type Config struct {
	// ── Storage ──────────────────────────────────────────────────────────────
	Backend     string `env:"BATCH_BACKEND"      envDefault:"sqlite"`
	DatabaseURL string `env:"BATCH_DATABASE_URL" envDefault:"batchjobs.db"`
	// DBPool selects a storage pool profile: "default", "single" or "high".
	DBPool   string `env:"BATCH_DB_POOL"`
	RedisURL string `env:"BATCH_REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// ── Queues ───────────────────────────────────────────────────────────────
	Queue string `env:"BATCH_QUEUE" envDefault:"default"`
	// "-" disables the failed queue; failed jobs are then dropped.
	FailedQueue string `env:"BATCH_FAILED_QUEUE" envDefault:"failed"`

	// ── Processor ────────────────────────────────────────────────────────────
	Limit     int           `env:"BATCH_LIMIT"      envDefault:"10"`
	TimeLimit time.Duration `env:"BATCH_TIME_LIMIT" envDefault:"0s"`
	// Cron expression or descriptor ("@every 1m"); empty runs one batch.
	Schedule string `env:"BATCH_SCHEDULE"`

	// ── Logging ──────────────────────────────────────────────────────────────
	LogLevel  string `env:"BATCH_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"BATCH_LOG_FORMAT" envDefault:"json"`
}

// Load parses Config from the process environment and validates it.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses Config from environ instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("BATCH_BACKEND: unknown backend %q", c.Backend))
	}

	if err := security.ValidateQueueName(c.Queue); err != nil {
		errs = append(errs, fmt.Errorf("BATCH_QUEUE: %w", err))
	}
	if c.FailedQueueName() != "" {
		if err := security.ValidateQueueName(c.FailedQueue); err != nil {
			errs = append(errs, fmt.Errorf("BATCH_FAILED_QUEUE: %w", err))
		} else if c.FailedQueue == c.Queue {
			errs = append(errs, errors.New("BATCH_FAILED_QUEUE: must differ from BATCH_QUEUE"))
		}
	}

	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("BATCH_LIMIT: must be >= 0, got %d", c.Limit))
	}

	if c.Schedule != "" {
		if _, err := schedule.ParseCron(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("BATCH_SCHEDULE: %w", err))
		}
	}

	if _, err := storage.PoolProfile(c.DBPool); err != nil {
		errs = append(errs, fmt.Errorf("BATCH_DB_POOL: %w", err))
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("BATCH_LOG_LEVEL: %w", err))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("BATCH_LOG_FORMAT: must be json or text, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// FailedQueueName returns the failed queue name, or "" when disabled.
func (c *Config) FailedQueueName() string {
	if c.FailedQueue == FailedQueueDisabled {
		return ""
	}
	return c.FailedQueue
}

// BatchSchedule returns the parsed schedule, or nil when batches run once.
func (c *Config) BatchSchedule() (schedule.Schedule, error) {
	if c.Schedule == "" {
		return nil, nil
	}
	return schedule.ParseCron(c.Schedule)
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, err
	}
	return level, nil
}
