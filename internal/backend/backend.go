// Package backend opens the pending and failed queues selected by a
// config.Config.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jdziat/simple-batch-jobs/internal/config"
	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/queue"
	"github.com/jdziat/simple-batch-jobs/pkg/storage"
)

// Queue is a named queue whose contents can be inspected without popping.
type Queue interface {
	core.Queue
	Name() string
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, limit int) ([]*core.Job, error)
}

// Backend holds the queues of one configured storage.
type Backend struct {
	Kind    string
	Pending Queue
	Failed  Queue // nil when the failed queue is disabled

	close func() error
}

// FailedQueue returns Failed as a core.Queue, keeping a nil Failed nil
// rather than a typed nil interface.
func (b *Backend) FailedQueue() core.Queue {
	if b.Failed == nil {
		return nil
	}
	return b.Failed
}

// Close releases the underlying connections.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// ErrFailedQueueDisabled is returned by operations that need a failed queue
// when none is configured.
var ErrFailedQueueDisabled = errors.New("backend: failed queue is disabled")

// Open connects to the backend named by cfg.Backend, retrying with backoff
// while it is unreachable, and migrates SQL schemas.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	return open(ctx, cfg, logger, DefaultRetryConfig())
}

func open(ctx context.Context, cfg *config.Config, logger *slog.Logger, retry RetryConfig) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("backend", cfg.Backend)

	switch cfg.Backend {
	case config.BackendMemory:
		b := &Backend{Kind: cfg.Backend, Pending: memoryQueue{queue.NewMemory(cfg.Queue)}}
		if name := cfg.FailedQueueName(); name != "" {
			b.Failed = memoryQueue{queue.NewMemory(name)}
		}
		return b, nil

	case config.BackendSQLite, config.BackendPostgres:
		var db *gorm.DB
		err := retryWithBackoff(ctx, retry, func() error {
			var err error
			db, err = openGorm(ctx, cfg)
			if err != nil && isRetryable(err) {
				log.Warn("database not reachable, retrying", "error", err)
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("backend: open %s: %w", cfg.Backend, err)
		}
		return gormBackend(ctx, cfg, db)

	case config.BackendRedis:
		var client redis.UniversalClient
		err := retryWithBackoff(ctx, retry, func() error {
			var err error
			client, err = storage.OpenRedis(ctx, cfg.RedisURL)
			if err != nil && isRetryable(err) {
				log.Warn("redis not reachable, retrying", "error", err)
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("backend: open redis: %w", err)
		}
		b := &Backend{
			Kind:    cfg.Backend,
			Pending: storage.NewRedisQueue(client, cfg.Queue),
			close:   client.Close,
		}
		if name := cfg.FailedQueueName(); name != "" {
			b.Failed = storage.NewRedisQueue(client, name)
		}
		return b, nil

	default:
		return nil, fmt.Errorf("backend: unknown backend %q", cfg.Backend)
	}
}

func openGorm(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	pool := cfg.DBPool
	if cfg.Backend == config.BackendSQLite {
		dialector = sqlite.Open(cfg.DatabaseURL)
		if pool == "" {
			pool = "single"
		}
	} else {
		dialector = postgres.Open(cfg.DatabaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	poolConfig, err := storage.PoolProfile(pool)
	if err != nil {
		return nil, err
	}
	if err := storage.ConfigurePool(db, storage.WithPoolConfig(poolConfig)); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func gormBackend(ctx context.Context, cfg *config.Config, db *gorm.DB) (*Backend, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	pending := storage.NewGormQueue(db, cfg.Queue)
	if err := pending.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("backend: migrate: %w", err)
	}

	b := &Backend{Kind: cfg.Backend, Pending: pending, close: sqlDB.Close}
	if name := cfg.FailedQueueName(); name != "" {
		b.Failed = storage.NewGormQueue(db, name)
	}
	return b, nil
}

// memoryQueue adapts queue.Memory to Queue.
type memoryQueue struct {
	*queue.Memory
}

func (m memoryQueue) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(m.Len()), nil
}

func (m memoryQueue) List(ctx context.Context, limit int) ([]*core.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jobs := m.Memory.List()
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs, nil
}
