package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// maxPopAttempts bounds how often Pop retries after losing a race for the
// same row on databases without SKIP LOCKED.
const maxPopAttempts = 5

// jobRecord is the row layout of the jobs table. Seq gives a total FIFO
// order even when CreatedAt values collide.
type jobRecord struct {
	Seq           uint64      `gorm:"primaryKey;autoIncrement"`
	JobID         string      `gorm:"column:job_id;index;size:36;not null"`
	Queue         string      `gorm:"index;size:255;not null;default:'default'"`
	Handler       string      `gorm:"size:255;not null"`
	Params        core.Params `gorm:"type:text"`
	FailureReason string      `gorm:"type:text"`
	FailedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (jobRecord) TableName() string { return "jobs" }

func recordFromJob(job *core.Job) *jobRecord {
	return &jobRecord{
		JobID:         job.ID,
		Queue:         job.Queue,
		Handler:       job.Handler,
		Params:        job.Params,
		FailureReason: job.FailureReason,
		FailedAt:      job.FailedAt,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}

func (r *jobRecord) job() *core.Job {
	params := r.Params
	if params == nil {
		params = core.Params{}
	}
	return &core.Job{
		ID:            r.JobID,
		Handler:       r.Handler,
		Params:        params,
		Queue:         r.Queue,
		FailureReason: r.FailureReason,
		FailedAt:      r.FailedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// GormQueue implements core.Queue on a relational table. Several GormQueues
// with different names share the jobs table, so a pending and a failed
// queue can live in one database.
type GormQueue struct {
	db   *gorm.DB
	name string
}

// NewGormQueue creates a queue named name backed by db. An empty name means
// "default".
func NewGormQueue(db *gorm.DB, name string) *GormQueue {
	if name == "" {
		name = "default"
	}
	return &GormQueue{db: db, name: name}
}

// Name returns the queue name.
func (q *GormQueue) Name() string {
	return q.name
}

// DB returns the underlying database handle.
func (q *GormQueue) DB() *gorm.DB {
	return q.db
}

// IsSQLite reports whether the queue runs on SQLite.
func (q *GormQueue) IsSQLite() bool {
	return q.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (q *GormQueue) Migrate(ctx context.Context) error {
	return q.db.WithContext(ctx).AutoMigrate(&jobRecord{})
}

// Push stores job at the tail of the queue. It assigns an ID, timestamps and
// empty params when missing, and stamps the queue name on the job.
func (q *GormQueue) Push(ctx context.Context, job *core.Job) error {
	if job == nil || job.Handler == "" {
		return core.ErrEmptyHandler
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.Before(job.CreatedAt) {
		job.UpdatedAt = job.CreatedAt
	}
	if job.Params == nil {
		job.Params = core.Params{}
	}
	job.Queue = q.name

	if err := q.db.WithContext(ctx).Create(recordFromJob(job)).Error; err != nil {
		return fmt.Errorf("push job %s: %w", job.ID, err)
	}
	return nil
}

// Pop removes and returns the oldest job in the queue. The row is deleted
// inside the same transaction that selects it, so a job is handed to at
// most one caller. PostgreSQL uses FOR UPDATE SKIP LOCKED so concurrent
// callers do not block on each other.
func (q *GormQueue) Pop(ctx context.Context) (*core.Job, error) {
	for attempt := 0; attempt < maxPopAttempts; attempt++ {
		var rec jobRecord
		claimed := false

		err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			query := tx.Where("queue = ?", q.name).Order("seq ASC")
			if !q.IsSQLite() {
				query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
			}
			if err := query.First(&rec).Error; err != nil {
				return err
			}

			result := tx.Where("seq = ?", rec.Seq).Delete(&jobRecord{})
			if result.Error != nil {
				return result.Error
			}
			claimed = result.RowsAffected == 1
			return nil
		})

		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrQueueEmpty
		}
		if err != nil {
			return nil, fmt.Errorf("pop from %s: %w", q.name, err)
		}
		if claimed {
			return rec.job(), nil
		}
	}
	return nil, fmt.Errorf("pop from %s: %w: contention", q.name, core.ErrQueueOperation)
}

// Count returns the number of jobs in the queue.
func (q *GormQueue) Count(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.WithContext(ctx).
		Model(&jobRecord{}).
		Where("queue = ?", q.name).
		Count(&n).Error
	return n, err
}

// List returns up to limit jobs in pop order without removing them.
// A limit <= 0 returns every job.
func (q *GormQueue) List(ctx context.Context, limit int) ([]*core.Job, error) {
	var records []jobRecord
	query := q.db.WithContext(ctx).Where("queue = ?", q.name).Order("seq ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	jobs := make([]*core.Job, 0, len(records))
	for i := range records {
		jobs = append(jobs, records[i].job())
	}
	return jobs, nil
}

// Get returns the queued job with the given ID, or core.ErrJobNotFound.
func (q *GormQueue) Get(ctx context.Context, id string) (*core.Job, error) {
	var rec jobRecord
	err := q.db.WithContext(ctx).
		Where("queue = ? AND job_id = ?", q.name, id).
		Order("seq ASC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.job(), nil
}
