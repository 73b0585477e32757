package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// Memory is an in-memory FIFO queue. Pop is atomic, so several processors
// in one process may share a Memory queue.
type Memory struct {
	name string
	jobs []*core.Job
	mu   sync.Mutex
}

// NewMemory creates an empty queue. An empty name means "default".
func NewMemory(name string) *Memory {
	if name == "" {
		name = "default"
	}
	return &Memory{name: name}
}

// Name returns the queue name stamped on pushed jobs.
func (m *Memory) Name() string {
	return m.name
}

// Push appends a copy of job, so later changes to job by the caller do not
// reach the queue. It assigns an ID and timestamps when missing.
func (m *Memory) Push(ctx context.Context, job *core.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
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
	job.Queue = m.name

	stored := cloneJob(job)
	m.mu.Lock()
	m.jobs = append(m.jobs, stored)
	m.mu.Unlock()
	return nil
}

// Pop removes and returns the oldest job, or core.ErrQueueEmpty.
func (m *Memory) Pop(ctx context.Context) (*core.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.jobs) == 0 {
		return nil, core.ErrQueueEmpty
	}
	job := m.jobs[0]
	m.jobs[0] = nil
	m.jobs = m.jobs[1:]
	return job, nil
}

// Len returns the number of queued jobs.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// List returns copies of the queued jobs in pop order.
func (m *Memory) List() []*core.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*core.Job, len(m.jobs))
	for i, job := range m.jobs {
		out[i] = cloneJob(job)
	}
	return out
}

func cloneJob(job *core.Job) *core.Job {
	cp := *job
	cp.Params = make(core.Params, len(job.Params))
	for i, p := range job.Params {
		cp.Params[i] = append([]byte(nil), p...)
	}
	if job.FailedAt != nil {
		failedAt := *job.FailedAt
		cp.FailedAt = &failedAt
	}
	return &cp
}
