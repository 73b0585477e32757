package processor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/queue"
	"github.com/jdziat/simple-batch-jobs/pkg/resolver"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// scriptedQueue returns one scripted response per Pop call and records pushes.
type scriptedQueue struct {
	mu      sync.Mutex
	pops    []popResult
	popped  int
	pushed  []*core.Job
	pushErr error
}

type popResult struct {
	job *core.Job
	err error
}

func (q *scriptedQueue) Pop(context.Context) (*core.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.popped++
	if len(q.pops) == 0 {
		return nil, core.ErrQueueEmpty
	}
	r := q.pops[0]
	q.pops = q.pops[1:]
	return r.job, r.err
}

func (q *scriptedQueue) Push(_ context.Context, job *core.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		return q.pushErr
	}
	q.pushed = append(q.pushed, job)
	return nil
}

// endlessQueue never runs out of jobs.
type endlessQueue struct {
	handler string
	popped  int
}

func (q *endlessQueue) Pop(context.Context) (*core.Job, error) {
	q.popped++
	return &core.Job{ID: "job", Handler: q.handler, CreatedAt: time.Now(), UpdatedAt: time.Now()}, nil
}

func (q *endlessQueue) Push(context.Context, *core.Job) error { return nil }

// fakeClock is advanced explicitly by tests and handlers.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func mustJob(t *testing.T, handler string, params ...any) *core.Job {
	t.Helper()
	job, err := core.NewJob(handler, params...)
	require.NoError(t, err)
	return job
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newResolver() *resolver.Resolver {
	r := resolver.New()
	r.Register("ok", func() string { return "done" })
	r.Register("boom", func() error { return errors.New("boom") })
	return r
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	p := New(queue.NewMemory(""), newResolver())

	assert.Equal(t, DefaultLimit, p.Limit())
	assert.Equal(t, 10, p.Limit())
	assert.Zero(t, p.TimeLimit())
	assert.Nil(t, p.FailedQueue())
}

func TestLimit_NegativeClampsToZero(t *testing.T) {
	p := New(queue.NewMemory(""), newResolver(), Limit(-5))
	assert.Equal(t, 0, p.Limit())
}

func TestWithLimit_ReturnsConfiguredCopy(t *testing.T) {
	p := New(queue.NewMemory(""), newResolver(), Limit(3))

	natural := p.WithLimit(25)
	negative := p.WithLimit(-1)

	assert.Equal(t, 25, natural.Limit())
	assert.Equal(t, 0, negative.Limit())
	assert.Equal(t, 3, p.Limit(), "original processor is unchanged")
}

func TestOptions_Apply(t *testing.T) {
	failed := queue.NewMemory("failed")
	p := New(queue.NewMemory(""), newResolver(),
		TimeLimit(time.Minute),
		FailedQueue(failed),
		WithLogger(nil),
		WithMeter(nil),
		WithClock(nil),
	)

	assert.Equal(t, time.Minute, p.TimeLimit())
	assert.Same(t, failed, p.FailedQueue())
	assert.NotNil(t, p.config.Logger)
	assert.NotNil(t, p.config.Meter)
	assert.NotNil(t, p.config.Now)
}

// ---------------------------------------------------------------------------
// Execute – count budget
// ---------------------------------------------------------------------------

func TestExecute_RunsExactlyLimitJobs(t *testing.T) {
	for _, limit := range []int{0, 1, 3, 10, 25} {
		q := &endlessQueue{handler: "ok"}
		p := New(q, newResolver(), Limit(limit), WithLogger(quietLogger()))

		outcomes := p.Execute(context.Background())

		require.Len(t, outcomes, limit, "limit=%d", limit)
		assert.Equal(t, limit, q.popped, "limit=%d", limit)
		for _, o := range outcomes {
			assert.Equal(t, core.OutcomeSuccess, o.Kind)
			assert.Equal(t, "done", o.Result)
		}
	}
}

func TestExecute_ZeroLimitReturnsEmpty(t *testing.T) {
	q := &endlessQueue{handler: "ok"}
	outcomes := New(q, newResolver(), Limit(0)).Execute(context.Background())

	assert.NotNil(t, outcomes)
	assert.Empty(t, outcomes)
	assert.Zero(t, q.popped)
}

// ---------------------------------------------------------------------------
// Execute – empty queue
// ---------------------------------------------------------------------------

func TestExecute_EmptyQueueStopsBatch(t *testing.T) {
	q := &scriptedQueue{pops: []popResult{
		{job: mustJob(t, "ok")},
		{job: mustJob(t, "ok")},
		{err: core.ErrQueueEmpty},
		{job: mustJob(t, "ok")},
	}}
	p := New(q, newResolver(), Limit(10), WithLogger(quietLogger()))

	outcomes := p.Execute(context.Background())

	require.Len(t, outcomes, 3)
	assert.Equal(t, core.OutcomeSuccess, outcomes[0].Kind)
	assert.Equal(t, core.OutcomeSuccess, outcomes[1].Kind)
	assert.Equal(t, core.OutcomeEmpty, outcomes[2].Kind)
	assert.ErrorIs(t, outcomes[2].Err, core.ErrQueueEmpty)
	assert.NotEmpty(t, outcomes[2].Message)
	assert.Equal(t, 3, q.popped, "no pop after the queue reported empty")
}

func TestExecute_EmptyOnFirstPop(t *testing.T) {
	q := &scriptedQueue{}
	outcomes := New(q, newResolver(), WithLogger(quietLogger())).Execute(context.Background())

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Empty())
	assert.Equal(t, 1, q.popped)
}

func TestExecute_NilJobTreatedAsEmpty(t *testing.T) {
	q := &scriptedQueue{pops: []popResult{{}}}
	outcomes := New(q, newResolver(), WithLogger(quietLogger())).Execute(context.Background())

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Empty())
}

// ---------------------------------------------------------------------------
// Execute – failures
// ---------------------------------------------------------------------------

func TestExecute_ScenarioSuccessFailureEmpty(t *testing.T) {
	j1 := mustJob(t, "ok")
	j1.ID = "j1"
	j2 := mustJob(t, "boom")
	j2.ID = "j2"

	q := &scriptedQueue{pops: []popResult{{job: j1}, {job: j2}, {err: core.ErrQueueEmpty}}}
	p := New(q, newResolver(), Limit(3), WithLogger(quietLogger()))

	outcomes := p.Execute(context.Background())

	require.Len(t, outcomes, 3)

	assert.Equal(t, core.OutcomeSuccess, outcomes[0].Kind)
	assert.Equal(t, "j1", outcomes[0].JobID)
	assert.Equal(t, "done", outcomes[0].Result)

	assert.Equal(t, core.OutcomeFailure, outcomes[1].Kind)
	assert.Equal(t, "j2", outcomes[1].JobID)
	assert.Equal(t, "boom", outcomes[1].Message)
	assert.False(t, outcomes[1].Requeued)

	assert.Equal(t, core.OutcomeEmpty, outcomes[2].Kind)
	assert.Equal(t, 3, q.popped)
}

func TestExecute_FailureRequeuedToFailedQueue(t *testing.T) {
	clock := newFakeClock()
	created := clock.Now()
	job := mustJob(t, "boom", "x")
	job.ID = "job-1"
	job.CreatedAt, job.UpdatedAt = created, created

	pending := &scriptedQueue{pops: []popResult{{job: job}}}
	failed := &scriptedQueue{}
	clock.Advance(time.Minute)

	p := New(pending, newResolver(),
		FailedQueue(failed),
		WithClock(clock.Now),
		WithLogger(quietLogger()),
	)
	outcomes := p.Execute(context.Background())

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Failed())
	assert.True(t, outcomes[0].Requeued)

	require.Len(t, failed.pushed, 1)
	requeued := failed.pushed[0]
	assert.Same(t, job, requeued)
	assert.Equal(t, "boom", requeued.FailureReason)
	assert.True(t, requeued.UpdatedAt.After(created), "updated timestamp refreshed")
	require.NotNil(t, requeued.FailedAt)
	assert.Equal(t, "x", string(requeued.Params[0][1:2]))
}

func TestExecute_FailureWithoutFailedQueue(t *testing.T) {
	job := mustJob(t, "boom")
	pending := &scriptedQueue{pops: []popResult{{job: job}, {job: mustJob(t, "ok")}}}

	outcomes := New(pending, newResolver(), Limit(2), WithLogger(quietLogger())).Execute(context.Background())

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Failed())
	assert.False(t, outcomes[0].Requeued)
	assert.Empty(t, job.FailureReason, "job is not annotated without a failed queue")
	assert.True(t, outcomes[1].Succeeded(), "loop continues after a failure")
}

func TestExecute_InvalidHandler(t *testing.T) {
	failed := &scriptedQueue{}
	pending := &scriptedQueue{pops: []popResult{{job: mustJob(t, "unregistered")}}}

	outcomes := New(pending, newResolver(), Limit(1), FailedQueue(failed), WithLogger(quietLogger())).
		Execute(context.Background())

	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, core.ErrInvalidHandler)
	var handlerErr *core.HandlerError
	require.ErrorAs(t, outcomes[0].Err, &handlerErr)
	assert.Equal(t, "unregistered", handlerErr.Handler)
	assert.Len(t, failed.pushed, 1)
}

func TestExecute_FailureCodeRecorded(t *testing.T) {
	r := resolver.New()
	r.Register("coded", func() error { return core.WithCode(409, errors.New("conflict")) })
	pending := &scriptedQueue{pops: []popResult{{job: mustJob(t, "coded")}}}

	outcomes := New(pending, r, Limit(1), WithLogger(quietLogger())).Execute(context.Background())

	require.Len(t, outcomes, 1)
	assert.Equal(t, 409, outcomes[0].Code)
	assert.Equal(t, "conflict", outcomes[0].Message)
}

func TestExecute_HandlerPanicIsCaptured(t *testing.T) {
	r := resolver.New()
	r.Register("panics", func() { panic("bad state") })
	failed := &scriptedQueue{}
	pending := &scriptedQueue{pops: []popResult{{job: mustJob(t, "panics")}}}

	var outcomes []core.Outcome
	assert.NotPanics(t, func() {
		outcomes = New(pending, r, Limit(1), FailedQueue(failed), WithLogger(quietLogger())).
			Execute(context.Background())
	})

	require.Len(t, outcomes, 1)
	var panicErr *core.PanicError
	assert.ErrorAs(t, outcomes[0].Err, &panicErr)
	require.Len(t, failed.pushed, 1)
	assert.Contains(t, failed.pushed[0].FailureReason, "bad state")
}

func TestExecute_PopFailureContinues(t *testing.T) {
	storageDown := errors.New("storage down")
	failed := &scriptedQueue{}
	pending := &scriptedQueue{pops: []popResult{
		{err: storageDown},
		{job: mustJob(t, "ok")},
	}}

	outcomes := New(pending, newResolver(), Limit(2), FailedQueue(failed), WithLogger(quietLogger())).
		Execute(context.Background())

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Failed())
	assert.ErrorIs(t, outcomes[0].Err, core.ErrQueueOperation)
	assert.ErrorIs(t, outcomes[0].Err, storageDown)
	assert.Equal(t, "storage down", outcomes[0].Message)
	assert.Empty(t, outcomes[0].JobID)
	assert.False(t, outcomes[0].Requeued)
	assert.Empty(t, failed.pushed, "nothing to requeue when no job was dequeued")
	assert.True(t, outcomes[1].Succeeded())
}

func TestExecute_RequeueFailureStopsBatch(t *testing.T) {
	pushErr := errors.New("failed queue unavailable")
	failed := &scriptedQueue{pushErr: pushErr}
	pending := &scriptedQueue{pops: []popResult{
		{job: mustJob(t, "boom")},
		{job: mustJob(t, "ok")},
	}}

	outcomes := New(pending, newResolver(), Limit(5), FailedQueue(failed), WithLogger(quietLogger())).
		Execute(context.Background())

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Failed())
	assert.False(t, outcomes[0].Requeued)
	assert.ErrorIs(t, outcomes[0].Err, core.ErrRequeueFailed)
	assert.ErrorIs(t, outcomes[0].Err, pushErr)
	assert.Equal(t, "boom", outcomes[0].Message)
	assert.Equal(t, 1, pending.popped)
}

// panickingQueue panics on every Pop and Push.
type panickingQueue struct{ value any }

func (q panickingQueue) Pop(context.Context) (*core.Job, error) { panic(q.value) }

func (q panickingQueue) Push(context.Context, *core.Job) error { panic(q.value) }

// panickingInvoker panics instead of running the job.
type panickingInvoker struct{}

func (panickingInvoker) Handle(context.Context, *core.Job) (any, error) { panic("invoker bug") }

func TestExecute_PopPanicIsCaptured(t *testing.T) {
	p := New(panickingQueue{value: "storage driver bug"}, newResolver(), Limit(2), WithLogger(quietLogger()))

	var outcomes []core.Outcome
	require.NotPanics(t, func() { outcomes = p.Execute(context.Background()) })

	require.Len(t, outcomes, 2, "loop continues after a queue failure")
	for _, o := range outcomes {
		assert.True(t, o.Failed())
		assert.False(t, o.Dequeued)
		assert.ErrorIs(t, o.Err, core.ErrQueueOperation)
		var perr *core.PanicError
		require.ErrorAs(t, o.Err, &perr)
		assert.Equal(t, "storage driver bug", perr.Value)
	}
}

func TestExecute_InvokerPanicRoutesJobToFailedQueue(t *testing.T) {
	job := mustJob(t, "anything")
	pending := &scriptedQueue{pops: []popResult{{job: job}}}
	failed := &scriptedQueue{}

	var outcomes []core.Outcome
	require.NotPanics(t, func() {
		outcomes = New(pending, panickingInvoker{}, FailedQueue(failed), WithLogger(quietLogger())).
			Execute(context.Background())
	})

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Failed())
	assert.True(t, outcomes[0].Dequeued)
	assert.True(t, outcomes[0].Requeued)
	assert.Equal(t, job.ID, outcomes[0].JobID)
	var herr *core.HandlerError
	assert.ErrorAs(t, outcomes[0].Err, &herr)
	var perr *core.PanicError
	assert.ErrorAs(t, outcomes[0].Err, &perr)
	assert.Equal(t, "panic: invoker bug", outcomes[0].Message)

	require.Len(t, failed.pushed, 1)
	assert.Equal(t, "panic: invoker bug", failed.pushed[0].FailureReason)
	assert.True(t, outcomes[1].Empty())
}

func TestExecute_FailedQueuePanicStopsBatch(t *testing.T) {
	pending := &scriptedQueue{pops: []popResult{
		{job: mustJob(t, "boom")},
		{job: mustJob(t, "ok")},
	}}

	var outcomes []core.Outcome
	require.NotPanics(t, func() {
		outcomes = New(pending, newResolver(), Limit(5),
			FailedQueue(panickingQueue{value: "failed queue bug"}),
			WithLogger(quietLogger()),
		).Execute(context.Background())
	})

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Failed())
	assert.False(t, outcomes[0].Requeued)
	assert.ErrorIs(t, outcomes[0].Err, core.ErrRequeueFailed)
	var perr *core.PanicError
	assert.ErrorAs(t, outcomes[0].Err, &perr)
	assert.Equal(t, 1, pending.popped)
}

// ---------------------------------------------------------------------------
// Execute – time budget and cancellation
// ---------------------------------------------------------------------------

func TestExecute_TimeLimitStopsAtIterationBoundary(t *testing.T) {
	clock := newFakeClock()
	r := resolver.New()
	r.Register("slow", func() { clock.Advance(2 * time.Second) })
	q := &endlessQueue{handler: "slow"}

	p := New(q, r, Limit(10), TimeLimit(5*time.Second), WithClock(clock.Now), WithLogger(quietLogger()))
	outcomes := p.Execute(context.Background())

	// 0s -> 2s -> 4s -> 6s; the fourth boundary sees 6s > 5s.
	require.Len(t, outcomes, 3)
	assert.Equal(t, 3, q.popped)
	for _, o := range outcomes {
		assert.True(t, o.Succeeded())
		assert.Equal(t, 2*time.Second, o.Duration)
	}
}

func TestExecute_TimeLimitFirstIterationAlwaysRuns(t *testing.T) {
	clock := newFakeClock()
	r := resolver.New()
	r.Register("slow", func() { clock.Advance(time.Hour) })
	q := &endlessQueue{handler: "slow"}

	outcomes := New(q, r, Limit(5), TimeLimit(time.Second), WithClock(clock.Now), WithLogger(quietLogger())).
		Execute(context.Background())

	assert.Len(t, outcomes, 1)
}

func TestExecute_NoTimeLimitRunsFullBatch(t *testing.T) {
	clock := newFakeClock()
	r := resolver.New()
	r.Register("slow", func() { clock.Advance(time.Hour) })
	q := &endlessQueue{handler: "slow"}

	outcomes := New(q, r, Limit(4), TimeLimit(0), WithClock(clock.Now), WithLogger(quietLogger())).
		Execute(context.Background())

	assert.Len(t, outcomes, 4)
}

func TestExecute_CancelledContextStopsAtBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := resolver.New()
	r.Register("cancel", func() { cancel() })
	q := &endlessQueue{handler: "cancel"}

	outcomes := New(q, r, Limit(5), WithLogger(quietLogger())).Execute(ctx)

	require.Len(t, outcomes, 1, "in-flight handler finishes, next iteration is skipped")
	assert.True(t, outcomes[0].Succeeded())
}

// ---------------------------------------------------------------------------
// Execute – end to end with memory queues
// ---------------------------------------------------------------------------

type invoiceTask struct {
	customer string
	amount   int
}

func (i *invoiceTask) Handle(context.Context) (any, error) {
	if i.amount < 0 {
		return nil, errors.New("negative amount")
	}
	return map[string]any{"customer": i.customer, "amount": i.amount}, nil
}

func TestExecute_StructuredHandlerResultVerbatim(t *testing.T) {
	ctx := context.Background()
	r := resolver.New()
	r.Register("invoice", func(customer string, amount int) *invoiceTask {
		return &invoiceTask{customer: customer, amount: amount}
	})

	pending := queue.NewMemory("default")
	failed := queue.NewMemory("failed")
	require.NoError(t, pending.Push(ctx, mustJob(t, "invoice", "acme", 100)))
	require.NoError(t, pending.Push(ctx, mustJob(t, "invoice", "globex", -1)))

	outcomes := New(pending, r, FailedQueue(failed), WithLogger(quietLogger())).Execute(ctx)

	require.Len(t, outcomes, 3)
	assert.Equal(t, map[string]any{"customer": "acme", "amount": 100}, outcomes[0].Result)
	assert.Equal(t, "negative amount", outcomes[1].Message)
	assert.True(t, outcomes[2].Empty())

	assert.Equal(t, 0, pending.Len())
	require.Equal(t, 1, failed.Len())
	assert.Equal(t, "negative amount", failed.List()[0].FailureReason)
	assert.Equal(t, "failed", failed.List()[0].Queue)
}

func TestExecute_ConcurrentProcessorsShareQueue(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	counts := make(map[int]int)
	r := resolver.New()
	r.Register("count", func(n int) {
		mu.Lock()
		counts[n]++
		mu.Unlock()
	})

	pending := queue.NewMemory("default")
	const total = 100
	for i := 0; i < total; i++ {
		require.NoError(t, pending.Push(ctx, mustJob(t, "count", i)))
	}

	p := New(pending, r, Limit(total), WithLogger(quietLogger()))
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Execute(ctx)
		}()
	}
	wg.Wait()

	assert.Len(t, counts, total)
	for n, c := range counts {
		assert.Equal(t, 1, c, "job %d ran more than once", n)
	}
}

// ---------------------------------------------------------------------------
// Summarize
// ---------------------------------------------------------------------------

func TestSummarize(t *testing.T) {
	s := Summarize([]core.Outcome{
		{Kind: core.OutcomeSuccess},
		{Kind: core.OutcomeFailure, Requeued: true},
		{Kind: core.OutcomeFailure},
		{Kind: core.OutcomeEmpty},
	})

	assert.Equal(t, Summary{Attempted: 3, Succeeded: 1, Failed: 2, Requeued: 1, Drained: true}, s)
	assert.Equal(t, Summary{}, Summarize(nil))
}
