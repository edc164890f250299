package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer          = otel.Tracer("ledgersync/scheduler")
	jobMeter           = otel.Meter("ledgersync/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
)

// Pool errors.
var (
	ErrQueueFull  = errors.New("job queue full")
	ErrPoolClosed = errors.New("worker pool closed")
)

// Job is a unit of work run by the pool.
type Job interface {
	Description() string
	AccountID() string
	Execute(ctx context.Context) error
}

// WorkerPool runs jobs on a fixed number of goroutines.
type WorkerPool struct {
	ctx         context.Context
	jobs        chan Job
	cancel      context.CancelFunc
	logger      *slog.Logger
	wg          sync.WaitGroup
	workerCount int
	jobTimeout  time.Duration
	mu          sync.RWMutex
	closed      bool
}

// NewWorkerPool creates a pool. Jobs get jobTimeout to finish; zero means
// no per-job deadline.
func NewWorkerPool(workerCount, queueSize int, jobTimeout time.Duration) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		ctx:         ctx,
		jobs:        make(chan Job, queueSize),
		cancel:      cancel,
		logger:      common.Component("worker_pool"),
		workerCount: workerCount,
		jobTimeout:  jobTimeout,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	wp.logger.Info("Starting worker pool", "workers", wp.workerCount)

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processJob(id, job)
		}
	}
}

// processJob runs one job with a deadline, a span and counters. A panic in
// the job is recorded as a failure and never reaches the worker loop.
func (wp *WorkerPool) processJob(workerID int, job Job) {
	ctx := wp.ctx
	if wp.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.jobTimeout)
		defer cancel()
	}

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.account_id", job.AccountID()),
		),
	)
	defer span.End()

	start := time.Now()
	err := runRecovered(ctx, job)
	jobDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		wp.logger.Error("Job failed",
			"worker", workerID,
			"job", job.Description(),
			"account_id", job.AccountID(),
			"error", err)
		return
	}

	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	wp.logger.Info("Job completed",
		"worker", workerID,
		"job", job.Description(),
		"account_id", job.AccountID(),
		"duration", time.Since(start))
}

func runRecovered(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Execute(ctx)
}

// Submit queues a job without blocking.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case wp.jobs <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		wp.logger.Warn("Job queue full, dropping job", "account_id", job.AccountID())
		return fmt.Errorf("%w: dropping job for account %s", ErrQueueFull, job.AccountID())
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. Jobs
// still running after timeout have their context cancelled.
func (wp *WorkerPool) Shutdown(timeout time.Duration) {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobs)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Info("Worker pool stopped")
	case <-time.After(timeout):
		wp.logger.Warn("Worker pool shutdown timed out, cancelling running jobs")
		wp.cancel()
		<-done
	}
	wp.cancel()
}
