package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// Store is the job state machine surface the worker drives.
type Store interface {
	JobsByState(ctx context.Context, state domain.JobState, limit, offset int) ([]domain.Job, error)
	ScheduleJob(ctx context.Context, job domain.Job) (domain.Job, error)
	StartJob(ctx context.Context, job domain.Job) (domain.Job, error)
	FinishJob(ctx context.Context, job domain.Job) (domain.Job, error)
	FailJob(ctx context.Context, job domain.Job) (domain.Job, error)
	IncrementRetry(ctx context.Context, jobID uuid.UUID) (domain.Job, error)
}

// Executor runs the payload of a job. Capabilities names the element
// types it can serve, announced through the capability registry.
type Executor interface {
	Capabilities() []string
	Execute(ctx context.Context, job domain.Job) error
}

// CapabilityRegistry records the executor's capabilities.
type CapabilityRegistry interface {
	Register(name string)
}

// MetricsSink defines the interface for recording worker metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	WorkerJobProcessed(outcome string, duration time.Duration)
}

// retryable is implemented by executor errors that are worth a retry.
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err marks itself as retryable.
func IsRetryable(err error) bool {
	var r retryable
	return errors.As(err, &r) && r.Retryable()
}

// Worker polls for created jobs and walks each through the lifecycle:
// schedule, start, execute, then finish or fail. It holds no claim
// beyond the state transitions themselves, so it must run on exactly
// one process (leader-gated in the server).
type Worker struct {
	store     Store
	executor  Executor
	interval  time.Duration
	batchSize int
	metrics   MetricsSink // optional, nil = disabled
}

func New(store Store, executor Executor, interval time.Duration, batchSize int) *Worker {
	return &Worker{
		store:     store,
		executor:  executor,
		interval:  interval,
		batchSize: batchSize,
	}
}

// WithMetrics attaches a metrics sink to the worker.
func (w *Worker) WithMetrics(sink MetricsSink) *Worker {
	w.metrics = sink
	return w
}

// RegisterCapabilities announces the executor's element types.
func (w *Worker) RegisterCapabilities(registry CapabilityRegistry) {
	for _, name := range w.executor.Capabilities() {
		registry.Register(name)
	}
}

// Run polls until the context is cancelled. The first pass runs
// immediately.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker: stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	jobs, err := w.store.JobsByState(ctx, domain.JobStateCreated, w.batchSize, 0)
	if err != nil {
		log.Printf("worker: list created jobs: %v", err)
		return
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job domain.Job) {
	started := time.Now()
	outcome := w.run(ctx, job)
	if w.metrics != nil {
		w.metrics.WorkerJobProcessed(outcome, time.Since(started))
	}
}

func (w *Worker) run(ctx context.Context, job domain.Job) (outcome string) {
	job, err := w.store.ScheduleJob(ctx, job)
	if err != nil {
		log.Printf("worker: job=%s schedule: %v", job.ID, err)
		return "error"
	}
	job, err = w.store.StartJob(ctx, job)
	if err != nil {
		log.Printf("worker: job=%s start: %v", job.ID, err)
		return "error"
	}

	execErr := w.executor.Execute(ctx, job)
	if execErr == nil {
		if _, err := w.store.FinishJob(ctx, job); err != nil {
			log.Printf("worker: job=%s finish: %v", job.ID, err)
			return "error"
		}
		return "finished"
	}

	log.Printf("worker: job=%s execute failed: %v", job.ID, execErr)
	if IsRetryable(execErr) {
		if refreshed, err := w.store.IncrementRetry(ctx, job.ID); err != nil {
			log.Printf("worker: job=%s increment retry: %v", job.ID, err)
		} else {
			job = refreshed
		}
	}
	if _, err := w.store.FailJob(ctx, job); err != nil {
		log.Printf("worker: job=%s fail: %v", job.ID, err)
		return "error"
	}
	return "failed"
}
