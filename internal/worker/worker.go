package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/elicit/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// Handler processes the JSON payload of one job.
type Handler func(ctx context.Context, payload string) error

// Worker processes background jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	handlers map[string]Handler
	types    []string
	poll     time.Duration
	logger   *slog.Logger
}

// New creates a Worker dispatching jobs by type to handlers.
// If pollInterval is <= 0, it defaults to 500ms.
func New(store JobStore, handlers map[string]Handler, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	types := make([]string, 0, len(handlers))
	for t := range handlers {
		types = append(types, t)
	}
	return &Worker{
		store:    store,
		handlers: handlers,
		types:    types,
		poll:     pollInterval,
		logger:   logger,
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, w.types)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	handle, ok := w.handlers[job.Type]
	if !ok {
		err = fmt.Errorf("no handler for job type %q", job.Type)
	} else {
		err = handle(ctx, job.PayloadJSON)
	}
	if err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "attempt", job.Attempts+1, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Debug("job completed", "job_id", job.ID, "type", job.Type)
	return true, nil
}
