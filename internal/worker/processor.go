package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadflowhq/leadflow/internal/domain"
)

// Backoff returns the capped exponential delay before retry attempt n
// (1-based): base, 2*base, 4*base... never exceeding cap.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap || d <= 0 {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}

// processNext claims and processes at most one job. Returns true when
// a job was claimed, so the caller keeps draining before going back to
// waiting.
func (w *Worker) processNext(ctx context.Context, workerName string) bool {
	job, err := w.store.ClaimNextJob(ctx, workerName)
	if err != nil {
		w.logger.Error("Failed to claim job",
			slog.String("worker_name", workerName),
			slog.Any("error", err),
		)
		return false
	}
	if job == nil {
		return false
	}

	w.processJob(ctx, workerName, job)
	return true
}

// processJob runs one claimed job to a terminal or retried state.
func (w *Worker) processJob(ctx context.Context, workerName string, job *domain.Job) {
	w.logger.Info("Processing job",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.JobType)),
		slog.String("worker_name", workerName),
		slog.Int("retry_count", job.RetryCount),
	)

	executor := w.registry.Get(job.JobType)
	if executor == nil {
		// Should be unreachable: the store validates job types on the
		// way in.
		if err := w.store.FailJob(ctx, job.ID, workerName, fmt.Sprintf("no executor for job type %q", job.JobType)); err != nil {
			w.logger.Error("Failed to fail job without executor",
				slog.String("job_id", job.ID),
				slog.Any("error", err),
			)
		}
		return
	}

	// A cancel can land between the claim and the dispatch; skip the
	// executor entirely instead of discovering the cancellation after
	// a full run.
	if current, err := w.store.GetJob(ctx, job.ID); err == nil && current.Status == domain.JobStatusCancelled {
		w.logger.Info("Job was cancelled before dispatch, skipping",
			slog.String("job_id", job.ID),
		)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.ID, workerName, heartbeatDone)
	defer close(heartbeatDone)

	result, execErr := executor.Execute(jobCtx, job)
	if execErr == nil && jobCtx.Err() != nil {
		execErr = domain.NewRetryableError(fmt.Errorf("job timed out: %w", jobCtx.Err()))
	}

	// The job may have been cancelled while running; a cancelled job's
	// outcome is discarded.
	current, err := w.store.GetJob(ctx, job.ID)
	if err == nil && current.Status == domain.JobStatusCancelled {
		w.logger.Info("Job was cancelled during execution, discarding result",
			slog.String("job_id", job.ID),
		)
		return
	}

	if execErr != nil {
		w.finishWithError(ctx, workerName, job, execErr)
		return
	}

	if err := w.store.CompleteJob(ctx, job.ID, workerName, result); err != nil {
		var transition *domain.InvalidTransitionError
		if errors.As(err, &transition) {
			w.logger.Info("Job finalization superseded, discarding result",
				slog.String("job_id", job.ID),
				slog.String("status", transition.From),
			)
			return
		}
		w.logger.Error("Failed to complete job",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
}

// finishWithError retries a transient failure until the retry budget
// runs out, then fails the job for good.
func (w *Worker) finishWithError(ctx context.Context, workerName string, job *domain.Job, execErr error) {
	if domain.IsRetryable(execErr) && job.RetryCount < job.MaxRetries {
		delay := Backoff(job.RetryCount+1, w.retryBackoffBase, w.retryBackoffCap)
		retryAt := time.Now().Add(delay)

		w.logger.Warn("Job failed, scheduling retry",
			slog.String("job_id", job.ID),
			slog.Int("attempt", job.RetryCount+1),
			slog.Int("max_retries", job.MaxRetries),
			slog.Duration("delay", delay),
			slog.Any("error", execErr),
		)
		if err := w.store.RetryJob(ctx, job.ID, workerName, execErr.Error(), retryAt); err != nil {
			w.logger.Error("Failed to schedule job retry",
				slog.String("job_id", job.ID),
				slog.Any("error", err),
			)
		}
		return
	}

	errMsg := execErr.Error()
	if domain.IsRetryable(execErr) {
		errMsg = fmt.Sprintf("%s: %s", domain.ErrMaxRetriesExceeded, errMsg)
	}
	if err := w.store.FailJob(ctx, job.ID, workerName, errMsg); err != nil {
		w.logger.Error("Failed to fail job",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}
}

// sendJobHeartbeat refreshes the job's liveness timestamp until the
// job finishes.
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID, workerName string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.UpdateJobHeartbeat(ctx, jobID, workerName); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.Any("error", err),
				)
			}
		}
	}
}
