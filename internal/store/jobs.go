package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/trigger"
)

const jobColumns = `
	id, job_type, data, priority, status, provenance,
	retry_count, max_retries, worker_id, result,
	created_at, updated_at, scheduled_for, retry_at,
	started_at, completed_at, failed_at, cancelled_at, last_heartbeat_at`

// claimOrder ranks priority for the claim path; unknown values sort
// last. Must stay in sync with domain.PriorityRank.
const claimOrder = `
	CASE priority
		WHEN 'high' THEN 3
		WHEN 'normal' THEN 2
		WHEN 'low' THEN 1
		ELSE 0
	END DESC, created_at ASC, id ASC`

// insertJob writes one pending job row. Shared by the trigger querier
// and the direct enqueue path so both produce identical rows.
func insertJob(ctx context.Context, ext sqlx.ExtContext, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Priority == "" {
		job.Priority = domain.PriorityNormal
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = 3
	}

	query := `
		INSERT INTO jobs (
			id, job_type, data, priority, status, provenance,
			max_retries, scheduled_for
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8
		)
	`
	_, err := ext.ExecContext(
		ctx,
		query,
		job.ID,
		job.JobType,
		[]byte(job.Data),
		job.Priority,
		job.Status,
		job.Provenance,
		job.MaxRetries,
		job.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// EnqueueJob validates and persists a job submitted directly (as
// opposed to one created by a trigger rule), then announces it.
func (s *Store) EnqueueJob(ctx context.Context, job *domain.Job) error {
	if !domain.ValidJobType(job.JobType) {
		return fmt.Errorf("%w: unknown job type %q", domain.ErrInvalidPayload, job.JobType)
	}
	if job.Priority != "" && !domain.ValidPriority(job.Priority) {
		return fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidPayload, job.Priority)
	}
	if _, err := domain.DecodePayload(job.JobType, job.Data); err != nil {
		return err
	}

	if err := insertJob(ctx, s.db, job); err != nil {
		return err
	}

	s.logger.Info("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.JobType)),
		slog.String("priority", string(job.Priority)),
	)

	s.announce(ctx, []trigger.CreatedJob{{ID: job.ID, JobType: job.JobType, Priority: job.Priority}})
	return nil
}

// claimJobQuery is the single-job claim statement. The subselect and
// the outer WHERE both gate on 'pending': SKIP LOCKED keeps concurrent
// claimers off each other's candidate row, and the outer guard makes
// the update a no-op if the row changed state between select and
// update.
const claimJobQuery = `
	UPDATE jobs
	SET status = 'processing',
	    worker_id = $1,
	    started_at = NOW(),
	    last_heartbeat_at = NOW(),
	    updated_at = NOW()
	WHERE id = (
		SELECT id FROM jobs
		WHERE status = 'pending'
		  AND (scheduled_for IS NULL OR scheduled_for <= NOW())
		  AND (retry_at IS NULL OR retry_at <= NOW())
		ORDER BY ` + claimOrder + `
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	AND status = 'pending'
	RETURNING ` + jobColumns

// ClaimNextJob atomically claims the highest-priority eligible pending
// job for workerID. Eligibility gates on scheduled_for and retry_at;
// concurrent claimers skip each other's locked row, so a job is only
// ever handed to one worker. Returns (nil, nil) when nothing is
// claimable.
func (s *Store) ClaimNextJob(ctx context.Context, workerID string) (*domain.Job, error) {
	var job domain.Job
	err := s.db.GetContext(ctx, &job, claimJobQuery, workerID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.JobType)),
		slog.String("worker_id", workerID),
	)
	return &job, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	err := s.db.GetContext(ctx, &job, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// JobFilter narrows ListJobs. Zero values mean "no filter".
type JobFilter struct {
	JobType  domain.JobType
	Status   domain.JobStatus
	Priority domain.JobPriority
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the (created_at, id) position of the last row of the
// previous page.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns jobs newest-first with keyset pagination. It
// fetches one row beyond PageSize so the caller can detect a next
// page.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.JobType != "" {
		query += fmt.Sprintf(" AND job_type = $%d", argIdx)
		args = append(args, filter.JobType)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Priority != "" {
		query += fmt.Sprintf(" AND priority = $%d", argIdx)
		args = append(args, filter.Priority)
		argIdx++
	}
	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// finalizeJob applies a conditional processing -> target update scoped
// to the owning worker, then diagnoses a zero-row match: a job no
// longer in processing reports the attempted transition, a processing
// job owned by someone else reports lost ownership.
func (s *Store) finalizeJob(ctx context.Context, jobID, workerID string, target domain.JobStatus, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	return diagnoseFinalize(job, target)
}

// diagnoseFinalize explains why a finalize update matched no rows
// given the job's current state.
func diagnoseFinalize(job *domain.Job, target domain.JobStatus) error {
	if job.Status != domain.JobStatusProcessing {
		return &domain.InvalidTransitionError{
			Entity: "job",
			From:   string(job.Status),
			To:     string(target),
		}
	}
	return domain.ErrJobNotOwned
}

// CompleteJob moves a processing job owned by workerID to completed.
func (s *Store) CompleteJob(ctx context.Context, jobID, workerID string, result json.RawMessage) error {
	query := `
		UPDATE jobs
		SET status = 'completed',
		    result = $3,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND worker_id = $2
	`
	if err := s.finalizeJob(ctx, jobID, workerID, domain.JobStatusCompleted, query, jobID, workerID, []byte(result)); err != nil {
		return err
	}
	s.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
	)
	return nil
}

// RetryJob returns a processing job to pending with an incremented
// retry count and an eligibility time. Ownership and heartbeat are
// cleared so the next claim starts fresh.
func (s *Store) RetryJob(ctx context.Context, jobID, workerID, errMsg string, retryAt time.Time) error {
	result, merr := json.Marshal(map[string]string{"error": errMsg})
	if merr != nil {
		return fmt.Errorf("failed to marshal retry error: %w", merr)
	}
	query := `
		UPDATE jobs
		SET status = 'pending',
		    retry_count = retry_count + 1,
		    retry_at = $3,
		    result = $4,
		    worker_id = NULL,
		    started_at = NULL,
		    last_heartbeat_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND worker_id = $2
	`
	if err := s.finalizeJob(ctx, jobID, workerID, domain.JobStatusPending, query, jobID, workerID, retryAt, result); err != nil {
		return err
	}
	s.logger.Warn("Job scheduled for retry",
		slog.String("job_id", jobID),
		slog.Time("retry_at", retryAt),
		slog.String("error", errMsg),
	)
	return nil
}

// FailJob moves a processing job owned by workerID to terminal failed.
func (s *Store) FailJob(ctx context.Context, jobID, workerID, errMsg string) error {
	result, merr := json.Marshal(map[string]string{"error": errMsg})
	if merr != nil {
		return fmt.Errorf("failed to marshal failure error: %w", merr)
	}
	query := `
		UPDATE jobs
		SET status = 'failed',
		    failed_at = NOW(),
		    result = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND worker_id = $2
	`
	if err := s.finalizeJob(ctx, jobID, workerID, domain.JobStatusFailed, query, jobID, workerID, result); err != nil {
		return err
	}
	s.logger.Error("Job failed permanently",
		slog.String("job_id", jobID),
		slog.String("error", errMsg),
	)
	return nil
}

// CancelJob cancels a pending or processing job. A processing job's
// worker keeps running; its completion is discarded when it observes
// the cancelled status.
func (s *Store) CancelJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = 'cancelled',
		    cancelled_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if err == nil {
		s.logger.Info("Job cancelled", slog.String("job_id", jobID))
		return &job, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}

	existing, gerr := s.GetJob(ctx, jobID)
	if gerr != nil {
		return nil, gerr
	}
	return nil, &domain.InvalidTransitionError{
		Entity: "job",
		From:   string(existing.Status),
		To:     string(domain.JobStatusCancelled),
	}
}

// UpdateJobHeartbeat refreshes the liveness timestamp of a processing
// job owned by workerID.
func (s *Store) UpdateJobHeartbeat(ctx context.Context, jobID, workerID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
		 SET last_heartbeat_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'processing' AND worker_id = $2`,
		jobID, workerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		s.logger.Warn("Heartbeat matched no processing job",
			slog.String("job_id", jobID),
			slog.String("worker_id", workerID),
		)
	}
	return nil
}

// ReapStaleJobs returns processing jobs with a heartbeat older than
// lease to pending so another worker can claim them. Retry count is
// incremented; ownership is cleared.
func (s *Store) ReapStaleJobs(ctx context.Context, lease time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
		 SET status = 'pending',
		     retry_count = retry_count + 1,
		     worker_id = NULL,
		     started_at = NULL,
		     last_heartbeat_at = NULL,
		     updated_at = NOW()
		 WHERE status = 'processing'
		   AND last_heartbeat_at < NOW() - ($1 * interval '1 second')`,
		lease.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		s.logger.Warn("Reclaimed stale processing jobs", slog.Int64("count", affected))
	}
	return int(affected), nil
}
