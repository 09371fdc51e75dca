package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/leadflowhq/leadflow/internal/domain"
)

// txQuerier adapts a transaction to the trigger engine's read/insert
// surface, including the savepoints that isolate rule failures from
// the surrounding mutation.
type txQuerier struct {
	tx *sqlx.Tx
}

func (q *txQuerier) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	var c domain.Campaign
	err := q.tx.GetContext(ctx, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &c, nil
}

func (q *txQuerier) CountLeadsByStatus(ctx context.Context, campaignID string, status domain.LeadStatus) (int, error) {
	var count int
	err := q.tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM leads WHERE campaign_id = $1 AND status = $2`,
		campaignID, status,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}

func (q *txQuerier) ListLeadsByStatus(ctx context.Context, campaignID string, status domain.LeadStatus, limit int) ([]domain.Lead, error) {
	var leads []domain.Lead
	err := q.tx.SelectContext(ctx, &leads,
		`SELECT `+leadColumns+` FROM leads
		 WHERE campaign_id = $1 AND status = $2
		 ORDER BY created_at ASC, id ASC
		 LIMIT $3`,
		campaignID, status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}

func (q *txQuerier) CountMessagesScheduledToday(ctx context.Context, campaignID string) (int, error) {
	var count int
	err := q.tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages
		 WHERE campaign_id = $1
		   AND status IN ('scheduled', 'retry_pending')
		   AND send_at >= date_trunc('day', NOW())
		   AND send_at < date_trunc('day', NOW()) + interval '1 day'`,
		campaignID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count scheduled messages: %w", err)
	}
	return count, nil
}

func (q *txQuerier) HasNonTerminalJob(ctx context.Context, jobType domain.JobType, entityField, entityID string) (bool, error) {
	var exists bool
	err := q.tx.GetContext(ctx, &exists,
		`SELECT EXISTS (
			SELECT 1 FROM jobs
			WHERE job_type = $1
			  AND data->>$2 = $3
			  AND status IN ('pending', 'processing')
		)`,
		jobType, entityField, entityID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate job: %w", err)
	}
	return exists, nil
}

func (q *txQuerier) LastJobCreatedAt(ctx context.Context, jobType domain.JobType, entityField, entityID string) (*time.Time, error) {
	var createdAt time.Time
	err := q.tx.GetContext(ctx, &createdAt,
		`SELECT created_at FROM jobs
		 WHERE job_type = $1 AND data->>$2 = $3
		 ORDER BY created_at DESC
		 LIMIT 1`,
		jobType, entityField, entityID,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up last job: %w", err)
	}
	return &createdAt, nil
}

func (q *txQuerier) InsertJob(ctx context.Context, job *domain.Job) error {
	return insertJob(ctx, q.tx, job)
}

// Savepoint names come from the trigger engine, never from user input.

func (q *txQuerier) Savepoint(ctx context.Context, name string) error {
	_, err := q.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (q *txQuerier) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := q.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (q *txQuerier) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := q.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}
