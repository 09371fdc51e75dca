package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/trigger"
)

const campaignColumns = `
	id, client_id, name, description, status, search_url,
	email_outreach, linkedin_outreach,
	daily_sending_limit_email, daily_sending_limit_linkedin,
	created_at, updated_at`

// CreateCampaign persists a new campaign. Campaigns start in their
// given status without firing triggers; activation is an update.
func (s *Store) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = domain.CampaignStatusDraft
	}
	if c.SearchURL == nil {
		c.SearchURL = domain.SearchURLMap{}
	}

	query := `
		INSERT INTO campaigns (
			id, client_id, name, description, status, search_url,
			email_outreach, linkedin_outreach,
			daily_sending_limit_email, daily_sending_limit_linkedin
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8,
			$9, $10
		)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		c.ID,
		c.ClientID,
		c.Name,
		c.Description,
		c.Status,
		c.SearchURL,
		c.EmailOutreach,
		c.LinkedInOutreach,
		c.DailySendingLimitEmail,
		c.DailySendingLimitLinkedIn,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	s.logger.Info("Campaign created",
		slog.String("campaign_id", c.ID),
		slog.String("status", string(c.Status)),
	)
	return nil
}

// GetCampaign retrieves a campaign by ID.
func (s *Store) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	var c domain.Campaign
	err := s.db.GetContext(ctx, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &c, nil
}

// ListCampaigns returns campaigns, optionally filtered by status,
// newest first.
func (s *Store) ListCampaigns(ctx context.Context, status domain.CampaignStatus, limit int) ([]domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	var campaigns []domain.Campaign
	if err := s.db.SelectContext(ctx, &campaigns, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// CampaignUpdate names the mutable campaign fields; nil pointers are
// left unchanged. Status is updated through UpdateCampaignStatus so
// the trigger evaluation always sees the transition.
type CampaignUpdate struct {
	Name                      *string
	Description               *string
	SearchURL                 *domain.SearchURLMap
	EmailOutreach             *bool
	LinkedInOutreach          *bool
	DailySendingLimitEmail    *int
	DailySendingLimitLinkedIn *int
}

// UpdateCampaign applies a partial update to non-status fields.
func (s *Store) UpdateCampaign(ctx context.Context, id string, upd CampaignUpdate) (*domain.Campaign, error) {
	query := `UPDATE campaigns SET updated_at = NOW()`
	args := []interface{}{}
	argIdx := 1

	set := func(column string, value interface{}) {
		query += fmt.Sprintf(", %s = $%d", column, argIdx)
		args = append(args, value)
		argIdx++
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Description != nil {
		set("description", *upd.Description)
	}
	if upd.SearchURL != nil {
		set("search_url", *upd.SearchURL)
	}
	if upd.EmailOutreach != nil {
		set("email_outreach", *upd.EmailOutreach)
	}
	if upd.LinkedInOutreach != nil {
		set("linkedin_outreach", *upd.LinkedInOutreach)
	}
	if upd.DailySendingLimitEmail != nil {
		set("daily_sending_limit_email", *upd.DailySendingLimitEmail)
	}
	if upd.DailySendingLimitLinkedIn != nil {
		set("daily_sending_limit_linkedin", *upd.DailySendingLimitLinkedIn)
	}

	query += fmt.Sprintf(" WHERE id = $%d RETURNING %s", argIdx, campaignColumns)
	args = append(args, id)

	var c domain.Campaign
	err := s.db.GetContext(ctx, &c, query, args...)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	return &c, nil
}

// UpdateCampaignStatus transitions a campaign's status and evaluates
// the trigger rules against the transition in the same transaction.
// Activating a campaign is what enqueues its first discovery job.
func (s *Store) UpdateCampaignStatus(ctx context.Context, id string, status domain.CampaignStatus) (*domain.Campaign, error) {
	var (
		updated *domain.Campaign
		created []trigger.CreatedJob
	)

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var old domain.Campaign
		err := tx.GetContext(ctx, &old,
			`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrCampaignNotFound
			}
			return fmt.Errorf("failed to lock campaign: %w", err)
		}

		var c domain.Campaign
		err = tx.GetContext(ctx, &c,
			`UPDATE campaigns SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+campaignColumns,
			id, status)
		if err != nil {
			return fmt.Errorf("failed to update campaign status: %w", err)
		}

		created = s.evalTriggers(ctx, tx, &trigger.Event{
			Entity:      trigger.EntityCampaign,
			Op:          trigger.OpUpdate,
			CampaignID:  c.ID,
			Campaign:    &c,
			OldCampaign: &old,
		})
		updated = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Campaign status updated",
		slog.String("campaign_id", id),
		slog.String("status", string(status)),
	)
	s.announce(ctx, created)
	return updated, nil
}

// AdvanceSearchCursor bumps the stored page number for one discovery
// platform after a page of results has been fetched, so the next
// discovery job resumes where this one stopped.
func (s *Store) AdvanceSearchCursor(ctx context.Context, campaignID, platform string, pageNumber int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns
		 SET search_url = jsonb_set(
		         search_url,
		         ARRAY[$2, 'page_number'],
		         to_jsonb($3::int)
		     ),
		     updated_at = NOW()
		 WHERE id = $1 AND search_url ? $2`,
		campaignID, platform, pageNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to advance search cursor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("campaign %s has no platform %q: %w", campaignID, platform, domain.ErrCampaignNotFound)
	}
	return nil
}

// DeleteCampaign removes a campaign; leads and messages cascade.
func (s *Store) DeleteCampaign(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCampaignNotFound
	}
	s.logger.Info("Campaign deleted", slog.String("campaign_id", id))
	return nil
}
