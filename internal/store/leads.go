package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/trigger"
)

const leadColumns = `
	id, campaign_id, first_name, last_name, email, company, title,
	status, full_context, created_at, updated_at`

// CreateLeads bulk-inserts discovered leads for one campaign and runs
// the trigger rules over the inserted batch. Leads with placeholder
// emails get enrichment jobs created in the same transaction.
func (s *Store) CreateLeads(ctx context.Context, campaignID string, leads []*domain.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	var created []trigger.CreatedJob
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		inserted := make([]domain.Lead, 0, len(leads))
		for _, lead := range leads {
			if lead.ID == "" {
				lead.ID = uuid.New().String()
			}
			lead.CampaignID = campaignID
			if lead.Status == "" {
				lead.Status = domain.LeadStatusNew
			}

			var row domain.Lead
			err := tx.GetContext(ctx, &row,
				`INSERT INTO leads (
					id, campaign_id, first_name, last_name, email,
					company, title, status, full_context
				) VALUES (
					$1, $2, $3, $4, $5,
					$6, $7, $8, $9
				) RETURNING `+leadColumns,
				lead.ID,
				lead.CampaignID,
				lead.FirstName,
				lead.LastName,
				lead.Email,
				lead.Company,
				lead.Title,
				lead.Status,
				[]byte(lead.FullContext),
			)
			if err != nil {
				return fmt.Errorf("failed to insert lead: %w", err)
			}
			inserted = append(inserted, row)
		}

		created = s.evalTriggers(ctx, tx, &trigger.Event{
			Entity:     trigger.EntityLead,
			Op:         trigger.OpInsert,
			CampaignID: campaignID,
			Leads:      inserted,
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Leads created",
		slog.String("campaign_id", campaignID),
		slog.Int("count", len(leads)),
	)
	s.announce(ctx, created)
	return nil
}

// CreateLead inserts a single lead.
func (s *Store) CreateLead(ctx context.Context, lead *domain.Lead) error {
	return s.CreateLeads(ctx, lead.CampaignID, []*domain.Lead{lead})
}

// LeadExists reports whether a campaign already holds the given lead.
// Real emails match on (campaign_id, email); placeholder emails are
// shared across leads, so those match on name and company instead.
// Discovery uses this to keep retried jobs from re-inserting pages it
// already stored.
func (s *Store) LeadExists(ctx context.Context, campaignID string, lead *domain.Lead) (bool, error) {
	var (
		query string
		args  []interface{}
	)
	if domain.IsPlaceholderEmail(lead.Email) {
		query = `SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE campaign_id = $1 AND first_name = $2 AND last_name = $3 AND company = $4
		)`
		args = []interface{}{campaignID, lead.FirstName, lead.LastName, lead.Company}
	} else {
		query = `SELECT EXISTS (
			SELECT 1 FROM leads WHERE campaign_id = $1 AND email = $2
		)`
		args = []interface{}{campaignID, lead.Email}
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("failed to check lead existence: %w", err)
	}
	return exists, nil
}

// GetLead retrieves a lead by ID.
func (s *Store) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	err := s.db.GetContext(ctx, &lead, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// ListLeads returns a campaign's leads, optionally filtered by status,
// oldest first.
func (s *Store) ListLeads(ctx context.Context, campaignID string, status domain.LeadStatus, limit int) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE campaign_id = $1`
	args := []interface{}{campaignID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	var leads []domain.Lead
	if err := s.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}

// LeadUpdate names the mutable lead fields applied alongside a status
// change. Nil pointers are left unchanged.
type LeadUpdate struct {
	Email       *string
	FirstName   *string
	LastName    *string
	Company     *string
	Title       *string
	FullContext json.RawMessage
}

// UpdateLeadStatus transitions a lead's status, optionally applying
// field updates, and evaluates the trigger rules against the
// transition. Enrichment and research completions flow through here.
func (s *Store) UpdateLeadStatus(ctx context.Context, id string, status domain.LeadStatus, upd LeadUpdate) (*domain.Lead, error) {
	var (
		updated *domain.Lead
		created []trigger.CreatedJob
	)

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var old domain.Lead
		err := tx.GetContext(ctx, &old,
			`SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrLeadNotFound
			}
			return fmt.Errorf("failed to lock lead: %w", err)
		}

		query := `UPDATE leads SET status = $1, updated_at = NOW()`
		args := []interface{}{status}
		argIdx := 2

		set := func(column string, value interface{}) {
			query += fmt.Sprintf(", %s = $%d", column, argIdx)
			args = append(args, value)
			argIdx++
		}
		if upd.Email != nil {
			set("email", *upd.Email)
		}
		if upd.FirstName != nil {
			set("first_name", *upd.FirstName)
		}
		if upd.LastName != nil {
			set("last_name", *upd.LastName)
		}
		if upd.Company != nil {
			set("company", *upd.Company)
		}
		if upd.Title != nil {
			set("title", *upd.Title)
		}
		if upd.FullContext != nil {
			set("full_context", []byte(upd.FullContext))
		}

		query += fmt.Sprintf(" WHERE id = $%d RETURNING %s", argIdx, leadColumns)
		args = append(args, id)

		var lead domain.Lead
		if err := tx.GetContext(ctx, &lead, query, args...); err != nil {
			return fmt.Errorf("failed to update lead: %w", err)
		}

		created = s.evalTriggers(ctx, tx, &trigger.Event{
			Entity:     trigger.EntityLead,
			Op:         trigger.OpUpdate,
			CampaignID: lead.CampaignID,
			Lead:       &lead,
			OldLead:    &old,
		})
		updated = &lead
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lead status updated",
		slog.String("lead_id", id),
		slog.String("status", string(status)),
	)
	s.announce(ctx, created)
	return updated, nil
}

// ApplyEnrichment records a resolved contact for a lead and moves it
// to enriched (or enrichment_failed when the provider still returned a
// placeholder address).
func (s *Store) ApplyEnrichment(ctx context.Context, id, email string, fullContext json.RawMessage) (*domain.Lead, error) {
	status := domain.LeadStatusEnriched
	if domain.IsPlaceholderEmail(email) {
		status = domain.LeadStatusEnrichmentFailed
	}
	return s.UpdateLeadStatus(ctx, id, status, LeadUpdate{
		Email:       &email,
		FullContext: fullContext,
	})
}

// ApplyResearch stores gathered context on a lead and moves it to
// researched, which is what makes it eligible for outreach.
func (s *Store) ApplyResearch(ctx context.Context, id string, fullContext json.RawMessage) (*domain.Lead, error) {
	return s.UpdateLeadStatus(ctx, id, domain.LeadStatusResearched, LeadUpdate{
		FullContext: fullContext,
	})
}

// DeleteLead removes a lead and re-evaluates supply for its campaign.
func (s *Store) DeleteLead(ctx context.Context, id string) error {
	var created []trigger.CreatedJob
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var lead domain.Lead
		err := tx.GetContext(ctx, &lead,
			`DELETE FROM leads WHERE id = $1 RETURNING `+leadColumns, id)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrLeadNotFound
			}
			return fmt.Errorf("failed to delete lead: %w", err)
		}

		created = s.evalTriggers(ctx, tx, &trigger.Event{
			Entity:     trigger.EntityLead,
			Op:         trigger.OpDelete,
			CampaignID: lead.CampaignID,
			OldLead:    &lead,
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Lead deleted", slog.String("lead_id", id))
	s.announce(ctx, created)
	return nil
}
