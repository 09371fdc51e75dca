package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leadflowhq/leadflow/internal/collaborator"
	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/store"
)

// ResearchExecutor gathers personalization context for an enriched
// lead. Completion moves the lead to researched, which is what the
// trigger rules watch to create the outreach job.
type ResearchExecutor struct {
	store      Storage
	researcher collaborator.Researcher
	logger     *slog.Logger
}

func NewResearchExecutor(store Storage, researcher collaborator.Researcher, logger *slog.Logger) *ResearchExecutor {
	return &ResearchExecutor{store: store, researcher: researcher, logger: logger}
}

func (e *ResearchExecutor) Type() domain.JobType { return domain.JobTypeResearch }

func (e *ResearchExecutor) Execute(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	decoded, err := domain.DecodePayload(job.JobType, job.Data)
	if err != nil {
		return nil, err
	}
	payload := decoded.(*domain.ResearchPayload)

	lead, err := e.store.GetLead(ctx, payload.LeadID)
	if err != nil {
		if errors.Is(err, domain.ErrLeadNotFound) {
			return json.Marshal(map[string]interface{}{"skipped": "lead not found"})
		}
		return nil, domain.NewRetryableError(err)
	}
	if lead.Status == domain.LeadStatusResearched || lead.Status == domain.LeadStatusContacted {
		return json.Marshal(map[string]interface{}{"skipped": "lead already researched"})
	}

	if _, err := e.store.UpdateLeadStatus(ctx, lead.ID, domain.LeadStatusResearching, store.LeadUpdate{}); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to mark lead researching: %w", err))
	}

	result, err := e.researcher.ResearchLead(ctx, collaborator.ResearchRequest{
		LeadID:       lead.ID,
		CampaignName: payload.CampaignName,
		LeadName:     payload.LeadName,
		Company:      payload.Company,
	})
	if err != nil {
		// Drop the lead back so a later pass can pick it up again.
		if _, uerr := e.store.UpdateLeadStatus(ctx, lead.ID, domain.LeadStatusEnriched, store.LeadUpdate{}); uerr != nil {
			e.logger.Warn("Failed to return lead to enriched",
				slog.String("lead_id", lead.ID),
				slog.Any("error", uerr),
			)
		}
		return nil, fmt.Errorf("research provider failed: %w", err)
	}

	if _, err := e.store.ApplyResearch(ctx, lead.ID, result.Context); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to apply research: %w", err))
	}

	e.logger.Info("Lead research finished",
		slog.String("lead_id", lead.ID),
		slog.String("triggered_by", payload.TriggeredBy),
	)

	return json.Marshal(map[string]interface{}{
		"lead_id": lead.ID,
		"summary": result.Summary,
	})
}
