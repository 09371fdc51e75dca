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

// EnrichmentExecutor resolves a lead's placeholder contact details
// through the enrichment provider. The lead ends up enriched, or
// enrichment_failed when the provider still could not unlock a real
// address.
type EnrichmentExecutor struct {
	store    Storage
	enricher collaborator.Enricher
	logger   *slog.Logger
}

func NewEnrichmentExecutor(store Storage, enricher collaborator.Enricher, logger *slog.Logger) *EnrichmentExecutor {
	return &EnrichmentExecutor{store: store, enricher: enricher, logger: logger}
}

func (e *EnrichmentExecutor) Type() domain.JobType { return domain.JobTypeEnrichment }

func (e *EnrichmentExecutor) Execute(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	decoded, err := domain.DecodePayload(job.JobType, job.Data)
	if err != nil {
		return nil, err
	}
	payload := decoded.(*domain.EnrichmentPayload)

	lead, err := e.store.GetLead(ctx, payload.LeadID)
	if err != nil {
		if errors.Is(err, domain.ErrLeadNotFound) {
			return json.Marshal(map[string]interface{}{"skipped": "lead not found"})
		}
		return nil, domain.NewRetryableError(err)
	}
	if !domain.IsPlaceholderEmail(lead.Email) {
		// Someone else already resolved the address.
		return json.Marshal(map[string]interface{}{"skipped": "lead already enriched"})
	}

	if _, err := e.store.UpdateLeadStatus(ctx, lead.ID, domain.LeadStatusEnriching, store.LeadUpdate{}); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to mark lead enriching: %w", err))
	}

	result, err := e.enricher.EnrichLead(ctx, collaborator.EnrichmentRequest{
		LeadID:   lead.ID,
		ClientID: payload.ClientID,
		LeadName: payload.LeadName,
		Company:  payload.Company,
	})
	if err != nil {
		// Leave the lead recoverable before surfacing the failure.
		if _, uerr := e.store.UpdateLeadStatus(ctx, lead.ID, domain.LeadStatusEnrichmentFailed, store.LeadUpdate{}); uerr != nil {
			e.logger.Warn("Failed to mark lead enrichment_failed",
				slog.String("lead_id", lead.ID),
				slog.Any("error", uerr),
			)
		}
		return nil, fmt.Errorf("enrichment provider failed: %w", err)
	}

	updated, err := e.store.ApplyEnrichment(ctx, lead.ID, result.Email, result.Details)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to apply enrichment: %w", err))
	}

	e.logger.Info("Lead enrichment finished",
		slog.String("lead_id", lead.ID),
		slog.String("status", string(updated.Status)),
	)

	return json.Marshal(map[string]interface{}{
		"lead_id": lead.ID,
		"status":  updated.Status,
	})
}
