package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leadflowhq/leadflow/internal/collaborator"
	"github.com/leadflowhq/leadflow/internal/domain"
)

// DiscoveryExecutor fetches one page of prospects per configured
// platform, stores them as new leads and advances each platform's
// pagination cursor. Lead insertion runs the trigger rules, so
// placeholder-email leads get their enrichment jobs in the same
// transaction.
type DiscoveryExecutor struct {
	store    Storage
	searcher collaborator.ProspectSearcher
	logger   *slog.Logger
}

func NewDiscoveryExecutor(store Storage, searcher collaborator.ProspectSearcher, logger *slog.Logger) *DiscoveryExecutor {
	return &DiscoveryExecutor{store: store, searcher: searcher, logger: logger}
}

func (e *DiscoveryExecutor) Type() domain.JobType { return domain.JobTypeDiscovery }

func (e *DiscoveryExecutor) Execute(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	decoded, err := domain.DecodePayload(job.JobType, job.Data)
	if err != nil {
		return nil, err
	}
	payload := decoded.(*domain.DiscoveryPayload)

	// Campaign may have been deleted or paused since the job was
	// created; a missing campaign completes the job as a no-op.
	campaign, err := e.store.GetCampaign(ctx, payload.CampaignID)
	if err != nil {
		if errors.Is(err, domain.ErrCampaignNotFound) {
			return json.Marshal(map[string]interface{}{"skipped": "campaign not found"})
		}
		return nil, domain.NewRetryableError(err)
	}
	if campaign.Status != domain.CampaignStatusActive {
		return json.Marshal(map[string]interface{}{
			"skipped": fmt.Sprintf("campaign is %s", campaign.Status),
		})
	}

	perPlatform := make(map[string]int, len(payload.PlatformURLs))
	total := 0

	for platform, ps := range payload.PlatformURLs {
		page, err := e.searcher.SearchLeads(ctx, ps.SearchURL, ps.PageNumber)
		if err != nil {
			return nil, fmt.Errorf("search on %s page %d failed: %w", platform, ps.PageNumber, err)
		}

		// A retried job replays every platform, including ones whose
		// page was already stored before an earlier attempt failed.
		// Skipping leads the campaign already has keeps the replay
		// from inserting duplicates.
		leads := make([]*domain.Lead, 0, len(page.Leads))
		for _, d := range page.Leads {
			lead := &domain.Lead{
				FirstName:   d.FirstName,
				LastName:    d.LastName,
				Email:       d.Email,
				Company:     d.Company,
				Title:       d.Title,
				Status:      domain.LeadStatusNew,
				FullContext: d.Raw,
			}
			exists, err := e.store.LeadExists(ctx, campaign.ID, lead)
			if err != nil {
				return nil, domain.NewRetryableError(fmt.Errorf("failed to check %s lead: %w", platform, err))
			}
			if exists {
				continue
			}
			leads = append(leads, lead)
		}
		if len(leads) > 0 {
			if err := e.store.CreateLeads(ctx, campaign.ID, leads); err != nil {
				return nil, domain.NewRetryableError(fmt.Errorf("failed to store %s leads: %w", platform, err))
			}
		}

		if page.HasMore {
			if err := e.store.AdvanceSearchCursor(ctx, campaign.ID, platform, ps.PageNumber+1); err != nil {
				e.logger.Warn("Failed to advance search cursor",
					slog.String("campaign_id", campaign.ID),
					slog.String("platform", platform),
					slog.Any("error", err),
				)
			}
		}

		perPlatform[platform] = len(leads)
		total += len(leads)
	}

	e.logger.Info("Discovery finished",
		slog.String("campaign_id", campaign.ID),
		slog.Int("leads", total),
		slog.String("provenance", payload.Provenance),
	)

	return json.Marshal(map[string]interface{}{
		"leads_created": total,
		"per_platform":  perPlatform,
	})
}
