package trigger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/internal/domain"
)

// Provenance markers distinguishing the two discovery-producing rules,
// and the triggered_by values carried in research/outreach payloads.
const (
	ProvenanceCampaignActivation = "campaign_activation"
	ProvenanceLowEnrichedLeads   = "low_enriched_leads"

	TriggeredByCapacityCheck = "capacity_check"
	TriggeredByResearched    = "status_change_researched"
)

// newJob assembles a pending job row for insertion. Payload must
// already be validated by the typed builder.
func newJob(jobType domain.JobType, priority domain.JobPriority, provenance string, payload interface{ Validate() error }) (*domain.Job, error) {
	raw, err := domain.EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	job := &domain.Job{
		ID:         uuid.New().String(),
		JobType:    jobType,
		Data:       raw,
		Priority:   priority,
		Status:     domain.JobStatusPending,
		Provenance: provenance,
	}
	return job, nil
}

// discoveryJob builds the shared discovery job shape used by both the
// activation and the low-supply rules, so the scheduler treats them
// identically.
func discoveryJob(campaign *domain.Campaign, provenance string) (*domain.Job, error) {
	if len(campaign.SearchURL) == 0 {
		return nil, fmt.Errorf("campaign %s has no discovery search URLs configured", campaign.ID)
	}
	payload := &domain.DiscoveryPayload{
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
		PlatformURLs: campaign.SearchURL,
		Provenance:   provenance,
	}
	return newJob(domain.JobTypeDiscovery, domain.PriorityNormal, provenance, payload)
}

// campaignActivationRule fires when a campaign's status transitions
// into active and enqueues one discovery job carrying every configured
// platform search URL with its current pagination cursor.
type campaignActivationRule struct {
	cfg Config
}

func (r *campaignActivationRule) Name() string { return "campaign_activation" }

func (r *campaignActivationRule) Matches(ev *Event) bool {
	return ev.Entity == EntityCampaign &&
		ev.Op == OpUpdate &&
		ev.Campaign != nil &&
		ev.Campaign.Status == domain.CampaignStatusActive &&
		(ev.OldCampaign == nil || ev.OldCampaign.Status != domain.CampaignStatusActive)
}

func (r *campaignActivationRule) Evaluate(ctx context.Context, q Querier, ev *Event) ([]CreatedJob, error) {
	guard := NewGuard(q, r.cfg.Now)

	dup, err := guard.DuplicateExists(ctx, domain.JobTypeDiscovery, FieldCampaignID, ev.Campaign.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, nil
	}

	cooling, err := guard.CooldownActive(ctx, domain.JobTypeDiscovery, FieldCampaignID, ev.Campaign.ID, r.cfg.DiscoveryCooldown)
	if err != nil {
		return nil, err
	}
	if cooling {
		return nil, nil
	}

	job, err := discoveryJob(ev.Campaign, ProvenanceCampaignActivation)
	if err != nil {
		return nil, err
	}
	if err := q.InsertJob(ctx, job); err != nil {
		return nil, err
	}
	return []CreatedJob{{ID: job.ID, JobType: job.JobType, Priority: job.Priority}}, nil
}

// lowSupplyRule replenishes an active campaign whose enriched-lead
// count dropped below the threshold. It re-evaluates per statement on
// any lead mutation and produces the same discovery job shape as the
// activation rule, tagged with its own provenance.
type lowSupplyRule struct {
	cfg Config
}

func (r *lowSupplyRule) Name() string { return "low_enriched_leads" }

func (r *lowSupplyRule) Matches(ev *Event) bool {
	return ev.Entity == EntityLead && ev.CampaignID != ""
}

func (r *lowSupplyRule) Evaluate(ctx context.Context, q Querier, ev *Event) ([]CreatedJob, error) {
	campaign, err := q.GetCampaign(ctx, ev.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignStatusActive {
		return nil, nil
	}
	if len(campaign.SearchURL) == 0 {
		return nil, nil
	}

	enriched, err := q.CountLeadsByStatus(ctx, campaign.ID, domain.LeadStatusEnriched)
	if err != nil {
		return nil, err
	}
	if enriched >= r.cfg.LowSupplyThreshold {
		return nil, nil
	}

	guard := NewGuard(q, r.cfg.Now)
	dup, err := guard.DuplicateExists(ctx, domain.JobTypeDiscovery, FieldCampaignID, campaign.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, nil
	}
	cooling, err := guard.CooldownActive(ctx, domain.JobTypeDiscovery, FieldCampaignID, campaign.ID, r.cfg.DiscoveryCooldown)
	if err != nil {
		return nil, err
	}
	if cooling {
		return nil, nil
	}

	job, err := discoveryJob(campaign, ProvenanceLowEnrichedLeads)
	if err != nil {
		return nil, err
	}
	if err := q.InsertJob(ctx, job); err != nil {
		return nil, err
	}
	return []CreatedJob{{ID: job.ID, JobType: job.JobType, Priority: job.Priority}}, nil
}

// placeholderEmailRule fires per inserted lead whose email is unset, a
// generic placeholder domain, or the provider's locked sentinel, and
// enqueues an enrichment job carrying the lead's identity and minimal
// context. Iteration stops at the statement cap.
type placeholderEmailRule struct {
	cfg Config
}

func (r *placeholderEmailRule) Name() string { return "placeholder_email_enrichment" }

func (r *placeholderEmailRule) Matches(ev *Event) bool {
	return ev.Entity == EntityLead && ev.Op == OpInsert && len(ev.Leads) > 0
}

func (r *placeholderEmailRule) Evaluate(ctx context.Context, q Querier, ev *Event) ([]CreatedJob, error) {
	guard := NewGuard(q, r.cfg.Now)

	var created []CreatedJob
	for i := range ev.Leads {
		if len(created) >= r.cfg.EnrichmentStatementCap {
			break
		}
		lead := &ev.Leads[i]
		if !domain.IsPlaceholderEmail(lead.Email) {
			continue
		}

		dup, err := guard.DuplicateExists(ctx, domain.JobTypeEnrichment, FieldLeadID, lead.ID)
		if err != nil {
			return created, err
		}
		if dup {
			continue
		}

		campaign, err := q.GetCampaign(ctx, lead.CampaignID)
		if err != nil {
			return created, err
		}

		payload := &domain.EnrichmentPayload{
			LeadID:        lead.ID,
			CampaignID:    lead.CampaignID,
			LeadName:      lead.FullName(),
			Company:       lead.Company,
			AttemptNumber: 1,
		}
		if campaign.ClientID != nil {
			payload.ClientID = *campaign.ClientID
		}

		job, err := newJob(domain.JobTypeEnrichment, domain.PriorityNormal, "", payload)
		if err != nil {
			return created, err
		}
		if err := q.InsertJob(ctx, job); err != nil {
			return created, err
		}
		created = append(created, CreatedJob{ID: job.ID, JobType: job.JobType, Priority: job.Priority})
	}
	return created, nil
}

// capacityResearchRule fires when an active campaign with daily send
// limits has spare capacity today and enriched leads that are not yet
// researched. Jobs per pass are capped at both the message gap and a
// hard ceiling, and the rule respects a rolling cooldown since the
// last research job for the campaign.
type capacityResearchRule struct {
	cfg Config
}

func (r *capacityResearchRule) Name() string { return "capacity_research" }

func (r *capacityResearchRule) Matches(ev *Event) bool {
	return ev.Entity == EntityLead && ev.CampaignID != ""
}

func (r *capacityResearchRule) Evaluate(ctx context.Context, q Querier, ev *Event) ([]CreatedJob, error) {
	campaign, err := q.GetCampaign(ctx, ev.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignStatusActive {
		return nil, nil
	}

	dailyLimit := campaign.CombinedDailyLimit()
	if dailyLimit <= 0 {
		return nil, nil
	}

	scheduledToday, err := q.CountMessagesScheduledToday(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	messageGap := dailyLimit - scheduledToday
	if messageGap <= 0 {
		return nil, nil
	}

	guard := NewGuard(q, r.cfg.Now)
	cooling, err := guard.CooldownActive(ctx, domain.JobTypeResearch, FieldCampaignID, campaign.ID, r.cfg.ResearchCooldown)
	if err != nil {
		return nil, err
	}
	if cooling {
		return nil, nil
	}

	budget := messageGap
	if budget > r.cfg.ResearchJobCap {
		budget = r.cfg.ResearchJobCap
	}

	candidates, err := q.ListLeadsByStatus(ctx, campaign.ID, domain.LeadStatusEnriched, budget)
	if err != nil {
		return nil, err
	}

	var created []CreatedJob
	for i := range candidates {
		if len(created) >= budget {
			break
		}
		lead := &candidates[i]

		dup, err := guard.DuplicateExists(ctx, domain.JobTypeResearch, FieldLeadID, lead.ID)
		if err != nil {
			return created, err
		}
		if dup {
			continue
		}

		payload := &domain.ResearchPayload{
			LeadID:       lead.ID,
			CampaignID:   campaign.ID,
			CampaignName: campaign.Name,
			LeadName:     lead.FullName(),
			Company:      lead.Company,
			TriggeredBy:  TriggeredByCapacityCheck,
		}
		job, err := newJob(domain.JobTypeResearch, domain.PriorityNormal, "", payload)
		if err != nil {
			return created, err
		}
		if err := q.InsertJob(ctx, job); err != nil {
			return created, err
		}
		created = append(created, CreatedJob{ID: job.ID, JobType: job.JobType, Priority: job.Priority})
	}
	return created, nil
}

// researchedOutreachRule fires when a lead transitions into researched
// (including leads inserted directly in that state). Outreach is
// latency-sensitive, so its jobs carry high priority. Creation is
// skipped when an equivalent job is already pending or processing, or
// when the campaign has no outreach channel enabled.
type researchedOutreachRule struct {
	cfg Config
}

func (r *researchedOutreachRule) Name() string { return "researched_outreach" }

func (r *researchedOutreachRule) Matches(ev *Event) bool {
	if ev.Entity != EntityLead {
		return false
	}
	switch ev.Op {
	case OpUpdate:
		return ev.Lead != nil &&
			ev.Lead.Status == domain.LeadStatusResearched &&
			(ev.OldLead == nil || ev.OldLead.Status != domain.LeadStatusResearched)
	case OpInsert:
		for i := range ev.Leads {
			if ev.Leads[i].Status == domain.LeadStatusResearched {
				return true
			}
		}
	}
	return false
}

func (r *researchedOutreachRule) Evaluate(ctx context.Context, q Querier, ev *Event) ([]CreatedJob, error) {
	campaign, err := q.GetCampaign(ctx, ev.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.OutreachEnabled() {
		return nil, nil
	}

	var targets []*domain.Lead
	if ev.Op == OpUpdate {
		targets = append(targets, ev.Lead)
	} else {
		for i := range ev.Leads {
			if ev.Leads[i].Status == domain.LeadStatusResearched {
				targets = append(targets, &ev.Leads[i])
			}
		}
	}

	guard := NewGuard(q, r.cfg.Now)

	var created []CreatedJob
	for _, lead := range targets {
		if len(created) >= r.cfg.ResearchJobCap {
			break
		}

		dup, err := guard.DuplicateExists(ctx, domain.JobTypeOutreach, FieldLeadID, lead.ID)
		if err != nil {
			return created, err
		}
		if dup {
			continue
		}

		payload := &domain.OutreachPayload{
			LeadID:       lead.ID,
			CampaignID:   campaign.ID,
			CampaignName: campaign.Name,
			LeadName:     lead.FullName(),
			Company:      lead.Company,
			Email:        lead.Email,
			EnabledChannels: domain.ChannelFlags{
				Email:    campaign.EmailOutreach,
				LinkedIn: campaign.LinkedInOutreach,
			},
			DailyLimits: domain.ChannelLimits{
				Email:    campaign.DailySendingLimitEmail,
				LinkedIn: campaign.DailySendingLimitLinkedIn,
			},
			TriggeredBy: TriggeredByResearched,
			TriggeredAt: r.cfg.Now(),
		}
		job, err := newJob(domain.JobTypeOutreach, domain.PriorityHigh, "", payload)
		if err != nil {
			return created, err
		}
		if err := q.InsertJob(ctx, job); err != nil {
			return created, err
		}
		created = append(created, CreatedJob{ID: job.ID, JobType: job.JobType, Priority: job.Priority})
	}
	return created, nil
}
