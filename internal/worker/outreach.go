package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadflowhq/leadflow/internal/collaborator"
	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/store"
)

// OutreachExecutor composes a message sequence for a researched lead
// and schedules it into business-hours slots, respecting the
// campaign's per-channel daily limits and the minimum gap between a
// campaign's messages. The lead moves to contacted once its sequence
// is stored.
type OutreachExecutor struct {
	store    Storage
	composer collaborator.Composer
	planner  *SlotPlanner
	logger   *slog.Logger
	now      func() time.Time
}

func NewOutreachExecutor(store Storage, composer collaborator.Composer, planner *SlotPlanner, logger *slog.Logger) *OutreachExecutor {
	return &OutreachExecutor{
		store:    store,
		composer: composer,
		planner:  planner,
		logger:   logger,
		now:      time.Now,
	}
}

func (e *OutreachExecutor) Type() domain.JobType { return domain.JobTypeOutreach }

func (e *OutreachExecutor) Execute(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	decoded, err := domain.DecodePayload(job.JobType, job.Data)
	if err != nil {
		return nil, err
	}
	payload := decoded.(*domain.OutreachPayload)

	lead, err := e.store.GetLead(ctx, payload.LeadID)
	if err != nil {
		if errors.Is(err, domain.ErrLeadNotFound) {
			return json.Marshal(map[string]interface{}{"skipped": "lead not found"})
		}
		return nil, domain.NewRetryableError(err)
	}
	if lead.Status == domain.LeadStatusContacted || lead.Status == domain.LeadStatusUnsubscribed {
		return json.Marshal(map[string]interface{}{"skipped": fmt.Sprintf("lead is %s", lead.Status)})
	}

	var channels []string
	if payload.EnabledChannels.Email {
		channels = append(channels, string(domain.ChannelEmail))
	}
	if payload.EnabledChannels.LinkedIn {
		channels = append(channels, string(domain.ChannelLinkedIn))
	}

	drafts, err := e.composer.ComposeSequence(ctx, collaborator.ComposeRequest{
		CampaignName: payload.CampaignName,
		LeadName:     payload.LeadName,
		Company:      payload.Company,
		Channels:     channels,
		Context:      lead.FullContext,
	})
	if err != nil {
		return nil, fmt.Errorf("compose provider failed: %w", err)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("compose provider returned an empty sequence")
	}

	now := e.now()
	msgs, skipped, err := e.scheduleDrafts(ctx, payload, drafts, now)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		// All channels out of capacity for the whole lookahead; try
		// again once today's backlog drains.
		return nil, domain.NewRetryableError(fmt.Errorf("no send slots available for lead %s", payload.LeadID))
	}

	if err := e.store.CreateMessages(ctx, msgs); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to store message sequence: %w", err))
	}
	if _, err := e.store.UpdateLeadStatus(ctx, lead.ID, domain.LeadStatusContacted, store.LeadUpdate{}); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to mark lead contacted: %w", err))
	}

	e.logger.Info("Outreach sequence scheduled",
		slog.String("lead_id", lead.ID),
		slog.String("campaign_id", payload.CampaignID),
		slog.Int("scheduled", len(msgs)),
		slog.Int("skipped", skipped),
	)

	return json.Marshal(map[string]interface{}{
		"lead_id":            lead.ID,
		"messages_scheduled": len(msgs),
		"messages_skipped":   skipped,
	})
}

// scheduleDrafts places each draft into a slot on its channel.
// Sequence position doubles as a rough day delay, spreading a lead's
// sequence across days. Drafts that find no slot are skipped, not
// failed.
func (e *OutreachExecutor) scheduleDrafts(ctx context.Context, payload *domain.OutreachPayload, drafts []collaborator.DraftMessage, now time.Time) ([]*domain.Message, int, error) {
	limits := map[domain.Channel]int{
		domain.ChannelEmail:    payload.DailyLimits.Email,
		domain.ChannelLinkedIn: payload.DailyLimits.LinkedIn,
	}

	schedules := make(map[domain.Channel]*Schedule)
	var msgs []*domain.Message
	skipped := 0

	for _, draft := range drafts {
		channel := domain.Channel(draft.Channel)
		if limits[channel] <= 0 {
			skipped++
			continue
		}

		sched, ok := schedules[channel]
		if !ok {
			taken, err := e.store.UpcomingSendTimes(ctx, payload.CampaignID, channel, now)
			if err != nil {
				return nil, 0, domain.NewRetryableError(fmt.Errorf("failed to load schedule state: %w", err))
			}
			sched = e.planner.NewSchedule(taken)
			schedules[channel] = sched
		}

		seq := draft.SequenceNumber
		if seq <= 0 {
			seq = 1
		}
		sendAt, ok := sched.Next(now, limits[channel], seq-1)
		if !ok {
			e.logger.Warn("No slot for draft message",
				slog.String("campaign_id", payload.CampaignID),
				slog.String("channel", string(channel)),
				slog.Int("sequence_number", seq),
			)
			skipped++
			continue
		}

		msgs = append(msgs, &domain.Message{
			CampaignID:     payload.CampaignID,
			LeadID:         payload.LeadID,
			Channel:        channel,
			Direction:      "outbound",
			Status:         domain.MessageStatusScheduled,
			Subject:        draft.Subject,
			Content:        draft.Content,
			SendAt:         sendAt,
			SequenceNumber: seq,
		})
	}

	return msgs, skipped, nil
}
