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

// maxMessageSendAttempts bounds per-message delivery retries before
// the message is failed for good.
const maxMessageSendAttempts = 3

// EmailSendExecutor delivers scheduled email messages. A payload with
// a message ID sends that one message; otherwise it drains the
// campaign's due emails. Each message walks the message state machine:
// sent on success, retry_pending on a transient provider error, failed
// once its own retry budget is spent.
type EmailSendExecutor struct {
	store  Storage
	mailer collaborator.Mailer
	logger *slog.Logger
}

func NewEmailSendExecutor(store Storage, mailer collaborator.Mailer, logger *slog.Logger) *EmailSendExecutor {
	return &EmailSendExecutor{store: store, mailer: mailer, logger: logger}
}

func (e *EmailSendExecutor) Type() domain.JobType { return domain.JobTypeEmailSend }

func (e *EmailSendExecutor) Execute(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	decoded, err := domain.DecodePayload(job.JobType, job.Data)
	if err != nil {
		return nil, err
	}
	payload := decoded.(*domain.EmailSendPayload)

	var msgs []domain.Message
	if payload.MessageID != "" {
		m, err := e.store.GetMessage(ctx, payload.MessageID)
		if err != nil {
			if errors.Is(err, domain.ErrMessageNotFound) {
				return json.Marshal(map[string]interface{}{"skipped": "message not found"})
			}
			return nil, domain.NewRetryableError(err)
		}
		msgs = []domain.Message{*m}
	} else {
		msgs, err = e.store.DueMessages(ctx, payload.CampaignID, domain.ChannelEmail, 0)
		if err != nil {
			return nil, domain.NewRetryableError(fmt.Errorf("failed to list due messages: %w", err))
		}
	}

	sent, retried, failed := 0, 0, 0
	for i := range msgs {
		switch e.sendOne(ctx, &msgs[i]) {
		case sendOutcomeSent:
			sent++
		case sendOutcomeRetry:
			retried++
		case sendOutcomeFailed:
			failed++
		}
	}

	e.logger.Info("Email send pass finished",
		slog.String("campaign_id", payload.CampaignID),
		slog.Int("sent", sent),
		slog.Int("retry_pending", retried),
		slog.Int("failed", failed),
	)

	return json.Marshal(map[string]interface{}{
		"sent":          sent,
		"retry_pending": retried,
		"failed":        failed,
	})
}

type sendOutcome int

const (
	sendOutcomeSent sendOutcome = iota
	sendOutcomeRetry
	sendOutcomeFailed
	sendOutcomeSkipped
)

func (e *EmailSendExecutor) sendOne(ctx context.Context, m *domain.Message) sendOutcome {
	if !domain.CanTransitionMessage(m.Status, domain.MessageStatusSent) {
		e.logger.Warn("Message not sendable",
			slog.String("message_id", m.ID),
			slog.String("status", string(m.Status)),
		)
		return sendOutcomeSkipped
	}

	lead, err := e.store.GetLead(ctx, m.LeadID)
	if err != nil {
		e.logger.Warn("Lead missing for message",
			slog.String("message_id", m.ID),
			slog.Any("error", err),
		)
		return e.markFailed(ctx, m, "lead not found")
	}
	if lead.Status == domain.LeadStatusUnsubscribed {
		return e.markFailed(ctx, m, "lead unsubscribed")
	}

	result, err := e.mailer.SendEmail(ctx, collaborator.SendRequest{
		To:      lead.Email,
		Subject: m.Subject,
		Content: m.Content,
	})
	if err != nil {
		errMsg := err.Error()
		if domain.IsRetryable(err) && m.RetryCount < maxMessageSendAttempts {
			if _, uerr := e.store.UpdateMessageStatus(ctx, m.ID, domain.MessageStatusRetryPending, store.MessageStatusUpdate{
				ErrorMessage:   &errMsg,
				IncrementRetry: true,
			}); uerr != nil {
				e.logger.Error("Failed to mark message retry_pending",
					slog.String("message_id", m.ID),
					slog.Any("error", uerr),
				)
			}
			return sendOutcomeRetry
		}
		return e.markFailed(ctx, m, errMsg)
	}

	if _, err := e.store.UpdateMessageStatus(ctx, m.ID, domain.MessageStatusSent, store.MessageStatusUpdate{
		ProviderMessageID: &result.ProviderMessageID,
	}); err != nil {
		e.logger.Error("Message sent but status update failed",
			slog.String("message_id", m.ID),
			slog.Any("error", err),
		)
	}
	return sendOutcomeSent
}

func (e *EmailSendExecutor) markFailed(ctx context.Context, m *domain.Message, errMsg string) sendOutcome {
	if _, err := e.store.UpdateMessageStatus(ctx, m.ID, domain.MessageStatusFailed, store.MessageStatusUpdate{
		ErrorMessage: &errMsg,
	}); err != nil {
		e.logger.Error("Failed to mark message failed",
			slog.String("message_id", m.ID),
			slog.Any("error", err),
		)
	}
	return sendOutcomeFailed
}
