package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/leadflowhq/leadflow/internal/domain"
)

const messageColumns = `
	id, campaign_id, lead_id, channel, direction, status,
	subject, content, send_at, sequence_number,
	provider_message_id, error_message, retry_count, metadata,
	created_at, updated_at`

// CreateMessages inserts a planned message sequence in one
// transaction, so a lead either gets its whole sequence or none of it.
func (s *Store) CreateMessages(ctx context.Context, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, m := range msgs {
			if m.ID == "" {
				m.ID = uuid.New().String()
			}
			if m.Direction == "" {
				m.Direction = "outbound"
			}
			if m.Status == "" {
				m.Status = domain.MessageStatusScheduled
			}
			if m.SequenceNumber <= 0 {
				m.SequenceNumber = 1
			}

			_, err := tx.ExecContext(ctx,
				`INSERT INTO messages (
					id, campaign_id, lead_id, channel, direction, status,
					subject, content, send_at, sequence_number, metadata
				) VALUES (
					$1, $2, $3, $4, $5, $6,
					$7, $8, $9, $10, $11
				)`,
				m.ID,
				m.CampaignID,
				m.LeadID,
				m.Channel,
				m.Direction,
				m.Status,
				m.Subject,
				m.Content,
				m.SendAt,
				m.SequenceNumber,
				[]byte(m.Metadata),
			)
			if err != nil {
				return fmt.Errorf("failed to insert message: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Messages created",
		slog.String("campaign_id", msgs[0].CampaignID),
		slog.String("lead_id", msgs[0].LeadID),
		slog.Int("count", len(msgs)),
	)
	return nil
}

// GetMessage retrieves a message by ID.
func (s *Store) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	err := s.db.GetContext(ctx, &m, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &m, nil
}

// ListMessages returns a campaign's messages ordered by send time.
func (s *Store) ListMessages(ctx context.Context, campaignID string, status domain.MessageStatus, limit int) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE campaign_id = $1`
	args := []interface{}{campaignID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY send_at ASC, id ASC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	var msgs []domain.Message
	if err := s.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// MessageStatusUpdate carries the side fields written alongside a
// status transition.
type MessageStatusUpdate struct {
	ProviderMessageID *string
	ErrorMessage      *string
	IncrementRetry    bool
}

// UpdateMessageStatus transitions a message's status. The current
// status is locked and validated against the transition table before
// writing; an illegal transition fails the call and the row is
// untouched.
func (s *Store) UpdateMessageStatus(ctx context.Context, id string, to domain.MessageStatus, upd MessageStatusUpdate) (*domain.Message, error) {
	var updated *domain.Message

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current domain.MessageStatus
		err := tx.GetContext(ctx, &current,
			`SELECT status FROM messages WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrMessageNotFound
			}
			return fmt.Errorf("failed to lock message: %w", err)
		}

		if err := domain.ValidateMessageTransition(current, to); err != nil {
			return err
		}

		query := `UPDATE messages SET status = $1, updated_at = NOW()`
		args := []interface{}{to}
		argIdx := 2

		if upd.ProviderMessageID != nil {
			query += fmt.Sprintf(", provider_message_id = $%d", argIdx)
			args = append(args, *upd.ProviderMessageID)
			argIdx++
		}
		if upd.ErrorMessage != nil {
			query += fmt.Sprintf(", error_message = $%d", argIdx)
			args = append(args, *upd.ErrorMessage)
			argIdx++
		}
		if upd.IncrementRetry {
			query += ", retry_count = retry_count + 1"
		}

		query += fmt.Sprintf(" WHERE id = $%d RETURNING %s", argIdx, messageColumns)
		args = append(args, id)

		var m domain.Message
		if err := tx.GetContext(ctx, &m, query, args...); err != nil {
			return fmt.Errorf("failed to update message status: %w", err)
		}
		updated = &m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Message status updated",
		slog.String("message_id", id),
		slog.String("status", string(to)),
	)
	return updated, nil
}

// DueMessages returns a campaign's sendable messages whose send time
// has arrived, oldest first.
func (s *Store) DueMessages(ctx context.Context, campaignID string, channel domain.Channel, limit int) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE campaign_id = $1
		  AND channel = $2
		  AND status IN ('scheduled', 'retry_pending')
		  AND send_at <= NOW()
		ORDER BY send_at ASC, id ASC`
	args := []interface{}{campaignID, channel}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	var msgs []domain.Message
	if err := s.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list due messages: %w", err)
	}
	return msgs, nil
}

// UpcomingSendTimes returns the send times of a campaign's pending and
// already-sent messages on the channel from a point in time onward.
// The slot planner uses these to respect daily limits and minimum
// spacing when placing new messages.
func (s *Store) UpcomingSendTimes(ctx context.Context, campaignID string, channel domain.Channel, from time.Time) ([]time.Time, error) {
	var times []time.Time
	err := s.db.SelectContext(ctx, &times,
		`SELECT send_at FROM messages
		 WHERE campaign_id = $1
		   AND channel = $2
		   AND status IN ('scheduled', 'retry_pending', 'sent', 'delivered')
		   AND send_at >= $3
		 ORDER BY send_at ASC`,
		campaignID, channel, from,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming send times: %w", err)
	}
	return times, nil
}

// CountMessagesScheduledToday counts messages awaiting send whose send
// time falls on the current day, across channels.
func (s *Store) CountMessagesScheduledToday(ctx context.Context, campaignID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
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
