package domain

import (
	"encoding/json"
	"time"
)

// MessageStatus values for the outbound-message state machine.
type MessageStatus string

const (
	MessageStatusDraft        MessageStatus = "draft"
	MessageStatusScheduled    MessageStatus = "scheduled"
	MessageStatusSent         MessageStatus = "sent"
	MessageStatusDelivered    MessageStatus = "delivered"
	MessageStatusFailed       MessageStatus = "failed"
	MessageStatusRetryPending MessageStatus = "retry_pending"
	MessageStatusBounced      MessageStatus = "bounced"
	MessageStatusUnsubscribed MessageStatus = "unsubscribed"
)

// MessageStatusTerminal reports whether s accepts no further transitions.
func MessageStatusTerminal(s MessageStatus) bool {
	return s == MessageStatusBounced || s == MessageStatusUnsubscribed
}

// Channel is an outreach delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
)

// Message is an outbound (or inbound) communication artifact tied to a
// lead and campaign.
type Message struct {
	ID                string          `db:"id" json:"id"`
	CampaignID        string          `db:"campaign_id" json:"campaign_id"`
	LeadID            string          `db:"lead_id" json:"lead_id"`
	Channel           Channel         `db:"channel" json:"channel"`
	Direction         string          `db:"direction" json:"direction"`
	Status            MessageStatus   `db:"status" json:"status"`
	Subject           string          `db:"subject" json:"subject,omitempty"`
	Content           string          `db:"content" json:"content"`
	SendAt            time.Time       `db:"send_at" json:"send_at"`
	SequenceNumber    int             `db:"sequence_number" json:"sequence_number"`
	ProviderMessageID *string         `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ErrorMessage      *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount        int             `db:"retry_count" json:"retry_count"`
	Metadata          json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}
