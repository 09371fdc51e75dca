package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job payloads form a closed set of variants keyed by job type.
// Construction goes through the typed structs so a malformed payload is
// caught when the job is built, not when an executor unmarshals it.

// ChannelFlags records which outreach channels a campaign has enabled.
type ChannelFlags struct {
	Email    bool `json:"email"`
	LinkedIn bool `json:"linkedin"`
}

// ChannelLimits carries per-channel daily sending limits.
type ChannelLimits struct {
	Email    int `json:"email"`
	LinkedIn int `json:"linkedin"`
}

// DiscoveryPayload drives a discovery job: every configured platform
// search URL with its current pagination cursor.
type DiscoveryPayload struct {
	CampaignID   string                    `json:"campaign_id"`
	CampaignName string                    `json:"campaign_name"`
	PlatformURLs map[string]PlatformSearch `json:"platform_urls"`
	Provenance   string                    `json:"provenance,omitempty"`
}

func (p *DiscoveryPayload) Validate() error {
	if p.CampaignID == "" {
		return fmt.Errorf("%w: discovery payload missing campaign_id", ErrInvalidPayload)
	}
	if len(p.PlatformURLs) == 0 {
		return fmt.Errorf("%w: discovery payload has no platform search URLs", ErrInvalidPayload)
	}
	for platform, ps := range p.PlatformURLs {
		if ps.SearchURL == "" {
			return fmt.Errorf("%w: empty search_url for platform %q", ErrInvalidPayload, platform)
		}
		if ps.PageNumber < 1 {
			return fmt.Errorf("%w: page_number %d for platform %q", ErrInvalidPayload, ps.PageNumber, platform)
		}
	}
	return nil
}

// EnrichmentPayload identifies a lead whose placeholder contact details
// need resolving.
type EnrichmentPayload struct {
	LeadID        string `json:"lead_id"`
	CampaignID    string `json:"campaign_id"`
	ClientID      string `json:"client_id,omitempty"`
	LeadName      string `json:"lead_name"`
	Company       string `json:"company"`
	AttemptNumber int    `json:"attempt_number"`
}

func (p *EnrichmentPayload) Validate() error {
	if p.LeadID == "" {
		return fmt.Errorf("%w: enrichment payload missing lead_id", ErrInvalidPayload)
	}
	if p.CampaignID == "" {
		return fmt.Errorf("%w: enrichment payload missing campaign_id", ErrInvalidPayload)
	}
	if p.AttemptNumber < 1 {
		return fmt.Errorf("%w: enrichment attempt_number %d", ErrInvalidPayload, p.AttemptNumber)
	}
	return nil
}

// ResearchPayload identifies an enriched lead to gather context for.
type ResearchPayload struct {
	LeadID       string `json:"lead_id"`
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	LeadName     string `json:"lead_name"`
	Company      string `json:"company"`
	TriggeredBy  string `json:"triggered_by"`
}

func (p *ResearchPayload) Validate() error {
	if p.LeadID == "" {
		return fmt.Errorf("%w: research payload missing lead_id", ErrInvalidPayload)
	}
	if p.CampaignID == "" {
		return fmt.Errorf("%w: research payload missing campaign_id", ErrInvalidPayload)
	}
	return nil
}

// OutreachPayload drives composition and scheduling of a researched
// lead's message sequence.
type OutreachPayload struct {
	LeadID          string        `json:"lead_id"`
	CampaignID      string        `json:"campaign_id"`
	CampaignName    string        `json:"campaign_name"`
	LeadName        string        `json:"lead_name"`
	Company         string        `json:"company"`
	Email           string        `json:"email"`
	EnabledChannels ChannelFlags  `json:"enabled_channels"`
	DailyLimits     ChannelLimits `json:"daily_limits"`
	TriggeredBy     string        `json:"triggered_by"`
	TriggeredAt     time.Time     `json:"triggered_at"`
}

func (p *OutreachPayload) Validate() error {
	if p.LeadID == "" {
		return fmt.Errorf("%w: outreach payload missing lead_id", ErrInvalidPayload)
	}
	if p.CampaignID == "" {
		return fmt.Errorf("%w: outreach payload missing campaign_id", ErrInvalidPayload)
	}
	if !p.EnabledChannels.Email && !p.EnabledChannels.LinkedIn {
		return fmt.Errorf("%w: outreach payload has no enabled channel", ErrInvalidPayload)
	}
	return nil
}

// EmailSendPayload scopes an email-send job. With MessageID set it
// sends one specific message; otherwise it drains the campaign's due
// scheduled messages.
type EmailSendPayload struct {
	CampaignID string `json:"campaign_id"`
	MessageID  string `json:"message_id,omitempty"`
}

func (p *EmailSendPayload) Validate() error {
	if p.CampaignID == "" && p.MessageID == "" {
		return fmt.Errorf("%w: email_send payload needs campaign_id or message_id", ErrInvalidPayload)
	}
	return nil
}

type validatable interface {
	Validate() error
}

// EncodePayload validates a typed payload and marshals it for storage.
func EncodePayload(p validatable) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return raw, nil
}

// DecodePayload unmarshals and validates raw payload data for the
// given job type, returning the typed variant.
func DecodePayload(t JobType, raw json.RawMessage) (interface{}, error) {
	var p validatable
	switch t {
	case JobTypeDiscovery:
		p = &DiscoveryPayload{}
	case JobTypeEnrichment:
		p = &EnrichmentPayload{}
	case JobTypeResearch:
		p = &ResearchPayload{}
	case JobTypeOutreach:
		p = &OutreachPayload{}
	case JobTypeEmailSend:
		p = &EmailSendPayload{}
	default:
		return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidPayload, t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
