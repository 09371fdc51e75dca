// Package collaborator defines the external providers the executors
// delegate to: lead search, contact enrichment, research, message
// composition and email delivery. Each provider is an interface so
// executor tests run against fakes; the HTTP implementations classify
// transport and provider errors as retryable or permanent.
package collaborator

import (
	"context"
	"encoding/json"
)

// DiscoveredLead is one prospect returned by a search provider.
type DiscoveredLead struct {
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	Company   string          `json:"company"`
	Title     string          `json:"title"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// SearchPage is one page of search results. HasMore signals whether
// the platform cursor should advance for a further page.
type SearchPage struct {
	Leads   []DiscoveredLead `json:"leads"`
	HasMore bool             `json:"has_more"`
}

// ProspectSearcher fetches one page of prospects from a platform
// search URL.
type ProspectSearcher interface {
	SearchLeads(ctx context.Context, searchURL string, page int) (*SearchPage, error)
}

// EnrichmentRequest identifies the lead whose contact details need
// resolving.
type EnrichmentRequest struct {
	LeadID   string `json:"lead_id"`
	ClientID string `json:"client_id,omitempty"`
	LeadName string `json:"lead_name"`
	Company  string `json:"company"`
}

// EnrichmentResult is the provider's resolved contact. Email may still
// be a placeholder when the provider could not unlock the address.
type EnrichmentResult struct {
	Email   string          `json:"email"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Enricher resolves placeholder contact details.
type Enricher interface {
	EnrichLead(ctx context.Context, req EnrichmentRequest) (*EnrichmentResult, error)
}

// ResearchRequest identifies the lead to gather context for.
type ResearchRequest struct {
	LeadID       string `json:"lead_id"`
	CampaignName string `json:"campaign_name"`
	LeadName     string `json:"lead_name"`
	Company      string `json:"company"`
}

// ResearchResult is the gathered context stored on the lead.
type ResearchResult struct {
	Summary string          `json:"summary"`
	Context json.RawMessage `json:"context,omitempty"`
}

// Researcher gathers personalization context for an enriched lead.
type Researcher interface {
	ResearchLead(ctx context.Context, req ResearchRequest) (*ResearchResult, error)
}

// ComposeRequest carries everything the composer needs to draft a
// message sequence for one lead.
type ComposeRequest struct {
	CampaignName string          `json:"campaign_name"`
	LeadName     string          `json:"lead_name"`
	Company      string          `json:"company"`
	Channels     []string        `json:"channels"`
	Context      json.RawMessage `json:"context,omitempty"`
}

// DraftMessage is one composed message of a sequence, not yet
// scheduled.
type DraftMessage struct {
	Channel        string `json:"channel"`
	Subject        string `json:"subject,omitempty"`
	Content        string `json:"content"`
	SequenceNumber int    `json:"sequence_number"`
}

// Composer drafts an outreach message sequence.
type Composer interface {
	ComposeSequence(ctx context.Context, req ComposeRequest) ([]DraftMessage, error)
}

// SendRequest is one outbound email handed to the delivery provider.
type SendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// SendResult carries the provider's message identifier for delivery
// tracking.
type SendResult struct {
	ProviderMessageID string `json:"provider_message_id"`
}

// Mailer delivers email messages.
type Mailer interface {
	SendEmail(ctx context.Context, req SendRequest) (*SendResult, error)
}
