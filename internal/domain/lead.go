package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// LeadStatus values mark a lead's progress through the pipeline.
type LeadStatus string

const (
	LeadStatusNew              LeadStatus = "new"
	LeadStatusEnriching        LeadStatus = "enriching"
	LeadStatusEnriched         LeadStatus = "enriched"
	LeadStatusEnrichmentFailed LeadStatus = "enrichment_failed"
	LeadStatusResearching      LeadStatus = "researching"
	LeadStatusResearched       LeadStatus = "researched"
	LeadStatusContacted        LeadStatus = "contacted"
	LeadStatusReplied          LeadStatus = "replied"
	LeadStatusUnsubscribed     LeadStatus = "unsubscribed"
)

// PlaceholderEmailSentinel is the provider's "locked" contact marker.
const PlaceholderEmailSentinel = "email_not_unlocked@domain.com"

// placeholderDomains are generic domains the discovery provider emits
// when the real address has not been unlocked.
var placeholderDomains = []string{"domain.com", "example.com"}

// IsPlaceholderEmail reports whether email is unset, the locked
// sentinel, or addressed at a generic placeholder domain.
func IsPlaceholderEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || email == PlaceholderEmailSentinel {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return true
	}
	dom := email[at+1:]
	for _, d := range placeholderDomains {
		if dom == d {
			return true
		}
	}
	return false
}

// Lead is a prospective contact discovered for a campaign.
type Lead struct {
	ID          string          `db:"id" json:"id"`
	CampaignID  string          `db:"campaign_id" json:"campaign_id"`
	FirstName   string          `db:"first_name" json:"first_name"`
	LastName    string          `db:"last_name" json:"last_name"`
	Email       string          `db:"email" json:"email"`
	Company     string          `db:"company" json:"company"`
	Title       string          `db:"title" json:"title,omitempty"`
	Status      LeadStatus      `db:"status" json:"status"`
	FullContext json.RawMessage `db:"full_context" json:"full_context,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// FullName joins the lead's first and last names.
func (l *Lead) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(l.FirstName) + " " + strings.TrimSpace(l.LastName))
}
