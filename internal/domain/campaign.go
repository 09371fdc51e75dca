package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CampaignStatus values for the campaign lifecycle.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusArchived  CampaignStatus = "archived"
)

// PlatformSearch is one discovery platform's configured search plus its
// pagination cursor.
type PlatformSearch struct {
	SearchURL  string `json:"search_url"`
	PageNumber int    `json:"page_number"`
}

// SearchURLMap maps a discovery platform name to its search config.
// Stored as JSONB on the campaign row.
type SearchURLMap map[string]PlatformSearch

func (m SearchURLMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *SearchURLMap) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = SearchURLMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into SearchURLMap", src)
	}
}

// Campaign is a configured outreach effort with discovery sources,
// channels and daily sending limits.
type Campaign struct {
	ID                        string         `db:"id" json:"id"`
	ClientID                  *string        `db:"client_id" json:"client_id,omitempty"`
	Name                      string         `db:"name" json:"name"`
	Description               string         `db:"description" json:"description,omitempty"`
	Status                    CampaignStatus `db:"status" json:"status"`
	SearchURL                 SearchURLMap   `db:"search_url" json:"search_url"`
	EmailOutreach             bool           `db:"email_outreach" json:"email_outreach"`
	LinkedInOutreach          bool           `db:"linkedin_outreach" json:"linkedin_outreach"`
	DailySendingLimitEmail    int            `db:"daily_sending_limit_email" json:"daily_sending_limit_email"`
	DailySendingLimitLinkedIn int            `db:"daily_sending_limit_linkedin" json:"daily_sending_limit_linkedin"`
	CreatedAt                 time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time      `db:"updated_at" json:"updated_at"`
}

// OutreachEnabled reports whether at least one outreach channel is on.
func (c *Campaign) OutreachEnabled() bool {
	return c.EmailOutreach || c.LinkedInOutreach
}

// CombinedDailyLimit is the total messages per day across channels.
func (c *Campaign) CombinedDailyLimit() int {
	return c.DailySendingLimitEmail + c.DailySendingLimitLinkedIn
}
