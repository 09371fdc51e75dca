// Package trigger converts entity mutations into job creation
// decisions. Rules run inside the same transaction as the watched
// mutation; a failing rule is rolled back to its savepoint and logged,
// never surfaced to the mutating caller.
package trigger

import (
	"context"
	"time"

	"github.com/leadflowhq/leadflow/internal/domain"
)

// Op is the mutation kind a rule watches.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Entity is the mutated table.
type Entity string

const (
	EntityCampaign Entity = "campaign"
	EntityLead     Entity = "lead"
)

// Event describes one mutation statement. Row-level rules read Lead /
// OldLead (or iterate Leads for bulk inserts); statement-level rules
// only need the campaign scope.
type Event struct {
	Entity Entity
	Op     Op

	// CampaignID scopes every event; all lead mutations in one
	// statement belong to one campaign.
	CampaignID string

	Campaign    *domain.Campaign // campaign events: row after mutation
	OldCampaign *domain.Campaign // campaign events: row before mutation

	Lead    *domain.Lead  // lead update: row after mutation
	OldLead *domain.Lead  // lead update: row before mutation
	Leads   []domain.Lead // lead insert: all rows of the statement
}

// CreatedJob reports a job a rule inserted, so the caller can publish
// an eligibility notice after the transaction commits.
type CreatedJob struct {
	ID       string
	JobType  domain.JobType
	Priority domain.JobPriority
}

// Querier is the read/insert surface rules use. The store implements
// it over the mutation's transaction; tests supply a fake.
type Querier interface {
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	CountLeadsByStatus(ctx context.Context, campaignID string, status domain.LeadStatus) (int, error)
	ListLeadsByStatus(ctx context.Context, campaignID string, status domain.LeadStatus, limit int) ([]domain.Lead, error)
	CountMessagesScheduledToday(ctx context.Context, campaignID string) (int, error)

	// HasNonTerminalJob reports whether a pending or processing job of
	// the given type exists whose payload field matches entityID.
	HasNonTerminalJob(ctx context.Context, jobType domain.JobType, entityField, entityID string) (bool, error)

	// LastJobCreatedAt returns created_at of the most recent job of the
	// given type matching the payload field, regardless of status.
	LastJobCreatedAt(ctx context.Context, jobType domain.JobType, entityField, entityID string) (*time.Time, error)

	InsertJob(ctx context.Context, job *domain.Job) error
}

// Rule is one trigger condition: a match predicate over events plus an
// evaluator that may insert jobs through the querier.
type Rule interface {
	Name() string
	Matches(ev *Event) bool
	Evaluate(ctx context.Context, q Querier, ev *Event) ([]CreatedJob, error)
}
