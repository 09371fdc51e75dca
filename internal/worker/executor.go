package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/store"
)

// Storage is the persistence surface the worker and its executors use.
// *store.Store implements it; tests supply a fake.
type Storage interface {
	ClaimNextJob(ctx context.Context, workerID string) (*domain.Job, error)
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	CompleteJob(ctx context.Context, jobID, workerID string, result json.RawMessage) error
	RetryJob(ctx context.Context, jobID, workerID, errMsg string, retryAt time.Time) error
	FailJob(ctx context.Context, jobID, workerID, errMsg string) error
	UpdateJobHeartbeat(ctx context.Context, jobID, workerID string) error
	ReapStaleJobs(ctx context.Context, lease time.Duration) (int, error)

	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	AdvanceSearchCursor(ctx context.Context, campaignID, platform string, pageNumber int) error

	GetLead(ctx context.Context, id string) (*domain.Lead, error)
	LeadExists(ctx context.Context, campaignID string, lead *domain.Lead) (bool, error)
	CreateLeads(ctx context.Context, campaignID string, leads []*domain.Lead) error
	UpdateLeadStatus(ctx context.Context, id string, status domain.LeadStatus, upd store.LeadUpdate) (*domain.Lead, error)
	ApplyEnrichment(ctx context.Context, id, email string, fullContext json.RawMessage) (*domain.Lead, error)
	ApplyResearch(ctx context.Context, id string, fullContext json.RawMessage) (*domain.Lead, error)

	GetMessage(ctx context.Context, id string) (*domain.Message, error)
	CreateMessages(ctx context.Context, msgs []*domain.Message) error
	UpdateMessageStatus(ctx context.Context, id string, to domain.MessageStatus, upd store.MessageStatusUpdate) (*domain.Message, error)
	DueMessages(ctx context.Context, campaignID string, channel domain.Channel, limit int) ([]domain.Message, error)
	UpcomingSendTimes(ctx context.Context, campaignID string, channel domain.Channel, from time.Time) ([]time.Time, error)
}

// Executor runs one job type. Execute returns the result persisted on
// the job; a RetryableError reschedules the job with backoff, any
// other error fails it permanently once retries are exhausted.
type Executor interface {
	Type() domain.JobType
	Execute(ctx context.Context, job *domain.Job) (json.RawMessage, error)
}

// Registry maps job types to their executors.
type Registry struct {
	executors map[domain.JobType]Executor
}

// NewRegistry builds a registry from the given executors.
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[domain.JobType]Executor, len(executors))}
	for _, e := range executors {
		r.executors[e.Type()] = e
	}
	return r
}

// Get returns the executor for t, or nil when none is registered.
func (r *Registry) Get(t domain.JobType) Executor {
	return r.executors[t]
}
