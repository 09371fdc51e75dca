package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/internal/domain"
	"github.com/leadflowhq/leadflow/internal/store"
)

// fakeStorage records finalization calls; only the job surface is
// exercised by processor tests.
type fakeStorage struct {
	mu sync.Mutex

	claimJob *domain.Job
	claimErr error
	getJob   *domain.Job

	completed  []string
	retried    []string
	failed     []string
	retryAt    time.Time
	failMsg    string
	lastResult json.RawMessage

	completeErr error
}

func (f *fakeStorage) ClaimNextJob(context.Context, string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	job := f.claimJob
	f.claimJob = nil
	return job, nil
}

func (f *fakeStorage) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getJob != nil {
		return f.getJob, nil
	}
	return &domain.Job{ID: jobID, Status: domain.JobStatusProcessing}, nil
}

func (f *fakeStorage) CompleteJob(_ context.Context, jobID, _ string, result json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = append(f.completed, jobID)
	f.lastResult = result
	return nil
}

func (f *fakeStorage) RetryJob(_ context.Context, jobID, _, _ string, retryAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, jobID)
	f.retryAt = retryAt
	return nil
}

func (f *fakeStorage) FailJob(_ context.Context, jobID, _, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, jobID)
	f.failMsg = errMsg
	return nil
}

func (f *fakeStorage) UpdateJobHeartbeat(context.Context, string, string) error { return nil }

func (f *fakeStorage) ReapStaleJobs(context.Context, time.Duration) (int, error) { return 0, nil }

func (f *fakeStorage) GetCampaign(context.Context, string) (*domain.Campaign, error) {
	return nil, domain.ErrCampaignNotFound
}

func (f *fakeStorage) AdvanceSearchCursor(context.Context, string, string, int) error { return nil }

func (f *fakeStorage) GetLead(context.Context, string) (*domain.Lead, error) {
	return nil, domain.ErrLeadNotFound
}

func (f *fakeStorage) LeadExists(context.Context, string, *domain.Lead) (bool, error) {
	return false, nil
}

func (f *fakeStorage) CreateLeads(context.Context, string, []*domain.Lead) error { return nil }

func (f *fakeStorage) UpdateLeadStatus(context.Context, string, domain.LeadStatus, store.LeadUpdate) (*domain.Lead, error) {
	return nil, domain.ErrLeadNotFound
}

func (f *fakeStorage) ApplyEnrichment(context.Context, string, string, json.RawMessage) (*domain.Lead, error) {
	return nil, domain.ErrLeadNotFound
}

func (f *fakeStorage) ApplyResearch(context.Context, string, json.RawMessage) (*domain.Lead, error) {
	return nil, domain.ErrLeadNotFound
}

func (f *fakeStorage) GetMessage(context.Context, string) (*domain.Message, error) {
	return nil, domain.ErrMessageNotFound
}

func (f *fakeStorage) CreateMessages(context.Context, []*domain.Message) error { return nil }

func (f *fakeStorage) UpdateMessageStatus(context.Context, string, domain.MessageStatus, store.MessageStatusUpdate) (*domain.Message, error) {
	return nil, domain.ErrMessageNotFound
}

func (f *fakeStorage) DueMessages(context.Context, string, domain.Channel, int) ([]domain.Message, error) {
	return nil, nil
}

func (f *fakeStorage) UpcomingSendTimes(context.Context, string, domain.Channel, time.Time) ([]time.Time, error) {
	return nil, nil
}

// fakeExecutor runs a canned function for the discovery type.
type fakeExecutor struct {
	jobType domain.JobType
	run     func(ctx context.Context, job *domain.Job) (json.RawMessage, error)
}

func (f *fakeExecutor) Type() domain.JobType { return f.jobType }

func (f *fakeExecutor) Execute(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	return f.run(ctx, job)
}

func newTestWorker(st Storage, reg *Registry) *Worker {
	return NewWorker(&Config{
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:            st,
		Registry:         reg,
		Concurrency:      1,
		JobTimeout:       5 * time.Second,
		RetryBackoffBase: time.Minute,
		RetryBackoffCap:  time.Hour,
	})
}

func testJob(retryCount int) *domain.Job {
	return &domain.Job{
		ID:         "job-1",
		JobType:    domain.JobTypeDiscovery,
		Status:     domain.JobStatusProcessing,
		RetryCount: retryCount,
		MaxRetries: 3,
	}
}

func TestBackoff(t *testing.T) {
	base := time.Minute
	cap := time.Hour

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: time.Minute},
		{attempt: 2, want: 2 * time.Minute},
		{attempt: 3, want: 4 * time.Minute},
		{attempt: 4, want: 8 * time.Minute},
		{attempt: 7, want: time.Hour}, // 64m capped
		{attempt: 50, want: time.Hour},
		{attempt: 0, want: time.Minute},
		{attempt: -3, want: time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.attempt, base, cap), "attempt %d", tt.attempt)
	}
}

func TestWorker_ProcessJob(t *testing.T) {
	ctx := context.Background()

	t.Run("success persists the result", func(t *testing.T) {
		st := &fakeStorage{}
		reg := NewRegistry(&fakeExecutor{
			jobType: domain.JobTypeDiscovery,
			run: func(context.Context, *domain.Job) (json.RawMessage, error) {
				return json.RawMessage(`{"leads_created":7}`), nil
			},
		})
		w := newTestWorker(st, reg)

		w.processJob(ctx, "w-0", testJob(0))

		require.Equal(t, []string{"job-1"}, st.completed)
		assert.JSONEq(t, `{"leads_created":7}`, string(st.lastResult))
		assert.Empty(t, st.retried)
		assert.Empty(t, st.failed)
	})

	t.Run("retryable failure schedules a retry with backoff", func(t *testing.T) {
		st := &fakeStorage{}
		reg := NewRegistry(&fakeExecutor{
			jobType: domain.JobTypeDiscovery,
			run: func(context.Context, *domain.Job) (json.RawMessage, error) {
				return nil, domain.NewRetryableError(errors.New("provider 503"))
			},
		})
		w := newTestWorker(st, reg)

		before := time.Now()
		w.processJob(ctx, "w-0", testJob(0))

		require.Equal(t, []string{"job-1"}, st.retried)
		assert.Empty(t, st.failed)
		// First retry waits the base delay.
		assert.WithinDuration(t, before.Add(time.Minute), st.retryAt, 2*time.Second)
	})

	t.Run("exhausted retries fail terminally", func(t *testing.T) {
		st := &fakeStorage{}
		reg := NewRegistry(&fakeExecutor{
			jobType: domain.JobTypeDiscovery,
			run: func(context.Context, *domain.Job) (json.RawMessage, error) {
				return nil, domain.NewRetryableError(errors.New("provider 503"))
			},
		})
		w := newTestWorker(st, reg)

		w.processJob(ctx, "w-0", testJob(3)) // retry_count == max_retries

		require.Equal(t, []string{"job-1"}, st.failed)
		assert.Empty(t, st.retried)
		assert.Contains(t, st.failMsg, "max retries exceeded")
		assert.Contains(t, st.failMsg, "provider 503")
	})

	t.Run("permanent failure skips the retry budget", func(t *testing.T) {
		st := &fakeStorage{}
		reg := NewRegistry(&fakeExecutor{
			jobType: domain.JobTypeDiscovery,
			run: func(context.Context, *domain.Job) (json.RawMessage, error) {
				return nil, errors.New("malformed payload")
			},
		})
		w := newTestWorker(st, reg)

		w.processJob(ctx, "w-0", testJob(0))

		require.Equal(t, []string{"job-1"}, st.failed)
		assert.Empty(t, st.retried)
		assert.NotContains(t, st.failMsg, "max retries exceeded")
	})

	t.Run("cancellation during execution discards the outcome", func(t *testing.T) {
		st := &fakeStorage{}
		reg := NewRegistry(&fakeExecutor{
			jobType: domain.JobTypeDiscovery,
			run: func(context.Context, *domain.Job) (json.RawMessage, error) {
				// Cancel lands while the executor is still running.
				st.mu.Lock()
				st.getJob = &domain.Job{ID: "job-1", Status: domain.JobStatusCancelled}
				st.mu.Unlock()
				return json.RawMessage(`{}`), nil
			},
		})
		w := newTestWorker(st, reg)

		w.processJob(ctx, "w-0", testJob(0))

		assert.Empty(t, st.completed)
		assert.Empty(t, st.retried)
		assert.Empty(t, st.failed)
	})

	t.Run("cancellation before dispatch skips the executor", func(t *testing.T) {
		st := &fakeStorage{
			getJob: &domain.Job{ID: "job-1", Status: domain.JobStatusCancelled},
		}
		executed := false
		reg := NewRegistry(&fakeExecutor{
			jobType: domain.JobTypeDiscovery,
			run: func(context.Context, *domain.Job) (json.RawMessage, error) {
				executed = true
				return json.RawMessage(`{}`), nil
			},
		})
		w := newTestWorker(st, reg)

		w.processJob(ctx, "w-0", testJob(0))

		assert.False(t, executed)
		assert.Empty(t, st.completed)
		assert.Empty(t, st.retried)
		assert.Empty(t, st.failed)
	})

	t.Run("superseded completion is discarded quietly", func(t *testing.T) {
		st := &fakeStorage{
			completeErr: &domain.InvalidTransitionError{Entity: "job", From: "cancelled", To: "completed"},
		}
		reg := NewRegistry(&fakeExecutor{
			jobType: domain.JobTypeDiscovery,
			run: func(context.Context, *domain.Job) (json.RawMessage, error) {
				return json.RawMessage(`{}`), nil
			},
		})
		w := newTestWorker(st, reg)

		// Must not panic or retry; the error path only logs.
		w.processJob(ctx, "w-0", testJob(0))

		assert.Empty(t, st.retried)
		assert.Empty(t, st.failed)
	})

	t.Run("missing executor fails the job", func(t *testing.T) {
		st := &fakeStorage{}
		w := newTestWorker(st, NewRegistry())

		w.processJob(ctx, "w-0", testJob(0))

		require.Equal(t, []string{"job-1"}, st.failed)
		assert.Contains(t, st.failMsg, "no executor")
	})
}

func TestWorker_ProcessNext(t *testing.T) {
	ctx := context.Background()

	t.Run("empty queue reports no work", func(t *testing.T) {
		st := &fakeStorage{}
		w := newTestWorker(st, NewRegistry())

		assert.False(t, w.processNext(ctx, "w-0"))
	})

	t.Run("claim error reports no work", func(t *testing.T) {
		st := &fakeStorage{claimErr: errors.New("db down")}
		w := newTestWorker(st, NewRegistry())

		assert.False(t, w.processNext(ctx, "w-0"))
	})

	t.Run("claimed job is processed", func(t *testing.T) {
		st := &fakeStorage{claimJob: testJob(0)}
		reg := NewRegistry(&fakeExecutor{
			jobType: domain.JobTypeDiscovery,
			run: func(context.Context, *domain.Job) (json.RawMessage, error) {
				return json.RawMessage(`{}`), nil
			},
		})
		w := newTestWorker(st, reg)

		assert.True(t, w.processNext(ctx, "w-0"))
		assert.Equal(t, []string{"job-1"}, st.completed)
	})

	t.Run("one job goes to exactly one of many racing loops", func(t *testing.T) {
		st := &fakeStorage{claimJob: testJob(0)}
		reg := NewRegistry(&fakeExecutor{
			jobType: domain.JobTypeDiscovery,
			run: func(context.Context, *domain.Job) (json.RawMessage, error) {
				return json.RawMessage(`{}`), nil
			},
		})
		w := newTestWorker(st, reg)

		const racers = 8
		claimed := make(chan bool, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				claimed <- w.processNext(ctx, fmt.Sprintf("w-%d", n))
			}(i)
		}
		wg.Wait()
		close(claimed)

		winners := 0
		for got := range claimed {
			if got {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
		assert.Equal(t, []string{"job-1"}, st.completed)
	})
}

func TestRegistry(t *testing.T) {
	exec := &fakeExecutor{jobType: domain.JobTypeResearch}
	reg := NewRegistry(exec)

	assert.Equal(t, Executor(exec), reg.Get(domain.JobTypeResearch))
	assert.Nil(t, reg.Get(domain.JobTypeOutreach))
}
