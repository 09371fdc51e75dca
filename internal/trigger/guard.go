package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/leadflowhq/leadflow/internal/domain"
)

// Payload fields the guard keys duplicate/cooldown lookups on.
const (
	FieldCampaignID = "campaign_id"
	FieldLeadID     = "lead_id"
)

// Guard centralizes the two checks every rule performs before creating
// a job: "does an equivalent non-terminal job already exist" and "has
// the cooldown window since the last matching job elapsed". Duplicate
// lookup goes by querying jobs rather than a uniqueness constraint
// because payload shapes vary per job type.
type Guard struct {
	q   Querier
	now func() time.Time
}

// NewGuard builds a guard over q. now may be nil (defaults to
// time.Now); tests inject a fixed clock.
func NewGuard(q Querier, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{q: q, now: now}
}

// DuplicateExists reports whether a pending or processing job of the
// given type already targets the entity.
func (g *Guard) DuplicateExists(ctx context.Context, jobType domain.JobType, entityField, entityID string) (bool, error) {
	exists, err := g.q.HasNonTerminalJob(ctx, jobType, entityField, entityID)
	if err != nil {
		return false, fmt.Errorf("duplicate guard lookup for %s/%s=%s: %w", jobType, entityField, entityID, err)
	}
	return exists, nil
}

// CooldownActive reports whether the most recent job of the given type
// for the entity was created within the window. The window is computed
// from the job's created_at, not a separate timer.
func (g *Guard) CooldownActive(ctx context.Context, jobType domain.JobType, entityField, entityID string, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}
	last, err := g.q.LastJobCreatedAt(ctx, jobType, entityField, entityID)
	if err != nil {
		return false, fmt.Errorf("cooldown guard lookup for %s/%s=%s: %w", jobType, entityField, entityID, err)
	}
	if last == nil {
		return false, nil
	}
	return g.now().Sub(*last) < window, nil
}
