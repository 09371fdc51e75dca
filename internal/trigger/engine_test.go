package trigger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/internal/domain"
)

// spQuerier wraps fakeQuerier with savepoint recording.
type spQuerier struct {
	*fakeQuerier
	savepoints []string
	rollbacks  []string
	releases   []string
}

func (s *spQuerier) Savepoint(_ context.Context, name string) error {
	s.savepoints = append(s.savepoints, name)
	return nil
}

func (s *spQuerier) RollbackToSavepoint(_ context.Context, name string) error {
	s.rollbacks = append(s.rollbacks, name)
	return nil
}

func (s *spQuerier) ReleaseSavepoint(_ context.Context, name string) error {
	s.releases = append(s.releases, name)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, 5, cfg.LowSupplyThreshold)
	assert.Equal(t, 10, cfg.ResearchJobCap)
	assert.Equal(t, time.Hour, cfg.ResearchCooldown)
	assert.Equal(t, time.Hour, cfg.DiscoveryCooldown)
	assert.Equal(t, 25, cfg.EnrichmentStatementCap)
	assert.NotNil(t, cfg.Now)

	custom := Config{LowSupplyThreshold: 12, ResearchJobCap: 3}.withDefaults()
	assert.Equal(t, 12, custom.LowSupplyThreshold)
	assert.Equal(t, 3, custom.ResearchJobCap)
}

func TestNewEngine_RegistersStandardRules(t *testing.T) {
	e := NewEngine(Config{}, discardLogger())

	names := make([]string, 0, len(e.Rules()))
	for _, r := range e.Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{
		"campaign_activation",
		"low_enriched_leads",
		"placeholder_email_enrichment",
		"capacity_research",
		"researched_outreach",
	}, names)
}

func TestEngine_Evaluate(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Now: func() time.Time { return fixedNow }}

	activationEvent := func(c *domain.Campaign) *Event {
		old := *c
		old.Status = domain.CampaignStatusDraft
		return &Event{
			Entity:      EntityCampaign,
			Op:          OpUpdate,
			CampaignID:  c.ID,
			Campaign:    c,
			OldCampaign: &old,
		}
	}

	t.Run("collects jobs from matching rules", func(t *testing.T) {
		e := NewEngine(cfg, discardLogger())
		q := newFakeQuerier()
		c := activeCampaign("camp-1")
		q.campaigns[c.ID] = c

		created := e.Evaluate(ctx, q, activationEvent(c))

		require.Len(t, created, 1)
		assert.Equal(t, domain.JobTypeDiscovery, created[0].JobType)
		assert.NotEmpty(t, created[0].ID)
	})

	t.Run("failing rule is contained and evaluation continues", func(t *testing.T) {
		e := NewEngine(cfg, discardLogger())

		// Campaign lookup fails, so every lead rule that needs the
		// campaign errors out. The mutation itself must not fail.
		q := newFakeQuerier()
		q.lookupErr = assert.AnError

		ev := &Event{
			Entity:     EntityLead,
			Op:         OpInsert,
			CampaignID: "camp-1",
			Leads:      []domain.Lead{{ID: "lead-1", CampaignID: "camp-1", Email: ""}},
		}

		created := e.Evaluate(ctx, q, ev)
		assert.Empty(t, created)
	})

	t.Run("savepoints bracket each matching rule", func(t *testing.T) {
		e := NewEngine(cfg, discardLogger())
		q := &spQuerier{fakeQuerier: newFakeQuerier()}
		c := activeCampaign("camp-1")
		q.campaigns[c.ID] = c

		created := e.Evaluate(ctx, q, activationEvent(c))

		require.Len(t, created, 1)
		// Only the activation rule matches a campaign event.
		assert.Equal(t, []string{"trigger_rule_0"}, q.savepoints)
		assert.Equal(t, []string{"trigger_rule_0"}, q.releases)
		assert.Empty(t, q.rollbacks)
	})

	t.Run("failed rule rolls back to its savepoint", func(t *testing.T) {
		e := NewEngine(cfg, discardLogger())
		q := &spQuerier{fakeQuerier: newFakeQuerier()}
		c := activeCampaign("camp-1")
		c.SearchURL = nil // discovery job construction fails
		q.campaigns[c.ID] = c

		created := e.Evaluate(ctx, q, activationEvent(c))

		assert.Empty(t, created)
		assert.Equal(t, []string{"trigger_rule_0"}, q.savepoints)
		assert.Equal(t, []string{"trigger_rule_0"}, q.rollbacks)
		assert.Empty(t, q.releases)
	})

	t.Run("non-matching event touches nothing", func(t *testing.T) {
		e := NewEngine(cfg, discardLogger())
		q := &spQuerier{fakeQuerier: newFakeQuerier()}

		created := e.Evaluate(ctx, q, &Event{Entity: EntityCampaign, Op: OpDelete})

		assert.Empty(t, created)
		assert.Empty(t, q.savepoints)
	})
}
