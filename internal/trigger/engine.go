package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config tunes rule thresholds and windows.
type Config struct {
	// LowSupplyThreshold is the enriched-lead count below which the
	// replenishment rule fires for an active campaign.
	LowSupplyThreshold int

	// ResearchJobCap bounds research jobs created per evaluation pass.
	ResearchJobCap int

	// ResearchCooldown is the rolling window since the last research
	// job for the same campaign.
	ResearchCooldown time.Duration

	// DiscoveryCooldown is the rolling window since the last discovery
	// job for the same campaign.
	DiscoveryCooldown time.Duration

	// EnrichmentStatementCap bounds enrichment jobs created from one
	// bulk lead insert.
	EnrichmentStatementCap int

	// Now supplies the clock; nil means time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.LowSupplyThreshold <= 0 {
		c.LowSupplyThreshold = 5
	}
	if c.ResearchJobCap <= 0 {
		c.ResearchJobCap = 10
	}
	if c.ResearchCooldown <= 0 {
		c.ResearchCooldown = time.Hour
	}
	if c.DiscoveryCooldown <= 0 {
		c.DiscoveryCooldown = time.Hour
	}
	if c.EnrichmentStatementCap <= 0 {
		c.EnrichmentStatementCap = 25
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// savepointer is implemented by transaction-backed queriers so a
// failing rule can be rolled back without aborting the mutation.
type savepointer interface {
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
}

// Engine holds the registered rules and evaluates them against
// mutation events.
type Engine struct {
	logger *slog.Logger
	cfg    Config
	rules  []Rule
}

// NewEngine registers the standard rule set.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{logger: logger, cfg: cfg}
	e.rules = []Rule{
		&campaignActivationRule{cfg: cfg},
		&lowSupplyRule{cfg: cfg},
		&placeholderEmailRule{cfg: cfg},
		&capacityResearchRule{cfg: cfg},
		&researchedOutreachRule{cfg: cfg},
	}
	return e
}

// Rules exposes the registered rules, in evaluation order.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Evaluate runs every matching rule against the event. Rule failures
// are contained: when the querier is transaction-backed, the rule's
// writes are rolled back to a savepoint; either way the error is
// logged and evaluation continues. The returned jobs were inserted in
// the caller's transaction and should be announced after commit.
func (e *Engine) Evaluate(ctx context.Context, q Querier, ev *Event) []CreatedJob {
	var created []CreatedJob

	sp, hasSavepoints := q.(savepointer)

	for i, rule := range e.rules {
		if !rule.Matches(ev) {
			continue
		}

		name := fmt.Sprintf("trigger_rule_%d", i)
		if hasSavepoints {
			if err := sp.Savepoint(ctx, name); err != nil {
				e.logger.Warn("Failed to create trigger savepoint",
					slog.String("rule", rule.Name()),
					slog.Any("error", err),
				)
				continue
			}
		}

		jobs, err := rule.Evaluate(ctx, q, ev)
		if err != nil {
			// Best-effort: the mutation must commit regardless.
			e.logger.Warn("Trigger rule evaluation failed",
				slog.String("rule", rule.Name()),
				slog.String("entity", string(ev.Entity)),
				slog.String("op", string(ev.Op)),
				slog.String("campaign_id", ev.CampaignID),
				slog.Any("error", err),
			)
			if hasSavepoints {
				if rbErr := sp.RollbackToSavepoint(ctx, name); rbErr != nil {
					e.logger.Error("Failed to roll back trigger savepoint",
						slog.String("rule", rule.Name()),
						slog.Any("error", rbErr),
					)
				}
			}
			continue
		}

		if hasSavepoints {
			if err := sp.ReleaseSavepoint(ctx, name); err != nil {
				e.logger.Warn("Failed to release trigger savepoint",
					slog.String("rule", rule.Name()),
					slog.Any("error", err),
				)
			}
		}

		for _, j := range jobs {
			e.logger.Info("Trigger rule created job",
				slog.String("rule", rule.Name()),
				slog.String("job_id", j.ID),
				slog.String("job_type", string(j.JobType)),
				slog.String("priority", string(j.Priority)),
				slog.String("campaign_id", ev.CampaignID),
			)
		}
		created = append(created, jobs...)
	}

	return created
}
