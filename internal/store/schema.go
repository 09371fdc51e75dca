package store

import "context"

// schema is applied at startup. Status CHECK constraints mirror the
// transition tables in internal/domain; the partial indices serve the
// claim path and the trigger guards.
const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id TEXT PRIMARY KEY,
	client_id TEXT,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft'
		CHECK (status IN ('draft','active','paused','completed','archived')),
	search_url JSONB NOT NULL DEFAULT '{}',
	email_outreach BOOLEAN NOT NULL DEFAULT FALSE,
	linkedin_outreach BOOLEAN NOT NULL DEFAULT FALSE,
	daily_sending_limit_email INTEGER NOT NULL DEFAULT 0,
	daily_sending_limit_linkedin INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'new'
		CHECK (status IN ('new','enriching','enriched','enrichment_failed',
			'researching','researched','contacted','replied','unsubscribed')),
	full_context JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_leads_campaign_status ON leads (campaign_id, status);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	lead_id TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	channel TEXT NOT NULL CHECK (channel IN ('email','linkedin')),
	direction TEXT NOT NULL DEFAULT 'outbound',
	status TEXT NOT NULL DEFAULT 'draft'
		CHECK (status IN ('draft','scheduled','sent','delivered','failed',
			'retry_pending','bounced','unsubscribed')),
	subject TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	send_at TIMESTAMPTZ NOT NULL,
	sequence_number INTEGER NOT NULL DEFAULT 1,
	provider_message_id TEXT,
	error_message TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_messages_campaign_send ON messages (campaign_id, channel, send_at)
	WHERE status IN ('scheduled','retry_pending');

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	job_type TEXT NOT NULL
		CHECK (job_type IN ('discovery','enrichment','research','outreach','email_send')),
	data JSONB NOT NULL,
	priority TEXT NOT NULL DEFAULT 'normal' CHECK (priority IN ('low','normal','high')),
	status TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending','processing','completed','failed','cancelled')),
	provenance TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 3,
	worker_id TEXT,
	result JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	scheduled_for TIMESTAMPTZ,
	retry_at TIMESTAMPTZ,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	failed_at TIMESTAMPTZ,
	cancelled_at TIMESTAMPTZ,
	last_heartbeat_at TIMESTAMPTZ,
	CONSTRAINT jobs_status_timestamps CHECK (
		(status <> 'pending' OR started_at IS NULL) AND
		(status <> 'processing' OR started_at IS NOT NULL) AND
		(status <> 'completed' OR completed_at IS NOT NULL) AND
		(status <> 'failed' OR failed_at IS NOT NULL) AND
		(status <> 'cancelled' OR cancelled_at IS NOT NULL)
	)
);

CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs (priority, created_at)
	WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_jobs_scheduled ON jobs (scheduled_for)
	WHERE scheduled_for IS NOT NULL AND status = 'pending';
CREATE INDEX IF NOT EXISTS idx_jobs_retry ON jobs (retry_at)
	WHERE retry_at IS NOT NULL AND status = 'pending';
CREATE INDEX IF NOT EXISTS idx_jobs_campaign_guard ON jobs (job_type, (data->>'campaign_id'))
	WHERE status IN ('pending','processing');
CREATE INDEX IF NOT EXISTS idx_jobs_lead_guard ON jobs (job_type, (data->>'lead_id'))
	WHERE status IN ('pending','processing');
CREATE INDEX IF NOT EXISTS idx_jobs_cooldown ON jobs (job_type, (data->>'campaign_id'), created_at DESC);
`

// InitSchema creates tables and indices if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
