package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryPayload_Validate(t *testing.T) {
	valid := func() *DiscoveryPayload {
		return &DiscoveryPayload{
			CampaignID:   "camp-1",
			CampaignName: "Q3 Fintech",
			PlatformURLs: map[string]PlatformSearch{
				"apollo": {SearchURL: "https://app.apollo.io/#/people?q=cto", PageNumber: 1},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("missing campaign id", func(t *testing.T) {
		p := valid()
		p.CampaignID = ""
		err := p.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPayload))
	})

	t.Run("no platform urls", func(t *testing.T) {
		p := valid()
		p.PlatformURLs = nil
		assert.True(t, errors.Is(p.Validate(), ErrInvalidPayload))
	})

	t.Run("empty search url", func(t *testing.T) {
		p := valid()
		p.PlatformURLs["apollo"] = PlatformSearch{SearchURL: "", PageNumber: 1}
		assert.True(t, errors.Is(p.Validate(), ErrInvalidPayload))
	})

	t.Run("zero page number", func(t *testing.T) {
		p := valid()
		p.PlatformURLs["apollo"] = PlatformSearch{SearchURL: "https://x", PageNumber: 0}
		assert.True(t, errors.Is(p.Validate(), ErrInvalidPayload))
	})
}

func TestOutreachPayload_Validate(t *testing.T) {
	valid := func() *OutreachPayload {
		return &OutreachPayload{
			LeadID:          "lead-1",
			CampaignID:      "camp-1",
			LeadName:        "Ada Lovelace",
			Company:         "Analytical Engines",
			Email:           "ada@analytical.io",
			EnabledChannels: ChannelFlags{Email: true},
			DailyLimits:     ChannelLimits{Email: 20},
			TriggeredBy:     "status_change_researched",
			TriggeredAt:     time.Now(),
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("no enabled channel", func(t *testing.T) {
		p := valid()
		p.EnabledChannels = ChannelFlags{}
		assert.True(t, errors.Is(p.Validate(), ErrInvalidPayload))
	})

	t.Run("missing lead id", func(t *testing.T) {
		p := valid()
		p.LeadID = ""
		assert.True(t, errors.Is(p.Validate(), ErrInvalidPayload))
	})
}

func TestEmailSendPayload_Validate(t *testing.T) {
	t.Run("campaign scope", func(t *testing.T) {
		p := &EmailSendPayload{CampaignID: "camp-1"}
		require.NoError(t, p.Validate())
	})

	t.Run("single message scope", func(t *testing.T) {
		p := &EmailSendPayload{MessageID: "msg-1"}
		require.NoError(t, p.Validate())
	})

	t.Run("neither set", func(t *testing.T) {
		p := &EmailSendPayload{}
		assert.True(t, errors.Is(p.Validate(), ErrInvalidPayload))
	})
}

func TestEncodePayload(t *testing.T) {
	t.Run("valid payload round trips", func(t *testing.T) {
		p := &EnrichmentPayload{
			LeadID:        "lead-1",
			CampaignID:    "camp-1",
			LeadName:      "Ada Lovelace",
			Company:       "Analytical Engines",
			AttemptNumber: 1,
		}

		raw, err := EncodePayload(p)
		require.NoError(t, err)

		var decoded EnrichmentPayload
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, "lead-1", decoded.LeadID)
		assert.Equal(t, 1, decoded.AttemptNumber)
	})

	t.Run("invalid payload rejected before marshal", func(t *testing.T) {
		p := &EnrichmentPayload{CampaignID: "camp-1", AttemptNumber: 1}

		raw, err := EncodePayload(p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPayload))
		assert.Nil(t, raw)
	})
}

func TestDecodePayload(t *testing.T) {
	t.Run("dispatches on job type", func(t *testing.T) {
		raw := json.RawMessage(`{"lead_id":"lead-1","campaign_id":"camp-1","triggered_by":"capacity_check"}`)

		p, err := DecodePayload(JobTypeResearch, raw)
		require.NoError(t, err)

		rp, ok := p.(*ResearchPayload)
		require.True(t, ok)
		assert.Equal(t, "lead-1", rp.LeadID)
		assert.Equal(t, "capacity_check", rp.TriggeredBy)
	})

	t.Run("unknown job type", func(t *testing.T) {
		_, err := DecodePayload(JobType("cleanup"), json.RawMessage(`{}`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPayload))
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodePayload(JobTypeDiscovery, json.RawMessage(`{not json`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPayload))
	})

	t.Run("well-formed but invalid payload", func(t *testing.T) {
		_, err := DecodePayload(JobTypeResearch, json.RawMessage(`{"lead_id":""}`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPayload))
	})
}

func TestIsRetryable(t *testing.T) {
	base := errors.New("connection reset")

	t.Run("wrapped retryable", func(t *testing.T) {
		err := NewRetryableError(base)
		assert.True(t, IsRetryable(err))
		assert.True(t, errors.Is(err, base))
	})

	t.Run("deeply wrapped retryable", func(t *testing.T) {
		err := NewRetryableError(base)
		wrapped := errors.Join(errors.New("outer"), err)
		assert.True(t, IsRetryable(wrapped))
	})

	t.Run("plain error is permanent", func(t *testing.T) {
		assert.False(t, IsRetryable(base))
		assert.False(t, IsRetryable(nil))
	})
}
