package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPlaceholderEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{name: "locked sentinel", email: "email_not_unlocked@domain.com", want: true},
		{name: "sentinel with surrounding space", email: "  email_not_unlocked@domain.com ", want: true},
		{name: "sentinel uppercased", email: "EMAIL_NOT_UNLOCKED@DOMAIN.COM", want: true},
		{name: "empty", email: "", want: true},
		{name: "whitespace only", email: "   ", want: true},
		{name: "no at sign", email: "not-an-email", want: true},
		{name: "generic placeholder domain", email: "jane@domain.com", want: true},
		{name: "example domain", email: "jane@example.com", want: true},
		{name: "real address", email: "jane.doe@acme.io", want: false},
		{name: "real address with plus tag", email: "jane+leads@acme.io", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlaceholderEmail(tt.email))
		})
	}
}

func TestLead_FullName(t *testing.T) {
	tests := []struct {
		name  string
		first string
		last  string
		want  string
	}{
		{name: "both names", first: "Ada", last: "Lovelace", want: "Ada Lovelace"},
		{name: "first only", first: "Ada", last: "", want: "Ada"},
		{name: "last only", first: "", last: "Lovelace", want: "Lovelace"},
		{name: "neither", first: "", last: "", want: ""},
		{name: "padded names", first: " Ada ", last: " Lovelace ", want: "Ada Lovelace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Lead{FirstName: tt.first, LastName: tt.last}
			assert.Equal(t, tt.want, l.FullName())
		})
	}
}

func TestCampaign_OutreachEnabled(t *testing.T) {
	assert.False(t, (&Campaign{}).OutreachEnabled())
	assert.True(t, (&Campaign{EmailOutreach: true}).OutreachEnabled())
	assert.True(t, (&Campaign{LinkedInOutreach: true}).OutreachEnabled())
}

func TestCampaign_CombinedDailyLimit(t *testing.T) {
	c := &Campaign{DailySendingLimitEmail: 20, DailySendingLimitLinkedIn: 15}
	assert.Equal(t, 35, c.CombinedDailyLimit())
	assert.Equal(t, 0, (&Campaign{}).CombinedDailyLimit())
}

func TestSearchURLMap_Scan(t *testing.T) {
	t.Run("bytes", func(t *testing.T) {
		var m SearchURLMap
		err := m.Scan([]byte(`{"apollo":{"search_url":"https://x","page_number":3}}`))
		assert.NoError(t, err)
		assert.Equal(t, 3, m["apollo"].PageNumber)
	})

	t.Run("nil becomes empty map", func(t *testing.T) {
		var m SearchURLMap
		assert.NoError(t, m.Scan(nil))
		assert.NotNil(t, m)
		assert.Empty(t, m)
	})

	t.Run("unsupported type", func(t *testing.T) {
		var m SearchURLMap
		assert.Error(t, m.Scan(42))
	})
}
