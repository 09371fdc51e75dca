package collaborator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/internal/config"
	"github.com/leadflowhq/leadflow/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func providerConfig(baseURL string) config.Provider {
	return config.Provider{BaseURL: baseURL, APIKey: "test-key", Timeout: 5 * time.Second}
}

func TestHTTPClient_PostJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("success decodes the response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ping", req["msg"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"echo":"pong"}`))
		}))
		defer srv.Close()

		c := newHTTPClient(srv.URL, "test-key", 5*time.Second, testLogger())

		var resp struct {
			Echo string `json:"echo"`
		}
		err := c.postJSON(ctx, "/v1/ping", map[string]string{"msg": "ping"}, &resp)
		require.NoError(t, err)
		assert.Equal(t, "pong", resp.Echo)
	})

	t.Run("rate limit is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := newHTTPClient(srv.URL, "", 5*time.Second, testLogger())
		err := c.postJSON(ctx, "/v1/ping", struct{}{}, nil)
		require.Error(t, err)
		assert.True(t, domain.IsRetryable(err))
	})

	t.Run("server error is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := newHTTPClient(srv.URL, "", 5*time.Second, testLogger())
		err := c.postJSON(ctx, "/v1/ping", struct{}{}, nil)
		require.Error(t, err)
		assert.True(t, domain.IsRetryable(err))
	})

	t.Run("client error is permanent and carries the body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"unknown search platform"}`))
		}))
		defer srv.Close()

		c := newHTTPClient(srv.URL, "", 5*time.Second, testLogger())
		err := c.postJSON(ctx, "/v1/ping", struct{}{}, nil)
		require.Error(t, err)
		assert.False(t, domain.IsRetryable(err))
		assert.Contains(t, err.Error(), "unknown search platform")
	})

	t.Run("unreachable host is retryable", func(t *testing.T) {
		c := newHTTPClient("http://127.0.0.1:1", "", time.Second, testLogger())
		err := c.postJSON(ctx, "/v1/ping", struct{}{}, nil)
		require.Error(t, err)
		assert.True(t, domain.IsRetryable(err))
	})
}

func TestHTTPSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)

		var req struct {
			SearchURL string `json:"search_url"`
			Page      int    `json:"page"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.Page)

		_, _ = w.Write([]byte(`{
			"leads": [{"first_name":"Ada","last_name":"Lovelace","email":"email_not_unlocked@domain.com","company":"Analytical"}],
			"has_more": true
		}`))
	}))
	defer srv.Close()

	s := NewHTTPSearcher(providerConfig(srv.URL), testLogger())
	page, err := s.SearchLeads(context.Background(), "https://apollo/search", 3)
	require.NoError(t, err)
	require.Len(t, page.Leads, 1)
	assert.Equal(t, "Ada", page.Leads[0].FirstName)
	assert.True(t, page.HasMore)
}

func TestHTTPComposer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/compose", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"messages": [
				{"channel":"email","subject":"Hi","content":"First touch","sequence_number":1},
				{"channel":"email","subject":"Re: Hi","content":"Follow up","sequence_number":2}
			]
		}`))
	}))
	defer srv.Close()

	c := NewHTTPComposer(providerConfig(srv.URL), testLogger())
	drafts, err := c.ComposeSequence(context.Background(), ComposeRequest{LeadName: "Ada"})
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, 2, drafts[1].SequenceNumber)
}

func TestHTTPMailer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/send", r.URL.Path)
		_, _ = w.Write([]byte(`{"provider_message_id":"prov-42"}`))
	}))
	defer srv.Close()

	m := NewHTTPMailer(providerConfig(srv.URL), testLogger())
	result, err := m.SendEmail(context.Background(), SendRequest{To: "ada@analytical.io"})
	require.NoError(t, err)
	assert.Equal(t, "prov-42", result.ProviderMessageID)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate([]byte("short"), 10))
	assert.Equal(t, "abc...", truncate([]byte("abcdefgh"), 3))
}
