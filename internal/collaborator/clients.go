package collaborator

import (
	"context"
	"log/slog"

	"github.com/leadflowhq/leadflow/internal/config"
)

// HTTPSearcher implements ProspectSearcher against the search
// provider's API.
type HTTPSearcher struct {
	http *httpClient
}

func NewHTTPSearcher(cfg config.Provider, logger *slog.Logger) *HTTPSearcher {
	return &HTTPSearcher{http: newHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger)}
}

func (s *HTTPSearcher) SearchLeads(ctx context.Context, searchURL string, page int) (*SearchPage, error) {
	req := struct {
		SearchURL string `json:"search_url"`
		Page      int    `json:"page"`
	}{SearchURL: searchURL, Page: page}

	var result SearchPage
	if err := s.http.postJSON(ctx, "/v1/search", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HTTPEnricher implements Enricher against the enrichment provider.
type HTTPEnricher struct {
	http *httpClient
}

func NewHTTPEnricher(cfg config.Provider, logger *slog.Logger) *HTTPEnricher {
	return &HTTPEnricher{http: newHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger)}
}

func (e *HTTPEnricher) EnrichLead(ctx context.Context, req EnrichmentRequest) (*EnrichmentResult, error) {
	var result EnrichmentResult
	if err := e.http.postJSON(ctx, "/v1/enrich", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HTTPResearcher implements Researcher against the research provider.
type HTTPResearcher struct {
	http *httpClient
}

func NewHTTPResearcher(cfg config.Provider, logger *slog.Logger) *HTTPResearcher {
	return &HTTPResearcher{http: newHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger)}
}

func (r *HTTPResearcher) ResearchLead(ctx context.Context, req ResearchRequest) (*ResearchResult, error) {
	var result ResearchResult
	if err := r.http.postJSON(ctx, "/v1/research", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HTTPComposer implements Composer against the composition provider.
type HTTPComposer struct {
	http *httpClient
}

func NewHTTPComposer(cfg config.Provider, logger *slog.Logger) *HTTPComposer {
	return &HTTPComposer{http: newHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger)}
}

func (c *HTTPComposer) ComposeSequence(ctx context.Context, req ComposeRequest) ([]DraftMessage, error) {
	var result struct {
		Messages []DraftMessage `json:"messages"`
	}
	if err := c.http.postJSON(ctx, "/v1/compose", req, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// HTTPMailer implements Mailer against the email delivery provider.
type HTTPMailer struct {
	http *httpClient
}

func NewHTTPMailer(cfg config.Provider, logger *slog.Logger) *HTTPMailer {
	return &HTTPMailer{http: newHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger)}
}

func (m *HTTPMailer) SendEmail(ctx context.Context, req SendRequest) (*SendResult, error) {
	var result SendResult
	if err := m.http.postJSON(ctx, "/v1/send", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
