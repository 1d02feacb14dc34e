// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/httputil"
	"github.com/pdiddy/agentlens/pkg/types"
)

// tavilyAPIBase is the Tavily search endpoint. Declared as a var so tests
// can substitute an httptest server.
var tavilyAPIBase = "https://api.tavily.com/search"

// ErrNoAPIKey is returned by providers that need a key and have none.
var ErrNoAPIKey = errors.New("search API key is not configured")

// TavilyProvider queries the Tavily search API. Tavily returns extracted
// page content with each result, which spares a fetch.
type TavilyProvider struct {
	client *http.Client
	cfg    types.SearchConfig
	log    *zap.Logger
}

// NewTavilyProvider returns the Tavily provider for cfg, or nil when the
// provider is disabled. A missing key still yields a provider whose calls
// report OutcomeUnavailable.
func NewTavilyProvider(client *http.Client, cfg types.SearchConfig, log *zap.Logger) *TavilyProvider {
	if !cfg.EnableTavily {
		return nil
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = types.DefaultMaxResults
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = types.DefaultUserAgent
	}
	cfg.TavilyAPIKey = strings.TrimSpace(cfg.TavilyAPIKey)
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = types.DefaultSearchTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TavilyProvider{client: client, cfg: cfg, log: log}
}

// Name returns the provider identifier.
func (p *TavilyProvider) Name() string { return "tavily_search" }

type tavilyRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Search runs one query. Rejected credentials map to OutcomeUnavailable;
// transport failures are classified by Classify.
func (p *TavilyProvider) Search(ctx context.Context, query string) Outcome {
	if p.cfg.TavilyAPIKey == "" {
		return Unavailable(ErrNoAPIKey)
	}

	body, err := json.Marshal(tavilyRequest{
		Query:      query,
		MaxResults: p.cfg.MaxResults,
	})
	if err != nil {
		return Failed(fmt.Errorf("encoding Tavily request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIBase, bytes.NewReader(body))
	if err != nil {
		return Failed(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Authorization", "Bearer "+p.cfg.TavilyAPIKey)

	resp, err := httputil.DoWithRetry(ctx, p.client, req, 0, p.log)
	if err != nil {
		return Failed(fmt.Errorf("Tavily API request: %w", err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Unavailable(httputil.CheckStatus(resp))
	}
	if err := httputil.CheckStatus(resp); err != nil {
		return Failed(fmt.Errorf("Tavily API: %w", err))
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Failed(fmt.Errorf("parsing Tavily response: %w", err))
	}

	results := make([]RawResult, 0, len(tr.Results))
	for _, r := range tr.Results {
		results = append(results, RawResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: strings.TrimSpace(r.Content),
		})
	}
	p.log.Debug("tavily search", zap.String("query", query), zap.Int("results", len(results)))
	return OK(results)
}
