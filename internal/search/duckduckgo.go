// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/httputil"
	"github.com/pdiddy/agentlens/pkg/types"
)

// duckduckgoAPIBase is the DuckDuckGo HTML endpoint. Declared as a var so
// tests can substitute an httptest server.
var duckduckgoAPIBase = "https://html.duckduckgo.com/html/"

// maxPayloadBytes bounds a DuckDuckGo response body.
const maxPayloadBytes = 1 << 20

// DuckDuckGoProvider queries the DuckDuckGo HTML interface. It needs no
// credentials and returns its response as a free-text payload that
// ParsePayload turns into results.
type DuckDuckGoProvider struct {
	client *http.Client
	cfg    types.SearchConfig
	log    *zap.Logger
}

// NewDuckDuckGoProvider returns the DuckDuckGo provider, or nil when it is
// disabled in cfg.
func NewDuckDuckGoProvider(client *http.Client, cfg types.SearchConfig, log *zap.Logger) *DuckDuckGoProvider {
	if !cfg.EnableDuckDuckGo {
		return nil
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = types.DefaultUserAgent
	}
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
	return &DuckDuckGoProvider{client: client, cfg: cfg, log: log}
}

// Name returns the provider identifier.
func (p *DuckDuckGoProvider) Name() string { return "duckduckgo_search" }

// Search runs one query and returns the raw response body as the payload.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string) Outcome {
	reqURL := duckduckgoAPIBase + "?" + url.Values{"q": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Failed(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := httputil.DoWithRetry(ctx, p.client, req, 0, p.log)
	if err != nil {
		return Failed(fmt.Errorf("DuckDuckGo request: %w", err))
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		return Failed(fmt.Errorf("DuckDuckGo: %w", err))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return Failed(fmt.Errorf("reading DuckDuckGo response: %w", err))
	}
	return Text(string(body))
}

// Providers builds the configured primary and secondary providers. Either
// may be nil.
func Providers(client *http.Client, cfg types.SearchConfig, log *zap.Logger) (primary, secondary Provider) {
	if p := NewTavilyProvider(client, cfg, log); p != nil {
		primary = p
	}
	if p := NewDuckDuckGoProvider(client, cfg, log); p != nil {
		secondary = p
	}
	return primary, secondary
}
