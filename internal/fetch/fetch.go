// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves a web page and reduces it to bounded plain text.
// Every failure yields an empty string: callers treat empty text as an
// unusable source, never as an error.
package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pdiddy/agentlens/internal/httputil"
	"github.com/pdiddy/agentlens/internal/trace"
	"github.com/pdiddy/agentlens/pkg/types"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// toolName labels fetch events in the trace.
const toolName = "fetch_page"

// skippedElements are dropped along with their subtrees.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
}

// Fetcher downloads pages and extracts their visible text.
type Fetcher struct {
	client *http.Client
	cfg    types.FetchConfig
	log    *zap.Logger
}

// New returns a Fetcher. A nil client gets one with cfg.Timeout (default
// 10s); redirects are followed by the standard client policy.
func New(client *http.Client, cfg types.FetchConfig, log *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = types.DefaultFetchTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = types.DefaultMaxChars
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = types.DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{client: client, cfg: cfg, log: log}
}

// Fetch returns at most MaxChars characters of whitespace-collapsed page
// text for url, or "" on any failure.
func (f *Fetcher) Fetch(ctx context.Context, url string) string {
	trace.Emit(ctx, trace.Event{
		Kind: trace.ToolStart,
		Name: toolName,
		Data: map[string]any{"input": url},
	})
	text := f.fetch(ctx, url)
	trace.Emit(ctx, trace.Event{
		Kind: trace.ToolEnd,
		Name: toolName,
		Data: map[string]any{"input": url, "output": map[string]any{"chars": len([]rune(text))}},
	})
	return text
}

func (f *Fetcher) fetch(ctx context.Context, url string) string {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.log.Debug("fetch: bad request", zap.String("url", url), zap.Error(err))
		return ""
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := httputil.DoWithRetry(ctx, f.client, req, 1, f.log)
	if err != nil {
		f.log.Debug("fetch: request failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		f.log.Debug("fetch: bad status", zap.String("url", url), zap.Error(err))
		return ""
	}

	text, err := ExtractText(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.log.Debug("fetch: parse failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	return types.TruncateRunes(text, f.cfg.MaxChars)
}

// ExtractText parses HTML from r and returns its visible text with
// script, style and noscript content removed and whitespace collapsed.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	collectText(doc, &sb)
	return strings.Join(strings.Fields(sb.String()), " "), nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
