// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/agentlens/internal/trace"
	"github.com/pdiddy/agentlens/pkg/types"
)

// ContentFetcher returns the plain text of a page, or "" when the page is
// unusable.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) string
}

// Retrieval is the result of one retrieval pass.
type Retrieval struct {
	// Queries are the queries that were issued.
	Queries []string

	// Documents are the usable documents, at most types.MaxDocuments.
	Documents []types.Document

	// Provider names the provider whose results were used, or "" when no
	// provider produced anything.
	Provider string

	// RawCount is the number of raw results collected before shaping.
	RawCount int
}

// Found reports whether any provider returned results.
func (r Retrieval) Found() bool { return r.RawCount > 0 }

// Retriever runs queries against a primary/secondary provider pair.
// Queries and fetches are issued sequentially.
type Retriever struct {
	primary   Provider
	secondary Provider
	fetcher   ContentFetcher
	qps       float64
	log       *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithPrimary sets the primary provider. A nil provider disables it.
func WithPrimary(p Provider) Option { return func(r *Retriever) { r.primary = p } }

// WithSecondary sets the fallback provider. A nil provider disables it.
func WithSecondary(p Provider) Option { return func(r *Retriever) { r.secondary = p } }

// WithQueryRate paces successive queries against one provider.
func WithQueryRate(qps float64) Option { return func(r *Retriever) { r.qps = qps } }

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option { return func(r *Retriever) { r.log = log } }

// NewRetriever returns a Retriever that fetches missing page content with f.
func NewRetriever(f ContentFetcher, opts ...Option) *Retriever {
	r := &Retriever{fetcher: f}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// Retrieve issues queries and builds documents from the results of the
// first provider that produced any. Results are never merged across
// providers. No results at all is not an error: the returned Retrieval
// simply has no documents.
func (r *Retriever) Retrieve(ctx context.Context, queries []string) Retrieval {
	out := Retrieval{Queries: queries, Documents: []types.Document{}}
	if len(queries) == 0 {
		return out
	}

	var raw []RawResult
	if r.primary != nil {
		raw = r.runPrimary(ctx, queries)
		if len(raw) > 0 {
			out.Provider = r.primary.Name()
		}
	}
	if len(raw) == 0 && r.secondary != nil {
		raw = r.runSecondary(ctx, queries)
		if len(raw) > 0 {
			out.Provider = r.secondary.Name()
		}
	}

	out.RawCount = len(raw)
	if len(raw) == 0 {
		r.log.Warn("no search results from any provider", zap.Strings("queries", queries))
		return out
	}
	out.Documents = r.buildDocuments(ctx, raw)
	return out
}

// runPrimary probes the primary provider with the first query. Any probe
// failure or an empty probe abandons the provider for this call. After a
// successful probe the remaining queries run in order; individual failures
// are logged and skipped.
func (r *Retriever) runPrimary(ctx context.Context, queries []string) []RawResult {
	name := r.primary.Name()
	limiter := r.newLimiter()

	probe := r.search(ctx, r.primary, queries[0])
	switch {
	case probe.Kind == OutcomeCertificate:
		r.log.Warn("certificate error from primary provider, falling back",
			zap.String("provider", name), zap.Error(probe.Err))
		return nil
	case probe.Kind != OutcomeOK:
		r.log.Warn("primary provider failed, falling back",
			zap.String("provider", name), zap.Stringer("outcome", probe.Kind), zap.Error(probe.Err))
		return nil
	case len(probe.Results) == 0:
		r.log.Warn("primary provider returned no results, falling back", zap.String("provider", name))
		return nil
	}

	results := append([]RawResult{}, probe.Results...)
	for _, q := range queries[1:] {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		o := r.search(ctx, r.primary, q)
		if o.Kind != OutcomeOK {
			r.log.Warn("query failed, skipping",
				zap.String("provider", name), zap.String("query", q),
				zap.Stringer("outcome", o.Kind), zap.Error(o.Err))
			continue
		}
		results = append(results, o.Results...)
	}
	return results
}

// runSecondary runs every query against the secondary provider. Free-text
// payloads are parsed into results.
func (r *Retriever) runSecondary(ctx context.Context, queries []string) []RawResult {
	name := r.secondary.Name()
	limiter := r.newLimiter()
	r.log.Info("using secondary search provider", zap.String("provider", name))

	var results []RawResult
	for i, q := range queries {
		if i > 0 {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		o := r.search(ctx, r.secondary, q)
		if o.Kind != OutcomeOK {
			r.log.Warn("query failed, skipping",
				zap.String("provider", name), zap.String("query", q),
				zap.Stringer("outcome", o.Kind), zap.Error(o.Err))
			continue
		}
		results = append(results, o.Results...)
		if o.Payload != "" {
			results = append(results, ParsePayload(q, o.Payload)...)
		}
	}
	return results
}

// search calls p and records the call in the trace.
func (r *Retriever) search(ctx context.Context, p Provider, query string) Outcome {
	trace.Emit(ctx, trace.Event{
		Kind: trace.ToolStart,
		Name: p.Name(),
		Data: map[string]any{"input": query},
	})
	o := p.Search(ctx, query)
	data := map[string]any{
		"input":   query,
		"outcome": o.Kind.String(),
		"output":  map[string]any{"results": len(o.Results), "payload_chars": len(o.Payload)},
	}
	if o.Err != nil {
		data["error"] = o.Err.Error()
	}
	trace.Emit(ctx, trace.Event{Kind: trace.ToolEnd, Name: p.Name(), Data: data})
	return o
}

// buildDocuments shapes at most types.MaxDocuments raw results into
// documents. Results without a URL are dropped; missing content is fetched
// and results whose content stays empty are dropped.
func (r *Retriever) buildDocuments(ctx context.Context, raw []RawResult) []types.Document {
	if len(raw) > types.MaxDocuments {
		raw = raw[:types.MaxDocuments]
	}
	docs := make([]types.Document, 0, len(raw))
	for _, res := range raw {
		url := res.Location()
		if url == "" {
			continue
		}
		content := res.Content
		if content == "" && r.fetcher != nil {
			content = r.fetcher.Fetch(ctx, url)
		}
		doc, ok := types.NewDocument(res.Title, url, res.Summary(), content)
		if !ok {
			r.log.Debug("dropping result without usable content", zap.String("url", url))
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func (r *Retriever) newLimiter() *rate.Limiter {
	if r.qps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(r.qps), 1)
}
