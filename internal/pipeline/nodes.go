// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/quality"
	"github.com/pdiddy/agentlens/internal/search"
	"github.com/pdiddy/agentlens/pkg/types"
)

// Plan is the supervisor's fixed description of the pipeline.
const Plan = `Plan:
1. Break question into search queries
2. Gather documents
3. Extract notes
4. Draft answer
5. Verify citations and factual coverage`

// Retriever gathers documents for a set of queries.
type Retriever interface {
	Retrieve(ctx context.Context, queries []string) search.Retrieval
}

// NoteExtractor appends research notes built from the state's documents.
type NoteExtractor interface {
	Extract(ctx context.Context, s types.State) types.State
}

// Drafter writes the answer draft and its citations.
type Drafter interface {
	Draft(ctx context.Context, s types.State) (types.State, error)
}

// Supervise sets the plan. It does not look at the question.
func Supervise(_ context.Context, s types.State) (types.State, error) {
	out := s.Clone()
	out.Plan = Plan
	return out, nil
}

// researcher runs retrieval and note extraction.
type researcher struct {
	retriever Retriever
	extractor NoteExtractor
	log       *zap.Logger
}

// run replaces Queries and Documents, then appends a note. When no provider
// returned anything the notes are left as they were.
func (r *researcher) run(ctx context.Context, s types.State) (types.State, error) {
	out := s.Clone()
	out.Queries = search.GenerateQueries(out.Question, out.Queries)

	got := r.retriever.Retrieve(ctx, out.Queries)
	out.Documents = got.Documents
	if out.Documents == nil {
		out.Documents = []types.Document{}
	}
	if !got.Found() {
		r.log.Warn("no search results, continuing without documents", zap.Strings("queries", out.Queries))
		return out, nil
	}
	r.log.Info("documents gathered",
		zap.String("provider", got.Provider),
		zap.Int("raw_results", got.RawCount),
		zap.Int("documents", len(out.Documents)))
	return r.extractor.Extract(ctx, out), nil
}

// verifier runs the quality gate and enforces the retry budget.
type verifier struct {
	maxRetries int
	log        *zap.Logger
}

// run verifies the draft. When issues remain after maxRetries retries the
// run is marked exhausted and the exhaustion issue is appended. Final stays
// empty; the latest draft remains in Draft.
func (v *verifier) run(_ context.Context, s types.State) (types.State, error) {
	out := quality.Verify(s)
	if out.Verification.Passed() || out.Verification.Attempts <= v.maxRetries {
		return out, nil
	}
	v.log.Warn("quality gate exhausted",
		zap.Int("attempts", out.Verification.Attempts),
		zap.Strings("issues", out.Verification.Issues))
	out.Verification.Exhausted = true
	out.Verification.Issues = append(out.Verification.Issues, quality.IssueExhausted)
	out.Final = ""
	return out, nil
}

// routeAfterVerify ends the run when the draft passed or the retry budget
// is spent, and otherwise sends it back to the researcher.
func routeAfterVerify(s types.State) string {
	if s.Verification.Passed() || s.Verification.Exhausted {
		return End
	}
	return NodeResearcher
}
