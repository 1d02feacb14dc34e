// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/agentlens/internal/llm"
	"github.com/pdiddy/agentlens/internal/quality"
	"github.com/pdiddy/agentlens/internal/search"
	"github.com/pdiddy/agentlens/internal/trace"
	"github.com/pdiddy/agentlens/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- fakes ---

type fakeRetriever struct {
	docs    []types.Document
	raw     int
	queries [][]string
}

func (f *fakeRetriever) Retrieve(_ context.Context, queries []string) search.Retrieval {
	f.queries = append(f.queries, queries)
	return search.Retrieval{Queries: queries, Documents: f.docs, Provider: "fake", RawCount: f.raw}
}

type fakeExtractor struct{ calls int }

func (f *fakeExtractor) Extract(_ context.Context, s types.State) types.State {
	f.calls++
	return s.WithNote(fmt.Sprintf("note %d (source: https://a.example)", f.calls))
}

// scriptedDrafter returns drafts in order, repeating the last one.
type scriptedDrafter struct {
	drafts []string
	err    error
	calls  int
	notes  []string
}

func (d *scriptedDrafter) Draft(_ context.Context, s types.State) (types.State, error) {
	d.notes = append(d.notes, s.LatestNote())
	if d.err != nil {
		return s, d.err
	}
	i := min(d.calls, len(d.drafts)-1)
	d.calls++
	out := s.Clone()
	out.Draft = d.drafts[i]
	out.Citations = nil
	for n := strings.Count(out.Draft, "(source:"); n > 0; n-- {
		out.Citations = append(out.Citations, types.Citation{URL: "https://a.example", UsedIn: "draft"})
	}
	return out, nil
}

var goodDraft = strings.Repeat("Go is a compiled language. ", 10) +
	"(source: https://a.example) (source: https://b.example)"

const badDraft = "short"

func oneDoc() []types.Document {
	return []types.Document{{Title: "A", URL: "https://a.example", Snippet: "a", Content: "alpha"}}
}

func newRunner(t *testing.T, d Deps) *Runner {
	t.Helper()
	r, err := NewRunner(NewResearchGraph(d), 0, nil)
	require.NoError(t, err)
	return r
}

func recorder() (context.Context, *[]trace.Event) {
	var events []trace.Event
	ctx := trace.WithObserver(context.Background(), trace.FuncObserver(func(e trace.Event) {
		events = append(events, e)
	}))
	return ctx, &events
}

// --- runs ---

func TestRunPassesFirstTime(t *testing.T) {
	ret := &fakeRetriever{docs: oneDoc(), raw: 1}
	ext := &fakeExtractor{}
	dr := &scriptedDrafter{drafts: []string{goodDraft}}
	r := newRunner(t, Deps{Retriever: ret, Extractor: ext, Drafter: dr, MaxRetries: 2})

	res, err := r.Run(context.Background(), "What is Go?")
	require.NoError(t, err)

	s := res.FinalState
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, Plan, s.Plan)
	assert.Equal(t, []string{"What is Go?", "What is Go? overview", "What is Go? examples"}, s.Queries)
	assert.Equal(t, oneDoc(), s.Documents)
	assert.Equal(t, goodDraft, s.Final)
	assert.Empty(t, s.Verification.Issues)
	assert.Equal(t, 1, s.Verification.Attempts)
	assert.False(t, s.Verification.Exhausted)
}

func TestRunRetriesUntilPass(t *testing.T) {
	ret := &fakeRetriever{docs: oneDoc(), raw: 1}
	ext := &fakeExtractor{}
	dr := &scriptedDrafter{drafts: []string{badDraft, goodDraft}}
	r := newRunner(t, Deps{Retriever: ret, Extractor: ext, Drafter: dr, MaxRetries: 2})

	res, err := r.Run(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, ret.queries, 2)
	assert.Empty(t, cmp.Diff(ret.queries[0], ret.queries[1]), "retry reuses the first pass's queries")
	assert.Equal(t, []string{"note 1 (source: https://a.example)", "note 2 (source: https://a.example)"}, res.FinalState.Notes)
	assert.Equal(t, []string{"note 1 (source: https://a.example)", "note 2 (source: https://a.example)"}, dr.notes,
		"the drafter sees only the latest note")
	assert.Equal(t, goodDraft, res.FinalState.Final)
	assert.Equal(t, 2, res.FinalState.Verification.Attempts)
}

func TestRunExhaustsRetryBudget(t *testing.T) {
	ret := &fakeRetriever{docs: oneDoc(), raw: 1}
	dr := &scriptedDrafter{drafts: []string{badDraft}}
	r := newRunner(t, Deps{Retriever: ret, Extractor: &fakeExtractor{}, Drafter: dr, MaxRetries: 2})

	res, err := r.Run(context.Background(), "q")
	require.NoError(t, err)

	s := res.FinalState
	assert.Len(t, ret.queries, 3, "first pass plus two retries")
	assert.True(t, s.Verification.Exhausted)
	assert.Equal(t, []string{quality.IssueInsufficientCitations, quality.IssueTooShallow, quality.IssueExhausted}, s.Verification.Issues)
	assert.Equal(t, badDraft, s.Draft, "the latest draft is kept")
	assert.Empty(t, s.Final, "an exhausted run has no accepted answer")
	assert.Equal(t, 3, s.Verification.Attempts)
}

func TestRunNoRetries(t *testing.T) {
	ret := &fakeRetriever{docs: oneDoc(), raw: 1}
	r := newRunner(t, Deps{Retriever: ret, Extractor: &fakeExtractor{}, Drafter: &scriptedDrafter{drafts: []string{badDraft}}, MaxRetries: -1})

	res, err := r.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, ret.queries, 1)
	assert.True(t, res.FinalState.Verification.Exhausted)
}

func TestRunWithoutSearchResults(t *testing.T) {
	ret := &fakeRetriever{}
	ext := &fakeExtractor{}
	r := newRunner(t, Deps{Retriever: ret, Extractor: ext, Drafter: &scriptedDrafter{drafts: []string{goodDraft}}})

	res, err := r.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Zero(t, ext.calls, "no results means no extraction")
	assert.Empty(t, res.FinalState.Notes)
	assert.NotNil(t, res.FinalState.Documents)
}

func TestRunDraftFailureAborts(t *testing.T) {
	ctx, events := recorder()
	dr := &scriptedDrafter{err: fmt.Errorf("drafting failed: %w", llm.ErrMissingCredentials)}
	r := newRunner(t, Deps{Retriever: &fakeRetriever{docs: oneDoc(), raw: 1}, Extractor: &fakeExtractor{}, Drafter: dr})

	res, err := r.Run(ctx, "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrMissingCredentials)
	assert.Contains(t, err.Error(), "node synthesizer")
	assert.Empty(t, res.FinalState.Final)
	assert.Zero(t, res.FinalState.Verification.Attempts, "no node runs after the failure")

	last := (*events)[len(*events)-1]
	assert.Equal(t, trace.ChainEnd, last.Kind)
	assert.Equal(t, trace.GraphName, last.Name)
	assert.Contains(t, last.Data, "error")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRunner(t, Deps{Retriever: &fakeRetriever{}, Extractor: &fakeExtractor{}, Drafter: &scriptedDrafter{drafts: []string{goodDraft}}})

	_, err := r.Run(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunUsesContextRunID(t *testing.T) {
	r := newRunner(t, Deps{Retriever: &fakeRetriever{}, Extractor: &fakeExtractor{}, Drafter: &scriptedDrafter{drafts: []string{goodDraft}}})
	res, err := r.Run(trace.WithRunID(context.Background(), "run-1"), "q")
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
}

func TestFinalInvariant(t *testing.T) {
	for _, drafts := range [][]string{{goodDraft}, {badDraft, goodDraft}, {badDraft}} {
		r := newRunner(t, Deps{
			Retriever:  &fakeRetriever{docs: oneDoc(), raw: 1},
			Extractor:  &fakeExtractor{},
			Drafter:    &scriptedDrafter{drafts: drafts},
			MaxRetries: 1,
		})
		res, err := r.Run(context.Background(), "q")
		require.NoError(t, err)
		s := res.FinalState
		if s.Verification.Passed() {
			assert.Equal(t, s.Draft, s.Final)
		} else {
			assert.Empty(t, s.Final, "issues %v", s.Verification.Issues)
		}
	}
}

// --- trace events ---

func TestRunEmitsChainEvents(t *testing.T) {
	ctx, events := recorder()
	r := newRunner(t, Deps{
		Retriever: &fakeRetriever{docs: oneDoc(), raw: 1},
		Extractor: &fakeExtractor{},
		Drafter:   &scriptedDrafter{drafts: []string{goodDraft}},
	})

	res, err := r.Run(ctx, "q")
	require.NoError(t, err)

	var got []string
	for _, e := range *events {
		assert.Equal(t, res.RunID, e.RunID)
		got = append(got, e.Kind+":"+e.Name)
	}
	want := []string{
		"on_chain_start:research_graph",
		"on_chain_start:supervisor", "on_chain_end:supervisor",
		"on_chain_start:researcher", "on_chain_end:researcher",
		"on_chain_start:synthesizer", "on_chain_end:synthesizer",
		"on_chain_start:verifier", "on_chain_end:verifier",
		"on_chain_end:research_graph",
	}
	assert.Empty(t, cmp.Diff(want, got))

	verifierEnd := (*events)[8]
	assert.Equal(t, NodeVerifier, verifierEnd.Node())
	out, ok := verifierEnd.Data["output"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, End, out[NextKey])
	assert.Equal(t, goodDraft, out["final"])
}

// --- graph ---

func TestGraphValidate(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", "", Supervise)
	g.SetEntryPoint("a")
	g.AddEdge("a", "missing")
	assert.ErrorIs(t, g.Validate(), ErrUnknownNode)

	g = NewGraph()
	g.SetEntryPoint("nowhere")
	_, err := NewRunner(g, 0, nil)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestGraphUnknownRoute(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", "", Supervise)
	g.SetEntryPoint("a")
	g.AddConditionalEdge("a", func(types.State) string { return "elsewhere" }, map[string]string{End: ""})
	r, err := NewRunner(g, 0, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "q")
	assert.True(t, errors.Is(err, ErrUnknownNode))
}

func TestTopology(t *testing.T) {
	g := NewResearchGraph(Deps{Retriever: &fakeRetriever{}, Extractor: &fakeExtractor{}, Drafter: &scriptedDrafter{}})
	assert.Empty(t, cmp.Diff(DefaultTopology(), g.Topology()))
	assert.Empty(t, cmp.Diff(DefaultTopology(), SchemaFor(g)))
}

func TestSchemaForFallback(t *testing.T) {
	assert.Equal(t, DefaultTopology(), SchemaFor(nil))
	assert.Equal(t, DefaultTopology(), SchemaFor(NewGraph()))

	def := DefaultTopology()
	require.Len(t, def.Edges, 4)
	assert.Equal(t, TopologyEdge{Source: NodeVerifier, Target: NodeResearcher, Label: RetryLabel}, def.Edges[3])
}

func TestSupervise(t *testing.T) {
	a, err := Supervise(context.Background(), types.NewState("one"))
	require.NoError(t, err)
	b, err := Supervise(context.Background(), types.NewState("two"))
	require.NoError(t, err)
	assert.Equal(t, a.Plan, b.Plan)
	assert.Equal(t, 5, strings.Count(a.Plan, "\n"), "header plus five steps")
}
