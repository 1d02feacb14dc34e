// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the agentlens pipeline:
// the state accumulator threaded through the research graph, the documents
// and citations it collects, and the scoring records produced by the quality
// gate and the drift scorer.
package types

import "unicode/utf8"

// MaxDocuments is the upper bound on documents kept by one researcher pass.
const MaxDocuments = 6

// snippetChars is the number of content characters used when a source
// supplies no snippet of its own.
const snippetChars = 200

// State is the accumulator threaded through the pipeline nodes. Each node
// receives the current value and returns a replacement with its own fields
// overwritten; fields a node does not own pass through unchanged.
type State struct {
	// Question is the user question. Set once when the run starts.
	Question string `json:"question" yaml:"question"`

	// Plan is the human-readable plan written by the supervisor.
	Plan string `json:"plan" yaml:"plan"`

	// Queries are the search queries, in generation order. Reused on retry.
	Queries []string `json:"queries" yaml:"queries"`

	// Documents are the sources gathered by the latest researcher pass.
	Documents []Document `json:"documents" yaml:"documents"`

	// Notes accumulate across retries. Entries are only ever appended.
	Notes []string `json:"notes" yaml:"notes"`

	// Draft is the latest synthesized answer.
	Draft string `json:"draft" yaml:"draft"`

	// Citations are the (source: URL) markers found in Draft.
	Citations []Citation `json:"citations" yaml:"citations"`

	// Verification is the latest quality gate outcome.
	Verification Verification `json:"verification" yaml:"verification"`

	// Final is either empty or exactly the latest Draft.
	Final string `json:"final" yaml:"final"`
}

// NewState returns the initial accumulator for a run: the question set and
// every collection empty but non-nil.
func NewState(question string) State {
	return State{
		Question:  question,
		Queries:   []string{},
		Documents: []Document{},
		Notes:     []string{},
		Citations: []Citation{},
		Verification: Verification{
			Issues: []string{},
		},
	}
}

// Clone returns a deep copy of s so that the returned value never shares
// backing arrays with the receiver.
func (s State) Clone() State {
	out := s
	out.Queries = append([]string{}, s.Queries...)
	out.Documents = append([]Document{}, s.Documents...)
	out.Notes = append([]string{}, s.Notes...)
	out.Citations = append([]Citation{}, s.Citations...)
	out.Verification.Issues = append([]string{}, s.Verification.Issues...)
	return out
}

// WithNote returns a clone of s with note appended to Notes.
func (s State) WithNote(note string) State {
	out := s.Clone()
	out.Notes = append(out.Notes, note)
	return out
}

// LatestNote returns the most recent note, or "" when there are none.
func (s State) LatestNote() string {
	if len(s.Notes) == 0 {
		return ""
	}
	return s.Notes[len(s.Notes)-1]
}

// Map renders the state as a keyed mapping using the JSON field names.
// The trace adapter uses it to publish node outputs.
func (s State) Map() map[string]any {
	docs := make([]any, 0, len(s.Documents))
	for _, d := range s.Documents {
		docs = append(docs, map[string]any{
			"title":   d.Title,
			"url":     d.URL,
			"snippet": d.Snippet,
			"content": d.Content,
		})
	}
	cites := make([]any, 0, len(s.Citations))
	for _, c := range s.Citations {
		cites = append(cites, map[string]any{"url": c.URL, "used_in": c.UsedIn})
	}
	return map[string]any{
		"question":     s.Question,
		"plan":         s.Plan,
		"queries":      stringsToAny(s.Queries),
		"documents":    docs,
		"notes":        stringsToAny(s.Notes),
		"draft":        s.Draft,
		"citations":    cites,
		"verification": s.Verification.Map(),
		"final":        s.Final,
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}

// Document is a retrieved web source with usable page content.
type Document struct {
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Snippet string `json:"snippet" yaml:"snippet"`
	Content string `json:"content" yaml:"content"`
}

// NewDocument builds a Document. It reports false when url or content is
// empty, since such a record is unusable downstream. An empty snippet
// defaults to the first 200 characters of content.
func NewDocument(title, url, snippet, content string) (Document, bool) {
	if url == "" || content == "" {
		return Document{}, false
	}
	if title == "" {
		title = "untitled"
	}
	if snippet == "" {
		snippet = truncateRunes(content, snippetChars)
	}
	return Document{Title: title, URL: url, Snippet: snippet, Content: content}, true
}

// truncateRunes returns at most n characters of s without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// TruncateRunes is the exported form of truncateRunes for packages that
// bound text by character count (fetcher, prompts).
func TruncateRunes(s string, n int) string { return truncateRunes(s, n) }

// Citation records a URL cited in the draft with a (source: URL) marker.
type Citation struct {
	URL    string `json:"url" yaml:"url"`
	UsedIn string `json:"used_in" yaml:"used_in"`
}

// Verification is the quality gate outcome for the latest draft.
type Verification struct {
	// CoverageScore is min(1, citations/4).
	CoverageScore float64 `json:"coverage_score" yaml:"coverage_score"`

	// Issues lists the failed checks. Empty means the draft was accepted.
	Issues []string `json:"issues" yaml:"issues"`

	// Attempts counts verifier passes in this run.
	Attempts int `json:"attempts" yaml:"attempts"`

	// Exhausted is set when the run stopped because the retry budget ran
	// out rather than because the draft passed.
	Exhausted bool `json:"exhausted" yaml:"exhausted"`
}

// Passed reports whether the verifier found no issues.
func (v Verification) Passed() bool { return len(v.Issues) == 0 }

// Map renders the verification with JSON field names.
func (v Verification) Map() map[string]any {
	return map[string]any{
		"coverage_score": v.CoverageScore,
		"issues":         stringsToAny(v.Issues),
		"attempts":       v.Attempts,
		"exhausted":      v.Exhausted,
	}
}

// RunResult is the outcome of a blocking run.
type RunResult struct {
	RunID      string `json:"run_id" yaml:"run_id"`
	FinalState State  `json:"final_state" yaml:"final_state"`
}
