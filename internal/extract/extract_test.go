// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/agentlens/internal/llm"
	"github.com/pdiddy/agentlens/pkg/types"
)

// --- mock model ---

type mockModel struct {
	text    string
	err     error
	prompts []string
}

func (m *mockModel) Complete(_ context.Context, prompt string) (llm.Completion, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return llm.Completion{}, m.err
	}
	return llm.Completion{Text: m.text}, nil
}

func stateWithDocs() types.State {
	s := types.NewState("what is go")
	s.Notes = []string{"earlier note"}
	s.Documents = []types.Document{
		{Title: "Go", URL: "https://go.dev", Content: "Go is a language."},
		{Title: "Tour", URL: "https://go.dev/tour", Content: "A tour of Go."},
	}
	return s
}

func TestExtractAppendsNotes(t *testing.T) {
	m := &mockModel{text: "- Go is a language (source: https://go.dev)"}
	in := stateWithDocs()

	out := New(m, nil).Extract(context.Background(), in)

	assert.Equal(t, []string{"earlier note", "- Go is a language (source: https://go.dev)"}, out.Notes)
	assert.Equal(t, []string{"earlier note"}, in.Notes, "input state must not be mutated")
	require.Len(t, m.prompts, 1)
}

func TestExtractPrompt(t *testing.T) {
	m := &mockModel{text: "ok"}
	New(m, nil).Extract(context.Background(), stateWithDocs())

	p := m.prompts[0]
	assert.Contains(t, p, "Question: what is go")
	assert.Contains(t, p, "5-10 bullet facts")
	assert.Contains(t, p, "(source: URL)")
	assert.Contains(t, p, "TITLE: Go\nURL: https://go.dev\nCONTENT:\nGo is a language.")
	assert.Contains(t, p, "A tour of Go.\n")
	assert.Equal(t, 1, strings.Count(p, "TITLE: Tour"))
}

func TestExtractNoDocuments(t *testing.T) {
	m := &mockModel{text: "unused"}
	in := types.NewState("q")
	in.Notes = []string{"first"}

	out := New(m, nil).Extract(context.Background(), in)

	assert.Empty(t, m.prompts, "no model call without documents")
	assert.Equal(t, []string{"first", NoDocumentsNote}, out.Notes)
}

func TestExtractModelErrorBecomesNote(t *testing.T) {
	tests := []struct {
		name  string
		model llm.Model
		want  string
	}{
		{"api error", &mockModel{err: errors.New("rate limited")}, "Error extracting notes: rate limited"},
		{"missing credentials", &mockModel{err: llm.ErrMissingCredentials}, "Error extracting notes: " + llm.ErrMissingCredentials.Error()},
		{"no model", nil, "Error extracting notes: " + llm.ErrMissingCredentials.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := New(tt.model, nil).Extract(context.Background(), stateWithDocs())
			require.Len(t, out.Notes, 2)
			assert.Equal(t, tt.want, out.Notes[1])
			assert.Len(t, out.Documents, 2, "documents survive a failed extraction")
		})
	}
}

func TestNotesNeverShrink(t *testing.T) {
	e := New(&mockModel{text: "facts"}, nil)
	s := stateWithDocs()
	prev := len(s.Notes)
	for i := 0; i < 4; i++ {
		if i%2 == 1 {
			s.Documents = nil
		} else {
			s.Documents = stateWithDocs().Documents
		}
		s = e.Extract(context.Background(), s)
		assert.Equal(t, prev+1, len(s.Notes))
		prev = len(s.Notes)
	}
}
