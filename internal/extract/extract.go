// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns retrieved documents into cited research notes.
// Extraction never fails a run: every problem is recorded as a note so the
// drafter and the trace can see what went wrong.
package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/llm"
	"github.com/pdiddy/agentlens/pkg/types"
)

// NoDocumentsNote is appended when retrieval produced no usable documents.
const NoDocumentsNote = "No documents retrieved from web search. Please try a different question or check search tool configuration."

// errorNotePrefix starts the note recorded for a failed extraction.
const errorNotePrefix = "Error extracting notes: "

// Extractor asks a model for bullet facts over the current documents.
type Extractor struct {
	model llm.Model
	log   *zap.Logger
}

// New returns an Extractor backed by model.
func New(model llm.Model, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{model: model, log: log}
}

// Extract returns a copy of s with one note appended: the model's bullet
// facts, the fixed no-documents note, or an error note. Earlier notes are
// kept.
func (e *Extractor) Extract(ctx context.Context, s types.State) types.State {
	out := s.Clone()
	if len(out.Documents) == 0 {
		return out.WithNote(NoDocumentsNote)
	}

	notes, err := e.notes(ctx, out.Question, out.Documents)
	if err != nil {
		e.log.Warn("note extraction failed", zap.Int("documents", len(out.Documents)), zap.Error(err))
		return out.WithNote(errorNotePrefix + err.Error())
	}
	e.log.Debug("notes extracted", zap.Int("documents", len(out.Documents)), zap.Int("chars", len(notes)))
	return out.WithNote(notes)
}

func (e *Extractor) notes(ctx context.Context, question string, docs []types.Document) (string, error) {
	if e.model == nil {
		return "", llm.ErrMissingCredentials
	}
	prompt, err := renderPrompt(question, docs)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	c, err := e.model.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}
