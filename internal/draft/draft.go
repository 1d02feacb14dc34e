// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package draft synthesizes an answer from the latest research notes and
// collects the sources the answer cites.
package draft

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/llm"
	"github.com/pdiddy/agentlens/pkg/types"
)

// UsedInDraft tags citations found in the draft text.
const UsedInDraft = "draft"

// citationPattern matches inline citation markers: (source: URL). Only
// http and https URLs count.
var citationPattern = regexp.MustCompile(`\(source:\s*(https?://[^\s\)]+)\)`)

// ErrDraft wraps every drafting failure. Drafting has no degraded mode, so
// callers abort the run on it.
var ErrDraft = errors.New("drafting failed")

// Drafter writes the answer draft.
type Drafter struct {
	model llm.Model
	log   *zap.Logger
}

// New returns a Drafter backed by model.
func New(model llm.Model, log *zap.Logger) *Drafter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Drafter{model: model, log: log}
}

// Draft returns a copy of s with Draft and Citations replaced. Only the most
// recent note is shown to the model. Any model failure, including missing
// credentials, is returned as an error.
func (d *Drafter) Draft(ctx context.Context, s types.State) (types.State, error) {
	if d.model == nil {
		return s, fmt.Errorf("%w: %w", ErrDraft, llm.ErrMissingCredentials)
	}
	prompt, err := renderPrompt(s.Question, s.LatestNote())
	if err != nil {
		return s, fmt.Errorf("%w: rendering prompt: %w", ErrDraft, err)
	}

	c, err := d.model.Complete(ctx, prompt)
	if err != nil {
		d.log.Error("draft failed", zap.Error(err))
		return s, fmt.Errorf("%w: %w", ErrDraft, err)
	}

	out := s.Clone()
	out.Draft = c.Text
	out.Citations = ExtractCitations(c.Text)
	d.log.Debug("draft written", zap.Int("chars", len(c.Text)), zap.Int("citations", len(out.Citations)))
	return out, nil
}

// ExtractCitations returns one citation per (source: URL) marker in text, in
// order of appearance. Repeated URLs are kept.
func ExtractCitations(text string) []types.Citation {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	cites := make([]types.Citation, 0, len(matches))
	for _, m := range matches {
		cites = append(cites, types.Citation{URL: m[1], UsedIn: UsedInDraft})
	}
	return cites
}
