// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the chat model used by the note extractor and the
// drafter. Implementations return the response text together with token
// usage so the trace can report cost.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/agentlens/internal/trace"
)

// ErrMissingCredentials is returned when no API key is configured.
var ErrMissingCredentials = errors.New("model API key is not configured")

// Usage is the token accounting for one request.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Completion is a model response.
type Completion struct {
	Text  string
	Usage Usage
}

// Model issues a single prompt and returns the response.
type Model interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, prompt string) (Completion, error)

// Complete calls f(ctx, prompt).
func (f ModelFunc) Complete(ctx context.Context, prompt string) (Completion, error) {
	return f(ctx, prompt)
}

// traced emits chat-model events around every call of the wrapped model.
type traced struct {
	model Model
	name  string
}

// Traced wraps m so each call emits on_chat_model_start and
// on_chat_model_end events named name.
func Traced(m Model, name string) Model {
	return &traced{model: m, name: name}
}

func (t *traced) Complete(ctx context.Context, prompt string) (Completion, error) {
	trace.Emit(ctx, trace.Event{
		Kind: trace.ChatModelStart,
		Name: t.name,
		Data: map[string]any{"input": trace.Message{Text: prompt}},
	})
	start := time.Now()
	c, err := t.model.Complete(ctx, prompt)
	data := map[string]any{"latency_ms": time.Since(start).Milliseconds()}
	if err != nil {
		data["error"] = err.Error()
	} else {
		usage := trace.Usage(c.Usage)
		data["output"] = trace.Message{Text: c.Text, Usage: &usage}
	}
	trace.Emit(ctx, trace.Event{Kind: trace.ChatModelEnd, Name: t.name, Data: data})
	if err != nil {
		return Completion{}, fmt.Errorf("%s: %w", t.name, err)
	}
	return c, nil
}
