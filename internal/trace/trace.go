// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trace defines the execution-trace events produced while a run
// executes and the context plumbing that carries them to an observer.
//
// Event payloads are drawn from a closed set of shapes (Usage, Message,
// Mapping, Opaque, plus plain Go values), so consumers pattern-match
// variants instead of inspecting arbitrary objects.
package trace

import (
	"context"
	"fmt"
	"time"
)

// Event kinds emitted by the pipeline.
const (
	ChainStart     = "on_chain_start"
	ChainEnd       = "on_chain_end"
	ToolStart      = "on_tool_start"
	ToolEnd        = "on_tool_end"
	ChatModelStart = "on_chat_model_start"
	ChatModelEnd   = "on_chat_model_end"
)

// Metadata keys attached to events.
const (
	MetaNode    = "node"
	MetaStep    = "step"
	MetaAttempt = "attempt"
)

// GraphName names the root chain that spans a whole run.
const GraphName = "research_graph"

// Event is one step of an execution trace.
type Event struct {
	Kind     string
	Name     string
	RunID    string
	Data     map[string]any
	Metadata map[string]any
	Time     time.Time
}

// Node returns the node id recorded in the event metadata, or "".
func (e Event) Node() string {
	if s, ok := e.Metadata[MetaNode].(string); ok {
		return s
	}
	return ""
}

// Usage is model token-usage metadata.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Map renders the usage with the keys trace consumers expect.
func (u Usage) Map() map[string]any {
	return map[string]any{
		"input_tokens":  u.InputTokens,
		"output_tokens": u.OutputTokens,
		"total_tokens":  u.TotalTokens,
	}
}

// Message is a model response. Text holds plain content; Parts holds
// structured content when the response is not a single string.
type Message struct {
	Text  string
	Parts []any
	Usage *Usage
}

// Mapping is a generic keyed payload built from a value's visible fields,
// for example the run's input and output state. Keys starting with an
// underscore are treated as internal by consumers.
type Mapping map[string]any

// Opaque wraps a value of a shape the trace model does not know. Consumers
// render it as text.
type Opaque struct {
	Value any
}

// String renders the wrapped value.
func (o Opaque) String() string {
	return fmt.Sprint(o.Value)
}

// Observer receives trace events in emission order.
type Observer interface {
	Observe(Event)
}

// FuncObserver adapts a function to the Observer interface.
type FuncObserver func(Event)

// Observe calls f(e).
func (f FuncObserver) Observe(e Event) { f(e) }

type observerKey struct{}
type runIDKey struct{}

// WithObserver returns a context that delivers events emitted under it to obs.
func WithObserver(ctx context.Context, obs Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, obs)
}

// WithRunID returns a context that stamps emitted events with runID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run id carried by ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Emit delivers e to the observer carried by ctx. Without an observer it is
// a no-op. The run id and timestamp are filled in when unset.
func Emit(ctx context.Context, e Event) {
	obs, ok := ctx.Value(observerKey{}).(Observer)
	if !ok || obs == nil {
		return
	}
	if e.RunID == "" {
		e.RunID = RunID(ctx)
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	if node := NodeFrom(ctx); node != "" {
		if _, set := e.Metadata[MetaNode]; !set && e.Kind != ChainStart && e.Kind != ChainEnd {
			e.Metadata[MetaNode] = node
		}
	}
	obs.Observe(e)
}

type nodeKey struct{}

// WithNode returns a context that attributes nested tool and model events
// to the given pipeline node.
func WithNode(ctx context.Context, node string) context.Context {
	return context.WithValue(ctx, nodeKey{}, node)
}

// NodeFrom returns the pipeline node carried by ctx, or "".
func NodeFrom(ctx context.Context) string {
	n, _ := ctx.Value(nodeKey{}).(string)
	return n
}
