// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the research graph: supervisor, researcher,
// synthesizer and verifier, with the verifier sending inadequate drafts back
// to the researcher until they pass or the retry budget is spent.
package pipeline

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/trace"
	"github.com/pdiddy/agentlens/pkg/types"
)

// NextKey carries the routing decision in a node's end-of-node output. It
// is internal to the pipeline and stripped from state snapshots.
const NextKey = "__next"

// Deps are the collaborators of the research graph.
type Deps struct {
	Retriever Retriever
	Extractor NoteExtractor
	Drafter   Drafter

	// MaxRetries bounds verifier to researcher retries. Negative means none.
	MaxRetries int

	Log *zap.Logger
}

// NewResearchGraph wires the four research nodes. Retriever, Extractor and
// Drafter are required.
func NewResearchGraph(d Deps) *Graph {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := &researcher{retriever: d.Retriever, extractor: d.Extractor, log: log}
	v := &verifier{maxRetries: max(d.MaxRetries, 0), log: log}

	g := NewGraph()
	g.AddNode(NodeSupervisor, "Plans the research steps", Supervise)
	g.AddNode(NodeResearcher, "Searches the web and extracts notes", r.run)
	g.AddNode(NodeSynthesizer, "Drafts a cited answer from the latest notes", d.Drafter.Draft)
	g.AddNode(NodeVerifier, "Checks citations and depth", v.run)

	g.SetEntryPoint(NodeSupervisor)
	g.AddEdge(NodeSupervisor, NodeResearcher)
	g.AddEdge(NodeResearcher, NodeSynthesizer)
	g.AddEdge(NodeSynthesizer, NodeVerifier)
	g.AddConditionalEdge(NodeVerifier, routeAfterVerify, map[string]string{
		NodeResearcher: RetryLabel,
		End:            "",
	})
	return g
}

// Runner executes a graph for one question at a time per call. Calls may
// run concurrently; each owns its state.
type Runner struct {
	graph   *Graph
	timeout time.Duration
	log     *zap.Logger
}

// NewRunner returns a Runner for g. A positive timeout bounds each run.
func NewRunner(g *Graph, timeout time.Duration, log *zap.Logger) (*Runner, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{graph: g, timeout: timeout, log: log}, nil
}

// Graph returns the graph the runner executes.
func (r *Runner) Graph() *Graph { return r.graph }

// NewRunID returns a time-ordered run id.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Run executes the graph for question and returns the state at End. The
// run id is taken from ctx when set (see trace.WithRunID), otherwise a new
// one is created. Trace events go to the observer carried by ctx.
func (r *Runner) Run(ctx context.Context, question string) (types.RunResult, error) {
	runID := trace.RunID(ctx)
	if runID == "" {
		runID = NewRunID()
		ctx = trace.WithRunID(ctx, runID)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	log := r.log.With(zap.String("run_id", runID))
	state := types.NewState(question)
	result := types.RunResult{RunID: runID, FinalState: state}

	trace.Emit(ctx, trace.Event{
		Kind: trace.ChainStart,
		Name: trace.GraphName,
		Data: map[string]any{"input": trace.Mapping(state.Map())},
	})

	state, err := r.walk(ctx, log, state)
	result.FinalState = state

	end := trace.Event{Kind: trace.ChainEnd, Name: trace.GraphName, Data: map[string]any{}}
	if err != nil {
		end.Data["error"] = err.Error()
		trace.Emit(ctx, end)
		log.Error("run failed", zap.Error(err))
		return result, err
	}
	end.Data["output"] = trace.Mapping(state.Map())
	trace.Emit(ctx, end)
	log.Info("run complete",
		zap.Int("verifier_attempts", state.Verification.Attempts),
		zap.Bool("exhausted", state.Verification.Exhausted))
	return result, nil
}

// walk runs nodes from the entry point until a route reaches End.
func (r *Runner) walk(ctx context.Context, log *zap.Logger, state types.State) (types.State, error) {
	visits := make(map[string]int)
	current := r.graph.entry
	for step := 0; current != End; step++ {
		if err := ctx.Err(); err != nil {
			return state, fmt.Errorf("before %s: %w", current, err)
		}
		n := r.graph.nodes[current]
		visits[current]++

		meta := map[string]any{
			trace.MetaNode:    current,
			trace.MetaStep:    step,
			trace.MetaAttempt: visits[current],
		}
		trace.Emit(ctx, trace.Event{
			Kind:     trace.ChainStart,
			Name:     current,
			Data:     map[string]any{"input": trace.Mapping(state.Map())},
			Metadata: meta,
		})

		start := time.Now()
		out, err := n.run(trace.WithNode(ctx, current), state)
		if err != nil {
			trace.Emit(ctx, trace.Event{
				Kind:     trace.ChainEnd,
				Name:     current,
				Data:     map[string]any{"error": err.Error()},
				Metadata: maps.Clone(meta),
			})
			return state, fmt.Errorf("node %s: %w", current, err)
		}

		next, err := r.graph.next(current, out)
		if err != nil {
			return out, err
		}

		output := out.Map()
		output[NextKey] = next
		trace.Emit(ctx, trace.Event{
			Kind:     trace.ChainEnd,
			Name:     current,
			Data:     map[string]any{"output": output, "latency_ms": time.Since(start).Milliseconds()},
			Metadata: maps.Clone(meta),
		})
		log.Debug("node complete",
			zap.String("node", current),
			zap.Int("visit", visits[current]),
			zap.String("next", next),
			zap.Duration("elapsed", time.Since(start)))

		state = out
		current = next
	}
	return state, nil
}
