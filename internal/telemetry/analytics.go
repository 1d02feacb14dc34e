// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package telemetry

import (
	"context"
	"fmt"

	"github.com/pdiddy/agentlens/internal/events"
	"github.com/pdiddy/agentlens/internal/pipeline"
	"github.com/pdiddy/agentlens/internal/trace"
)

// CostPerMillionTokens is the coarse USD rate used for cost estimates.
const CostPerMillionTokens = 0.15

// AnalyticsResult summarizes the cost and latency of one run.
type AnalyticsResult struct {
	RunID              string             `json:"run_id" yaml:"run_id"`
	AvgLatencyMs       map[string]float64 `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	TotalTokens        int                `json:"total_tokens" yaml:"total_tokens"`
	EstCostUSD         float64            `json:"est_cost_usd" yaml:"est_cost_usd"`
	ModelCalls         int                `json:"model_calls" yaml:"model_calls"`
	ResearcherAttempts int                `json:"researcher_attempts" yaml:"researcher_attempts"`
	Events             int                `json:"events" yaml:"events"`
	Error              string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// Analytics computes the summary for a stored run. Like Trace it reports
// problems in Error instead of failing.
func (s *Store) Analytics(ctx context.Context, runID string) AnalyticsResult {
	recs, err := s.Records(ctx, runID)
	if err != nil {
		s.log.Sugar().Warnw("analytics lookup failed", "run_id", runID, "error", err)
		return AnalyticsResult{RunID: runID, AvgLatencyMs: map[string]float64{}, Error: fmt.Sprintf("Error computing analytics: %v", err)}
	}
	res := Analyze(recs)
	res.RunID = runID
	if len(recs) == 0 {
		res.Error = NoRunsMessage
	}
	return res
}

// Analyze summarizes a run from its records. Node latency averages every
// completed pass of the node; tokens are summed over model completions.
func Analyze(recs []events.Record) AnalyticsResult {
	res := AnalyticsResult{AvgLatencyMs: map[string]float64{}, Events: len(recs)}
	if len(recs) > 0 {
		res.RunID = recs[0].RunID
	}

	for _, rec := range recs {
		switch {
		case rec.Event == trace.ChainStart && rec.Name == pipeline.NodeResearcher && rec.Node() == rec.Name:
			res.ResearcherAttempts++
		case rec.Event == trace.ChatModelEnd:
			res.ModelCalls++
			res.TotalTokens += tokens(rec.DataMap())
		}
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, sr := range Spans(recs) {
		if sr.RunType != "chain" || sr.Node == "" || sr.Node != sr.Name || sr.Status == StatusRunning {
			continue
		}
		sums[sr.Node] += sr.LatencyMs
		counts[sr.Node]++
	}
	for node, sum := range sums {
		res.AvgLatencyMs[node] = sum / float64(counts[node])
	}

	res.EstCostUSD = float64(res.TotalTokens) / 1_000_000 * CostPerMillionTokens
	return res
}

// tokens reads the total token count of a model completion. It accepts
// usage_metadata under output or at the top level, then falls back to a
// token_usage mapping with prompt and completion counts.
func tokens(data map[string]any) int {
	output, _ := data["output"].(map[string]any)
	for _, src := range []map[string]any{output, data} {
		if usage, ok := src["usage_metadata"].(map[string]any); ok {
			if n := number(usage["total_tokens"]); n > 0 {
				return n
			}
			return number(usage["input_tokens"]) + number(usage["output_tokens"])
		}
	}
	for _, src := range []map[string]any{output, data} {
		meta, _ := src["response_metadata"].(map[string]any)
		if usage, ok := meta["token_usage"].(map[string]any); ok {
			if n := number(usage["total_tokens"]); n > 0 {
				return n
			}
			return number(usage["prompt_tokens"]) + number(usage["completion_tokens"])
		}
	}
	return 0
}

// number converts a decoded JSON number to int. Other values yield zero.
func number(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}
