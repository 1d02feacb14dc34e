// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/agentlens/internal/events"
)

// NoRunsMessage is reported when a lookup id matches no stored trace.
const NoRunsMessage = "No runs found. Make sure tracing is enabled and the run_id is correct."

// Sub-run status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusRunning = "running"
)

// SubRun is one span of a trace: the whole run, a node, a tool call or a
// model call, paired from its start and end records.
type SubRun struct {
	ID          string         `json:"id" yaml:"id"`
	TraceID     string         `json:"trace_id" yaml:"trace_id"`
	ParentRunID string         `json:"parent_run_id,omitempty" yaml:"parent_run_id,omitempty"`
	Name        string         `json:"name" yaml:"name"`
	RunType     string         `json:"run_type" yaml:"run_type"`
	Node        string         `json:"node,omitempty" yaml:"node,omitempty"`
	Status      string         `json:"status" yaml:"status"`
	StartTime   float64        `json:"start_time" yaml:"start_time"`
	EndTime     float64        `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	LatencyMs   float64        `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
	Inputs      any            `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs     any            `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
	Extra       map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// TraceResult is the answer to a trace lookup. Error is set instead of an
// error return when nothing could be found.
type TraceResult struct {
	RunID   string   `json:"run_id" yaml:"run_id"`
	TraceID string   `json:"trace_id,omitempty" yaml:"trace_id,omitempty"`
	Runs    []SubRun `json:"runs" yaml:"runs"`
	Error   string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Trace looks up the trace for id. The id may be a run id or the id of one
// of its sub-runs. Trace never fails; problems are reported in Error.
func (s *Store) Trace(ctx context.Context, id string) TraceResult {
	res := TraceResult{RunID: id, Runs: []SubRun{}}

	recs, err := s.Records(ctx, id)
	if err == nil && len(recs) == 0 {
		if traceID, _, ok := strings.Cut(id, ":"); ok {
			recs, err = s.Records(ctx, traceID)
		}
	}
	if err != nil {
		s.log.Sugar().Warnw("trace lookup failed", "id", id, "error", err)
		res.Error = fmt.Sprintf("Error fetching trace: %v", err)
		return res
	}
	if len(recs) == 0 {
		res.Error = NoRunsMessage
		return res
	}

	res.TraceID = recs[0].RunID
	res.Runs = Spans(recs)
	return res
}

// Spans pairs start and end records into sub-runs, ordered by start. An end
// closes the most recent open span of the same kind and name. Spans left
// open are reported as running.
func Spans(recs []events.Record) []SubRun {
	var (
		runs  []SubRun
		stack []int
	)
	for _, rec := range recs {
		kind, phase := splitEvent(rec.Event)
		if kind == "" {
			continue
		}
		data := rec.DataMap()

		if phase == "start" {
			sr := SubRun{
				ID:        fmt.Sprintf("%s:%d", rec.RunID, rec.StepIndex),
				TraceID:   rec.RunID,
				Name:      rec.Name,
				RunType:   kind,
				Node:      rec.Node(),
				Status:    StatusRunning,
				StartTime: rec.TS,
				Inputs:    data["input"],
			}
			if len(stack) > 0 {
				sr.ParentRunID = runs[stack[len(stack)-1]].ID
			}
			if m, ok := rec.Metadata.(map[string]any); ok && len(m) > 0 {
				sr.Extra = map[string]any{"metadata": m}
			}
			runs = append(runs, sr)
			stack = append(stack, len(runs)-1)
			continue
		}

		for i := len(stack) - 1; i >= 0; i-- {
			sr := &runs[stack[i]]
			if sr.RunType != kind || sr.Name != rec.Name {
				continue
			}
			sr.EndTime = rec.TS
			sr.LatencyMs = (rec.TS - sr.StartTime) * 1000
			sr.Outputs = data["output"]
			sr.Status = StatusSuccess
			if msg, ok := data["error"].(string); ok && msg != "" {
				sr.Error = msg
				sr.Status = StatusError
			}
			stack = append(stack[:i], stack[i+1:]...)
			break
		}
	}
	if runs == nil {
		runs = []SubRun{}
	}
	return runs
}

// splitEvent maps an event name such as "on_tool_end" to its span kind and
// phase. Unknown events yield an empty kind.
func splitEvent(event string) (kind, phase string) {
	rest, ok := strings.CutPrefix(event, "on_")
	if !ok {
		return "", ""
	}
	i := strings.LastIndex(rest, "_")
	if i < 0 {
		return "", ""
	}
	phase = rest[i+1:]
	if phase != "start" && phase != "end" {
		return "", ""
	}
	switch rest[:i] {
	case "chain":
		return "chain", phase
	case "tool":
		return "tool", phase
	case "chat_model":
		return "llm", phase
	}
	return "", ""
}
