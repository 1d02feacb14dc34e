// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package events turns the trace of a pipeline run into an ordered stream of
// JSON-safe records for streaming clients and record sinks.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/trace"
	"github.com/pdiddy/agentlens/pkg/types"
)

// ErrDisconnected wraps the send error that ended a stream.
var ErrDisconnected = errors.New("stream consumer disconnected")

// Record is one emitted trace record.
type Record struct {
	RunID         string         `json:"run_id" yaml:"run_id"`
	Event         string         `json:"event" yaml:"event"`
	Name          string         `json:"name" yaml:"name"`
	Data          any            `json:"data" yaml:"data"`
	Metadata      any            `json:"metadata" yaml:"metadata"`
	TS            float64        `json:"ts" yaml:"ts"`
	StepIndex     int            `json:"step_index" yaml:"step_index"`
	StateSnapshot map[string]any `json:"state_snapshot,omitempty" yaml:"state_snapshot,omitempty"`
}

// Node returns the pipeline node named in the record metadata, or "".
func (r Record) Node() string {
	if m, ok := r.Metadata.(map[string]any); ok {
		if s, ok := m[trace.MetaNode].(string); ok {
			return s
		}
	}
	return ""
}

// DataMap returns the record data when it is a mapping, or nil.
func (r Record) DataMap() map[string]any {
	m, _ := r.Data.(map[string]any)
	return m
}

// Sink receives every record of every run, in order.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec Record) error

// Record calls f(ctx, rec).
func (f SinkFunc) Record(ctx context.Context, rec Record) error { return f(ctx, rec) }

// Runner executes one pipeline run, emitting trace events through ctx.
type Runner interface {
	Run(ctx context.Context, question string) (types.RunResult, error)
}

// Emitter runs the pipeline and converts its trace events into records.
type Emitter struct {
	runner Runner
	sinks  []Sink
	log    *zap.Logger
	now    func() time.Time
}

// NewEmitter returns an Emitter for runner that fans records out to sinks.
func NewEmitter(runner Runner, log *zap.Logger, sinks ...Sink) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{runner: runner, sinks: sinks, log: log, now: time.Now}
}

// Run executes a blocking run. Records go to the sinks only.
func (e *Emitter) Run(ctx context.Context, question string) (types.RunResult, error) {
	return e.Stream(ctx, question, nil)
}

// Stream executes a run and calls send with each record in emission order,
// step indexes counting from zero. A send error cancels the run; Stream then
// returns an error wrapping ErrDisconnected. Sink errors are logged and
// otherwise ignored.
func (e *Emitter) Stream(ctx context.Context, question string, send func(Record) error) (types.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		step    int
		sendErr error
	)
	sinkCtx := context.WithoutCancel(ctx)
	obs := trace.FuncObserver(func(ev trace.Event) {
		mu.Lock()
		defer mu.Unlock()

		rec := e.record(ev, step)
		step++
		for _, s := range e.sinks {
			if err := s.Record(sinkCtx, rec); err != nil {
				e.log.Warn("record sink failed", zap.String("run_id", rec.RunID), zap.Error(err))
			}
		}
		if send == nil || sendErr != nil {
			return
		}
		if err := send(rec); err != nil {
			sendErr = err
			e.log.Info("stream consumer gone, cancelling run", zap.String("run_id", rec.RunID), zap.Error(err))
			cancel()
		}
	})

	res, err := e.runner.Run(trace.WithObserver(ctx, obs), question)

	mu.Lock()
	defer mu.Unlock()
	if sendErr != nil {
		return res, fmt.Errorf("%w: %w", ErrDisconnected, sendErr)
	}
	return res, err
}

// record reduces ev into a Record. Node completion events also carry a
// snapshot of the node's output state.
func (e *Emitter) record(ev trace.Event, step int) Record {
	ts := ev.Time
	if ts.IsZero() {
		ts = e.now()
	}
	rec := Record{
		RunID:     ev.RunID,
		Event:     ev.Kind,
		Name:      ev.Name,
		Data:      Reduce(ev.Data),
		Metadata:  Reduce(ev.Metadata),
		TS:        float64(ts.UnixNano()) / 1e9,
		StepIndex: step,
	}
	if ev.Kind == trace.ChainEnd && ev.Node() != "" {
		rec.StateSnapshot = Snapshot(rec.DataMap())
	}
	return rec
}

// Snapshot extracts a node's output state from reduced event data with
// pipeline-internal keys removed. It returns nil when nothing remains.
func Snapshot(data map[string]any) map[string]any {
	out, ok := data["output"].(map[string]any)
	if !ok {
		return nil
	}
	clean := make(map[string]any, len(out))
	for k, v := range out {
		if k == "END" || k == "__end__" || strings.HasPrefix(k, "__") {
			continue
		}
		clean[k] = v
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}
