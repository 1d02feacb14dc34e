// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package events

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/agentlens/internal/trace"
	"github.com/pdiddy/agentlens/pkg/types"
)

// --- reduction ---

type custom struct {
	A int
	b chan int
}

type panicky struct{}

func (panicky) String() string { panic("boom") }

type cyclic struct{ self *cyclic }

func TestReduceShapes(t *testing.T) {
	usage := trace.Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "x", "x"},
		{"int", 4, 4},
		{"float", 1.5, 1.5},
		{"nan", math.NaN(), "NaN"},
		{"inf", math.Inf(1), "+Inf"},
		{"usage", usage, map[string]any{"usage_metadata": usage.Map()}},
		{"message text", trace.Message{Text: "hi"}, "hi"},
		{"message with usage", trace.Message{Text: "hi", Usage: &usage}, map[string]any{"usage_metadata": usage.Map()}},
		{"message parts", trace.Message{Parts: []any{"a", map[string]any{"b": 1}}}, []any{"a", map[string]any{"b": 1}}},
		{"mapping filters private keys", trace.Mapping{
			"visible":        1,
			"_private":       2,
			"_type":          "ai",
			"usage_metadata": map[string]any{"total_tokens": 9},
		}, map[string]any{
			"visible":        1,
			"_type":          "ai",
			"usage_metadata": map[string]any{"total_tokens": 9},
		}},
		{"plain map keeps keys", map[string]any{"__next": "x", "n": []string{"a"}}, map[string]any{"__next": "x", "n": []any{"a"}}},
		{"opaque", trace.Opaque{Value: 42}, "42"},
		{"error", errors.New("bad"), "bad"},
		{"struct keeps exported fields", custom{A: 1}, map[string]any{"A": 1}},
		{"pointer", &custom{A: 2}, map[string]any{"A": 2}},
		{"named slice", []trace.Mapping{{"a": 1}}, []any{map[string]any{"a": 1}}},
		{"int keys", map[int]string{1: "a"}, map[string]any{"1": "a"}},
		{"bytes", []byte("raw"), "raw"},
		{"opaque map", trace.Opaque{Value: map[string]int{"n": 1}}, "map[n:1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(tt.in))
		})
	}
}

func TestReduceNeverPanics(t *testing.T) {
	c := &cyclic{}
	c.self = c
	deep := map[string]any{}
	cur := deep
	for i := 0; i < 100; i++ {
		next := map[string]any{}
		cur["k"] = next
		cur = next
	}
	self := map[string]any{}
	self["self"] = self
	list := map[string][]any{}
	list["l"] = []any{list}
	inputs := []any{
		self,
		trace.Mapping{"m": self},
		trace.Opaque{Value: self},
		trace.Message{Parts: []any{self}},
		list,
		panicky{},
		trace.Opaque{Value: panicky{}},
		c,
		deep,
		map[string]any{"ch": make(chan int), "fn": func() {}},
		[]any{math.Inf(-1), custom{}},
	}
	for _, in := range inputs {
		var out any
		require.NotPanics(t, func() { out = Reduce(in) })
		_, err := json.Marshal(out)
		assert.NoError(t, err, "reduced %T must be JSON-safe", in)
	}
}

// --- snapshot ---

func TestSnapshot(t *testing.T) {
	got := Snapshot(map[string]any{"output": map[string]any{
		"draft": "d", "__next": "researcher", "END": 1, "__end__": 2,
	}})
	assert.Equal(t, map[string]any{"draft": "d"}, got)

	assert.Nil(t, Snapshot(map[string]any{"output": map[string]any{"__next": "x"}}))
	assert.Nil(t, Snapshot(map[string]any{"output": "text"}))
	assert.Nil(t, Snapshot(nil))
}

// --- emitter ---

type scriptedRunner struct {
	events []trace.Event
	err    error
	ranCtx context.Context
}

func (r *scriptedRunner) Run(ctx context.Context, question string) (types.RunResult, error) {
	r.ranCtx = ctx
	ctx = trace.WithRunID(ctx, "run-1")
	for _, ev := range r.events {
		if ctx.Err() != nil {
			return types.RunResult{RunID: "run-1"}, ctx.Err()
		}
		trace.Emit(ctx, ev)
	}
	return types.RunResult{RunID: "run-1", FinalState: types.NewState(question)}, r.err
}

func nodeEvents() []trace.Event {
	return []trace.Event{
		{Kind: trace.ChainStart, Name: trace.GraphName},
		{Kind: trace.ChainStart, Name: "verifier", Metadata: map[string]any{trace.MetaNode: "verifier"}},
		{Kind: trace.ChainEnd, Name: "verifier", Metadata: map[string]any{trace.MetaNode: "verifier"},
			Data: map[string]any{"output": map[string]any{"final": "answer", "__next": "__end__"}}},
		{Kind: trace.ChainEnd, Name: trace.GraphName, Data: map[string]any{"output": trace.Mapping{"final": "answer"}}},
	}
}

func TestStreamOrdersRecords(t *testing.T) {
	var sunk []Record
	sink := SinkFunc(func(_ context.Context, rec Record) error {
		sunk = append(sunk, rec)
		return errors.New("sink down")
	})
	e := NewEmitter(&scriptedRunner{events: nodeEvents()}, nil, sink)

	var got []Record
	res, err := e.Stream(context.Background(), "q", func(rec Record) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err, "sink errors never fail a run")
	assert.Equal(t, "run-1", res.RunID)

	require.Len(t, got, 4)
	assert.Equal(t, got, sunk)
	for i, rec := range got {
		assert.Equal(t, i, rec.StepIndex)
		assert.Equal(t, "run-1", rec.RunID)
		assert.Positive(t, rec.TS)
	}
	assert.Nil(t, got[0].StateSnapshot)
	assert.Equal(t, map[string]any{"final": "answer"}, got[2].StateSnapshot)
	assert.Nil(t, got[3].StateSnapshot, "the root chain has no node")
	assert.Equal(t, "verifier", got[2].Node())

	_, err = json.Marshal(got)
	assert.NoError(t, err)
}

func TestStreamSendErrorCancelsRun(t *testing.T) {
	r := &scriptedRunner{events: nodeEvents()}
	e := NewEmitter(r, nil)

	sent := 0
	_, err := e.Stream(context.Background(), "q", func(Record) error {
		sent++
		return errors.New("broken pipe")
	})

	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Equal(t, 1, sent, "nothing is sent after the first failure")
	assert.ErrorIs(t, r.ranCtx.Err(), context.Canceled)
}

func TestRunUsesSinksOnly(t *testing.T) {
	n := 0
	e := NewEmitter(&scriptedRunner{events: nodeEvents(), err: errors.New("node synthesizer: boom")}, nil,
		SinkFunc(func(context.Context, Record) error { n++; return nil }))

	_, err := e.Run(context.Background(), "q")
	assert.EqualError(t, err, "node synthesizer: boom")
	assert.Equal(t, 4, n)
}
