// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitWithoutObserverIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), Event{Kind: ToolStart, Name: "search"})
	})
}

func TestEmitStampsRunIDAndTime(t *testing.T) {
	var got []Event
	ctx := WithObserver(context.Background(), FuncObserver(func(e Event) { got = append(got, e) }))
	ctx = WithRunID(ctx, "run-1")

	Emit(ctx, Event{Kind: ChainStart, Name: GraphName})

	require.Len(t, got, 1)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.False(t, got[0].Time.IsZero())
	assert.NotNil(t, got[0].Metadata)
}

func TestEmitAttributesNestedEventsToNode(t *testing.T) {
	var got []Event
	ctx := WithObserver(context.Background(), FuncObserver(func(e Event) { got = append(got, e) }))
	ctx = WithNode(ctx, "researcher")

	Emit(ctx, Event{Kind: ToolStart, Name: "tavily_search"})
	Emit(ctx, Event{Kind: ChainEnd, Name: "verifier", Metadata: map[string]any{}})

	require.Len(t, got, 2)
	assert.Equal(t, "researcher", got[0].Node())
	assert.Equal(t, "", got[1].Node(), "chain events carry their own node metadata")
}

func TestOpaqueString(t *testing.T) {
	assert.Equal(t, "[1 2]", Opaque{Value: []int{1, 2}}.String())
}

func TestUsageMap(t *testing.T) {
	u := Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 7}
	assert.Equal(t, map[string]any{"input_tokens": 3, "output_tokens": 4, "total_tokens": 7}, u.Map())
}
