// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/secrets"
	"github.com/pdiddy/agentlens/pkg/types"
)

func TestReadStateAcceptsJSONAndYAML(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"json", `{"question":"cats and dogs","draft":"dogs are loyal","citations":[{"url":"http://a"}]}`},
		{"yaml", "question: cats and dogs\ndraft: dogs are loyal\ncitations:\n  - url: http://a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readState(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, "cats and dogs", got["question"])
			assert.Len(t, got["citations"], 1)
		})
	}

	_, err := readState(strings.NewReader("question: [unterminated"))
	assert.Error(t, err)
}

func TestWriteFormats(t *testing.T) {
	v := types.DriftReport{DriftScore: 0.5, Flags: []string{"too shallow"}}

	var js bytes.Buffer
	require.NoError(t, write(&js, formatJSON, v))
	assert.Contains(t, js.String(), `"drift_score": 0.5`)

	var ys bytes.Buffer
	require.NoError(t, write(&ys, formatYAML, v))
	assert.Contains(t, ys.String(), "drift_score: 0.5")
	assert.Contains(t, ys.String(), "- too shallow")
}

func TestLoadConfig(t *testing.T) {
	v := viper.New()
	setDefaults(v, types.DefaultConfig())
	v.Set("pipeline.run_timeout", "90s")
	v.Set("search.max_results", 3)

	loadedSecrets = map[string]string{secrets.OpenAIKey: "sk-test"}
	t.Cleanup(func() { loadedSecrets = nil })

	cfg, err := loadConfig(v, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Pipeline.RunTimeout)
	assert.Equal(t, types.DefaultMaxRetries, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	assert.Equal(t, types.DefaultSearchTimeout, cfg.Search.Timeout)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.False(t, cfg.Search.EnableTavily, "tavily needs a key")
	assert.True(t, cfg.Search.EnableDuckDuckGo)
	assert.Equal(t, types.DefaultAddr, cfg.Server.Addr)
}

func TestLoadConfigKeepsTavilyWithKey(t *testing.T) {
	v := viper.New()
	setDefaults(v, types.DefaultConfig())
	v.Set("search.tavily_api_key", "tvly-key")

	cfg, err := loadConfig(v, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, cfg.Search.EnableTavily)
}
