// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/pkg/types"
)

// OpenAIModel calls the OpenAI chat completions API.
type OpenAIModel struct {
	client      *openai.Client
	model       string
	temperature float32
	log         *zap.Logger
}

// NewOpenAIModel returns a model for cfg. The API key is trimmed; an empty
// key yields a model whose calls fail with ErrMissingCredentials, so the
// caller decides whether that is fatal. A non-nil httpClient replaces the
// default transport. Temperature is used as configured, zero included;
// types.DefaultConfig supplies the default.
func NewOpenAIModel(cfg types.AIConfig, httpClient *http.Client, log *zap.Logger) *OpenAIModel {
	if log == nil {
		log = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = types.DefaultModel
	}
	m := &OpenAIModel{model: model, temperature: cfg.Temperature, log: log}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		log.Warn("no model API key configured; model calls will fail", zap.String("model", model))
		return m
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	m.client = openai.NewClientWithConfig(clientCfg)
	return m
}

// Name returns the configured model identifier.
func (m *OpenAIModel) Name() string { return m.model }

// Complete sends prompt as a single user message.
func (m *OpenAIModel) Complete(ctx context.Context, prompt string) (Completion, error) {
	if m.client == nil {
		return Completion{}, ErrMissingCredentials
	}

	// The client omits a zero temperature, which the API reads as 1.
	temperature := m.temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		m.log.Error("chat completion failed", zap.String("model", m.model), zap.Error(err))
		return Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("chat completion: no choices returned")
	}

	m.log.Debug("chat completion",
		zap.String("model", m.model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}
