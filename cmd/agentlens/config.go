// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/secrets"
	"github.com/pdiddy/agentlens/pkg/types"
)

// setDefaults registers every configuration key with its default so that
// environment variables bind even when no config file sets the key.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("search.timeout", d.Search.Timeout)
	v.SetDefault("search.user_agent", d.Search.UserAgent)
	v.SetDefault("search.enable_tavily", d.Search.EnableTavily)
	v.SetDefault("search.tavily_api_key", d.Search.TavilyAPIKey)
	v.SetDefault("search.enable_duckduckgo", d.Search.EnableDuckDuckGo)
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("search.queries_per_second", d.Search.QueriesPerSecond)

	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.max_chars", d.Fetch.MaxChars)

	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.api_key", d.AI.APIKey)
	v.SetDefault("ai.base_url", d.AI.BaseURL)
	v.SetDefault("ai.temperature", d.AI.Temperature)

	v.SetDefault("pipeline.max_retries", d.Pipeline.MaxRetries)
	v.SetDefault("pipeline.run_timeout", d.Pipeline.RunTimeout)

	v.SetDefault("telemetry.db_path", d.Telemetry.DBPath)
	v.SetDefault("telemetry.project", d.Telemetry.Project)

	v.SetDefault("server.addr", d.Server.Addr)
}

// loadConfig decodes the merged file, environment and flag configuration and
// fills missing API keys from the secrets directory. Tavily is disabled when
// no key is available so searches go straight to DuckDuckGo.
func loadConfig(v *viper.Viper, log *zap.Logger) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)

	if cfg.Search.EnableTavily && cfg.Search.TavilyAPIKey == "" {
		log.Info("no Tavily API key, using DuckDuckGo only")
		cfg.Search.EnableTavily = false
	}
	return cfg, nil
}
