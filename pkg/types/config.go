// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "agentlens/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig holds settings for the retrieval subsystem.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// EnableTavily controls whether the primary (Tavily) provider is used.
	// It has no effect without TavilyAPIKey.
	EnableTavily bool `json:"enable_tavily" yaml:"enable_tavily" mapstructure:"enable_tavily"`

	// TavilyAPIKey authenticates against the Tavily search API.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty" mapstructure:"tavily_api_key"`

	// EnableDuckDuckGo controls whether the secondary (DuckDuckGo) provider is used.
	EnableDuckDuckGo bool `json:"enable_duckduckgo" yaml:"enable_duckduckgo" mapstructure:"enable_duckduckgo"`

	// MaxResults is the number of results requested per query (default 5).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// QueriesPerSecond paces successive queries against one provider.
	// Zero or negative disables pacing.
	QueriesPerSecond float64 `json:"queries_per_second" yaml:"queries_per_second" mapstructure:"queries_per_second"`
}

// FetchConfig holds settings for the page content fetcher.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxChars bounds the returned plain text (default 6000).
	MaxChars int `json:"max_chars" yaml:"max_chars" mapstructure:"max_chars"`
}

// AIConfig holds settings for the model client.
type AIConfig struct {
	// Model is the chat model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the model API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the API endpoint. Empty uses the provider default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Temperature is the sampling temperature (default 0.2).
	Temperature float32 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
}

// PipelineConfig bounds the verifier → researcher retry cycle.
type PipelineConfig struct {
	// MaxRetries is the number of extra researcher passes allowed after the
	// first verification fails (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RunTimeout bounds a whole run. Zero means no wall-clock limit.
	RunTimeout time.Duration `json:"run_timeout" yaml:"run_timeout" mapstructure:"run_timeout"`
}

// TelemetryConfig holds settings for the local trace store.
type TelemetryConfig struct {
	// DBPath is the sqlite database file. Empty keeps traces in memory.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// Project labels every stored trace.
	Project string `json:"project" yaml:"project" mapstructure:"project"`
}

// ServerConfig holds settings for the HTTP/WebSocket transport.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// Config groups all component configurations.
type Config struct {
	Search    SearchConfig    `json:"search" yaml:"search" mapstructure:"search"`
	Fetch     FetchConfig     `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	AI        AIConfig        `json:"ai" yaml:"ai" mapstructure:"ai"`
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry" mapstructure:"telemetry"`
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
}

// Defaults used when a configuration value is left at its zero value.
const (
	DefaultUserAgent     = "agentlens/0.1"
	DefaultModel         = "gpt-4o-mini"
	DefaultTemperature   = 0.2
	DefaultMaxResults    = 5
	DefaultMaxChars      = 6000
	DefaultFetchTimeout  = 10 * time.Second
	DefaultSearchTimeout = 30 * time.Second
	DefaultMaxRetries    = 2
	DefaultAddr          = ":8000"
	DefaultProject       = "agentlens"
)

// DefaultConfig returns the configuration used when no file, flag, or
// environment value overrides it.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			HTTPConfig:       HTTPConfig{Timeout: DefaultSearchTimeout, UserAgent: DefaultUserAgent},
			EnableTavily:     true,
			EnableDuckDuckGo: true,
			MaxResults:       DefaultMaxResults,
			QueriesPerSecond: 2,
		},
		Fetch: FetchConfig{
			HTTPConfig: HTTPConfig{Timeout: DefaultFetchTimeout, UserAgent: DefaultUserAgent},
			MaxChars:   DefaultMaxChars,
		},
		AI: AIConfig{
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
		},
		Pipeline: PipelineConfig{
			MaxRetries: DefaultMaxRetries,
		},
		Telemetry: TelemetryConfig{
			Project: DefaultProject,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
		},
	}
}
