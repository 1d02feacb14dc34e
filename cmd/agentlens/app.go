// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/draft"
	"github.com/pdiddy/agentlens/internal/events"
	"github.com/pdiddy/agentlens/internal/extract"
	"github.com/pdiddy/agentlens/internal/fetch"
	"github.com/pdiddy/agentlens/internal/llm"
	"github.com/pdiddy/agentlens/internal/metrics"
	"github.com/pdiddy/agentlens/internal/pipeline"
	"github.com/pdiddy/agentlens/internal/search"
	"github.com/pdiddy/agentlens/internal/telemetry"
	"github.com/pdiddy/agentlens/pkg/types"
)

// app holds the process-wide collaborators, built once per command.
type app struct {
	cfg     types.Config
	graph   *pipeline.Graph
	store   *telemetry.Store
	metrics *metrics.Metrics
	emitter *events.Emitter
}

// newApp wires the pipeline and its sinks from the loaded configuration.
func newApp(log *zap.Logger) (*app, error) {
	cfg, err := loadConfig(viper.GetViper(), log)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.New(nil, cfg.Fetch, log.Named("fetch"))
	primary, secondary := search.Providers(nil, cfg.Search, log.Named("search"))
	retriever := search.NewRetriever(fetcher,
		search.WithPrimary(primary),
		search.WithSecondary(secondary),
		search.WithQueryRate(cfg.Search.QueriesPerSecond),
		search.WithLogger(log.Named("search")),
	)

	chat := llm.NewOpenAIModel(cfg.AI, nil, log.Named("llm"))
	model := llm.Traced(chat, chat.Name())

	graph := pipeline.NewResearchGraph(pipeline.Deps{
		Retriever:  retriever,
		Extractor:  extract.New(model, log.Named("extract")),
		Drafter:    draft.New(model, log.Named("draft")),
		MaxRetries: cfg.Pipeline.MaxRetries,
		Log:        log.Named("pipeline"),
	})
	runner, err := pipeline.NewRunner(graph, cfg.Pipeline.RunTimeout, log.Named("pipeline"))
	if err != nil {
		return nil, err
	}

	store, err := telemetry.Open(cfg.Telemetry, log.Named("telemetry"))
	if err != nil {
		return nil, fmt.Errorf("opening trace store: %w", err)
	}
	m := metrics.New()

	return &app{
		cfg:     cfg,
		graph:   graph,
		store:   store,
		metrics: m,
		emitter: events.NewEmitter(runner, log.Named("events"), store, m),
	}, nil
}

// Close releases the trace store.
func (a *app) Close() error {
	return a.store.Close()
}
