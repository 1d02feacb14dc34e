// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exports prometheus counters and histograms derived from
// the emitted trace records of pipeline runs.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/agentlens/internal/events"
	"github.com/pdiddy/agentlens/internal/pipeline"
	"github.com/pdiddy/agentlens/internal/trace"
)

// Run outcome label values.
const (
	OutcomePassed    = "passed"
	OutcomeExhausted = "exhausted"
	OutcomeError     = "error"
)

// Metrics is an events.Sink that maintains run, node, provider and model
// collectors in its own registry.
type Metrics struct {
	reg *prometheus.Registry

	runs         *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	providers    *prometheus.CounterVec
	retries      prometheus.Counter
	tokens       *prometheus.CounterVec
}

// New returns a Metrics with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentlens_runs_total",
			Help: "Completed pipeline runs by outcome",
		}, []string{"outcome"}),
		nodeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentlens_node_duration_seconds",
			Help:    "Time spent in one pass of a pipeline node",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"node"}),
		providers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentlens_search_calls_total",
			Help: "Search provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Name: "agentlens_quality_retries_total",
			Help: "Researcher passes triggered by a failed quality gate",
		}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentlens_model_tokens_total",
			Help: "Model tokens consumed by model name",
		}, []string{"model"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Record updates the collectors from one record. It implements events.Sink
// and never fails.
func (m *Metrics) Record(_ context.Context, rec events.Record) error {
	data := rec.DataMap()
	node := rec.Node()

	switch rec.Event {
	case trace.ChainStart:
		if rec.Name == pipeline.NodeResearcher && node == rec.Name && number(meta(rec, trace.MetaAttempt)) > 1 {
			m.retries.Inc()
		}
	case trace.ChainEnd:
		switch {
		case rec.Name == trace.GraphName && node == "":
			m.runs.WithLabelValues(outcome(data)).Inc()
		case node != "" && node == rec.Name:
			if ms, ok := data["latency_ms"]; ok {
				m.nodeDuration.WithLabelValues(node).Observe(float64(number(ms)) / 1000)
			}
		}
	case trace.ToolEnd:
		if o, ok := data["outcome"].(string); ok {
			m.providers.WithLabelValues(rec.Name, o).Inc()
		}
	case trace.ChatModelEnd:
		out, _ := data["output"].(map[string]any)
		usage, _ := out["usage_metadata"].(map[string]any)
		if n := number(usage["total_tokens"]); n > 0 {
			m.tokens.WithLabelValues(rec.Name).Add(float64(n))
		}
	}
	return nil
}

// outcome classifies a finished run from its root chain-end data.
func outcome(data map[string]any) string {
	if _, failed := data["error"]; failed {
		return OutcomeError
	}
	out, _ := data["output"].(map[string]any)
	v, _ := out["verification"].(map[string]any)
	if exhausted, _ := v["exhausted"].(bool); exhausted {
		return OutcomeExhausted
	}
	return OutcomePassed
}

func meta(rec events.Record, key string) any {
	m, _ := rec.Metadata.(map[string]any)
	return m[key]
}

func number(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
