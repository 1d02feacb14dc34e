// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/agentlens/pkg/types"
)

// End is the routing target that terminates a run.
const End = "__end__"

// Node ids of the research graph.
const (
	NodeSupervisor  = "supervisor"
	NodeResearcher  = "researcher"
	NodeSynthesizer = "synthesizer"
	NodeVerifier    = "verifier"
)

// ErrUnknownNode is returned when an edge or route names a node that was
// never added.
var ErrUnknownNode = errors.New("unknown node")

// NodeFunc runs one pipeline stage. It receives the current accumulator and
// returns its replacement.
type NodeFunc func(ctx context.Context, s types.State) (types.State, error)

// RouteFunc picks the next node from a node's output.
type RouteFunc func(s types.State) string

type node struct {
	id          string
	description string
	run         NodeFunc
}

type conditional struct {
	route   RouteFunc
	targets map[string]string // target -> label
}

// Graph is a small state graph: named nodes joined by unconditional or
// conditional edges, starting at an entry point. Nodes run one at a time.
type Graph struct {
	order        []string
	nodes        map[string]node
	edges        map[string]string
	conditionals map[string]conditional
	entry        string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:        make(map[string]node),
		edges:        make(map[string]string),
		conditionals: make(map[string]conditional),
	}
}

// AddNode registers a node. Adding an existing id replaces it.
func (g *Graph) AddNode(id, description string, fn NodeFunc) {
	if _, ok := g.nodes[id]; !ok {
		g.order = append(g.order, id)
	}
	g.nodes[id] = node{id: id, description: description, run: fn}
}

// AddEdge routes from to to unconditionally.
func (g *Graph) AddEdge(from, to string) {
	g.edges[from] = to
}

// AddConditionalEdge routes from by calling route on the node output.
// targets lists every value route may return, mapped to a display label
// used by Topology.
func (g *Graph) AddConditionalEdge(from string, route RouteFunc, targets map[string]string) {
	g.conditionals[from] = conditional{route: route, targets: targets}
}

// SetEntryPoint sets the first node of a run.
func (g *Graph) SetEntryPoint(id string) {
	g.entry = id
}

// Validate checks that the entry point and every edge endpoint exist.
func (g *Graph) Validate() error {
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("entry point %q: %w", g.entry, ErrUnknownNode)
	}
	check := func(id string) error {
		if id == End {
			return nil
		}
		if _, ok := g.nodes[id]; !ok {
			return fmt.Errorf("edge target %q: %w", id, ErrUnknownNode)
		}
		return nil
	}
	for from, to := range g.edges {
		if err := check(from); err != nil {
			return err
		}
		if err := check(to); err != nil {
			return err
		}
	}
	for from, c := range g.conditionals {
		if err := check(from); err != nil {
			return err
		}
		for to := range c.targets {
			if err := check(to); err != nil {
				return err
			}
		}
	}
	return nil
}

// next returns the node that follows id given its output s.
func (g *Graph) next(id string, s types.State) (string, error) {
	if c, ok := g.conditionals[id]; ok {
		to := c.route(s)
		if _, known := c.targets[to]; !known {
			return "", fmt.Errorf("route from %q to %q: %w", id, to, ErrUnknownNode)
		}
		return to, nil
	}
	if to, ok := g.edges[id]; ok {
		return to, nil
	}
	return End, nil
}
