// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import "sort"

// RetryLabel labels the verifier to researcher edge.
const RetryLabel = "retry if issues"

// TopologyNode is a node in a graph schema.
type TopologyNode struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// TopologyEdge is an edge in a graph schema. Edges into End are omitted;
// a node without an outgoing edge terminates the run.
type TopologyEdge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Topology is a graph schema for visualisation clients.
type Topology struct {
	Nodes []TopologyNode `json:"nodes" yaml:"nodes"`
	Edges []TopologyEdge `json:"edges" yaml:"edges"`
}

// Topology describes g: nodes in insertion order, unconditional edges
// following that order, then conditional edges sorted by target.
func (g *Graph) Topology() Topology {
	t := Topology{Nodes: []TopologyNode{}, Edges: []TopologyEdge{}}
	for _, id := range g.order {
		t.Nodes = append(t.Nodes, TopologyNode{ID: id, Label: id})
	}
	for _, from := range g.order {
		if to, ok := g.edges[from]; ok && to != End {
			t.Edges = append(t.Edges, TopologyEdge{Source: from, Target: to})
		}
		c, ok := g.conditionals[from]
		if !ok {
			continue
		}
		targets := make([]string, 0, len(c.targets))
		for to := range c.targets {
			if to != End {
				targets = append(targets, to)
			}
		}
		sort.Strings(targets)
		for _, to := range targets {
			t.Edges = append(t.Edges, TopologyEdge{Source: from, Target: to, Label: c.targets[to]})
		}
	}
	return t
}

// DefaultTopology is the fixed schema of the research graph, served when
// no live graph can be described.
func DefaultTopology() Topology {
	return Topology{
		Nodes: []TopologyNode{
			{ID: NodeSupervisor, Label: NodeSupervisor},
			{ID: NodeResearcher, Label: NodeResearcher},
			{ID: NodeSynthesizer, Label: NodeSynthesizer},
			{ID: NodeVerifier, Label: NodeVerifier},
		},
		Edges: []TopologyEdge{
			{Source: NodeSupervisor, Target: NodeResearcher},
			{Source: NodeResearcher, Target: NodeSynthesizer},
			{Source: NodeSynthesizer, Target: NodeVerifier},
			{Source: NodeVerifier, Target: NodeResearcher, Label: RetryLabel},
		},
	}
}

// SchemaFor describes g, falling back to DefaultTopology when g is nil or
// has no nodes.
func SchemaFor(g *Graph) Topology {
	if g == nil {
		return DefaultTopology()
	}
	t := g.Topology()
	if len(t.Nodes) == 0 {
		return DefaultTopology()
	}
	return t
}
