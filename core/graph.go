package core

import (
	"sort"

	"github.com/aexis-io/aexis/model"
)

// Graph is the compiled, read-only network model: nodes by ID and directed
// spines by their "u->v" key. A Graph is never mutated after compilation;
// topology reloads compile a fresh Graph and swap it in atomically, so
// consumers can hold a *Graph across a frame without seeing partial state.
type Graph struct {
	nodes  map[string]*model.NetworkNode
	spines map[string]*Spine
}

// SpineID returns the directed spine key for travel from node u to node v.
func SpineID(u, v string) string {
	return u + "->" + v
}

// Node looks up a node by ID. A missing key means "not yet loaded" or
// "already removed", never a fatal condition.
func (g *Graph) Node(id string) (*model.NetworkNode, bool) {
	if g == nil {
		return nil, false
	}
	n, ok := g.nodes[id]
	return n, ok
}

// Spine looks up a directed spine by its "u->v" key.
func (g *Graph) Spine(id string) (*Spine, bool) {
	if g == nil {
		return nil, false
	}
	s, ok := g.spines[id]
	return s, ok
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// SpineCount returns the number of directed spines in the graph.
func (g *Graph) SpineCount() int {
	if g == nil {
		return 0
	}
	return len(g.spines)
}

// NodeIDs returns all node IDs in stable sorted order.
func (g *Graph) NodeIDs() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SpineIDs returns all spine keys in stable sorted order.
func (g *Graph) SpineIDs() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.spines))
	for id := range g.spines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
