package core

import "github.com/aexis-io/aexis/model"

// CompileGraph converts a raw topology into the read-only Graph: one directed
// spine per adjacency entry, each a segment-decomposed polyline with
// precomputed lengths and tangents.
//
// The adjacency is not assumed to be symmetric: an edge u->v without a
// matching v->u entry compiles to a single spine, and reverse traversal is
// undefined. Adjacency entries whose target is missing from the topology, or
// whose geometry collapses to zero length, are skipped.
//
// Adjacency weights on the compiled nodes are normalized to the Euclidean
// distance between the endpoints, matching what the spine lengths report.
func CompileGraph(topo *model.Topology) *Graph {
	g := &Graph{
		nodes:  make(map[string]*model.NetworkNode),
		spines: make(map[string]*Spine),
	}
	if topo == nil {
		return g
	}

	for _, n := range topo.Nodes {
		if n == nil || n.ID == "" {
			continue
		}
		g.nodes[n.ID] = compiledNode(n)
	}

	for _, u := range g.nodes {
		for i := range u.Adj {
			adj := &u.Adj[i]
			v, ok := g.nodes[adj.NodeID]
			if !ok {
				continue
			}
			spine := buildSpine(u, v)
			if spine == nil {
				continue
			}
			g.spines[spine.ID] = spine
			adj.Weight = spine.TotalLength
		}
	}
	return g
}

// compiledNode copies a topology node so the compiled graph owns its nodes
// outright and weight normalization never mutates the caller's topology.
func compiledNode(n *model.NetworkNode) *model.NetworkNode {
	out := &model.NetworkNode{
		ID:         n.ID,
		Label:      n.Label,
		Coordinate: n.Coordinate,
	}
	out.Adj = append(out.Adj, n.Adj...)
	return out
}

// buildSpine synthesizes the directed geometric path from u to v. A spine is
// minimally a single straight segment; the segment list representation leaves
// room for multi-segment routing without changing any downstream contract.
// Returns nil when every candidate segment is degenerate.
func buildSpine(u, v *model.NetworkNode) *Spine {
	spine := &Spine{
		ID:          SpineID(u.ID, v.ID),
		StartNodeID: u.ID,
		EndNodeID:   v.ID,
	}
	if seg, ok := newSegment(u.Coordinate, v.Coordinate); ok {
		spine.Segments = append(spine.Segments, seg)
		spine.TotalLength += seg.Length
	}
	if len(spine.Segments) == 0 {
		return nil
	}
	return spine
}
