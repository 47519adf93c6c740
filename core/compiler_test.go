package core

import (
	"testing"

	"github.com/aexis-io/aexis/model"
)

func TestCompileGraph_DirectedKeys(t *testing.T) {
	topo := &model.Topology{Nodes: []*model.NetworkNode{
		{
			ID:         "station_a",
			Coordinate: model.Coordinate{X: 0, Y: 0},
			Adj:        []model.NetworkAdjacency{{NodeID: "station_b"}},
		},
		{
			ID:         "station_b",
			Coordinate: model.Coordinate{X: 100, Y: 0},
			Adj:        []model.NetworkAdjacency{{NodeID: "station_a"}},
		},
	}}
	g := CompileGraph(topo)

	if g.SpineCount() != 2 {
		t.Fatalf("SpineCount() = %d, want 2", g.SpineCount())
	}
	fwd, ok := g.Spine("station_a->station_b")
	if !ok {
		t.Fatalf("forward spine missing")
	}
	rev, ok := g.Spine("station_b->station_a")
	if !ok {
		t.Fatalf("reverse spine missing")
	}
	if fwd.Segments[0].Tangent != (Vec2{X: 1, Y: 0}) {
		t.Fatalf("forward tangent = %+v, want (1,0)", fwd.Segments[0].Tangent)
	}
	if rev.Segments[0].Tangent != (Vec2{X: -1, Y: 0}) {
		t.Fatalf("reverse tangent = %+v, want (-1,0)", rev.Segments[0].Tangent)
	}
}

// Absence of the reverse adjacency entry means no reverse spine exists.
func TestCompileGraph_AsymmetricAdjacency(t *testing.T) {
	g := twoNodeGraph(t)
	if _, ok := g.Spine("station_b->station_a"); ok {
		t.Fatalf("reverse spine compiled without a reverse adjacency entry")
	}
}

func TestCompileGraph_SkipsDanglingAndDegenerate(t *testing.T) {
	topo := &model.Topology{Nodes: []*model.NetworkNode{
		{
			ID:         "station_a",
			Coordinate: model.Coordinate{X: 0, Y: 0},
			Adj: []model.NetworkAdjacency{
				{NodeID: "station_missing"},
				{NodeID: "station_twin"},
			},
		},
		{
			// Same coordinate as station_a: the only segment is zero-length.
			ID:         "station_twin",
			Coordinate: model.Coordinate{X: 0, Y: 0},
		},
	}}
	g := CompileGraph(topo)
	if g.SpineCount() != 0 {
		t.Fatalf("SpineCount() = %d, want 0 (dangling and degenerate entries skipped)", g.SpineCount())
	}
	if g.NodeCount() != 2 {
		t.Fatalf("NodeCount() = %d, want 2", g.NodeCount())
	}
}

func TestCompileGraph_TotalLengthMatchesSegments(t *testing.T) {
	topo := &model.Topology{Nodes: []*model.NetworkNode{
		{
			ID:         "station_a",
			Coordinate: model.Coordinate{X: 0, Y: 0},
			Adj:        []model.NetworkAdjacency{{NodeID: "station_b"}},
		},
		{
			ID:         "station_b",
			Coordinate: model.Coordinate{X: 3, Y: 4},
		},
	}}
	g := CompileGraph(topo)
	spine, ok := g.Spine("station_a->station_b")
	if !ok {
		t.Fatalf("spine missing")
	}
	sum := 0.0
	for _, seg := range spine.Segments {
		sum += seg.Length
	}
	if !floatNear(spine.TotalLength, sum) {
		t.Fatalf("TotalLength = %v, want sum of segments %v", spine.TotalLength, sum)
	}
	if !floatNear(spine.TotalLength, 5) {
		t.Fatalf("TotalLength = %v, want 5", spine.TotalLength)
	}
}

// Adjacency weights are normalized to Euclidean distance at compile time,
// without mutating the caller's topology.
func TestCompileGraph_NormalizesWeights(t *testing.T) {
	topo := &model.Topology{Nodes: []*model.NetworkNode{
		{
			ID:         "station_a",
			Coordinate: model.Coordinate{X: 0, Y: 0},
			Adj:        []model.NetworkAdjacency{{NodeID: "station_b", Weight: 1}},
		},
		{
			ID:         "station_b",
			Coordinate: model.Coordinate{X: 60, Y: 80},
		},
	}}
	g := CompileGraph(topo)

	node, ok := g.Node("station_a")
	if !ok {
		t.Fatalf("station_a missing from graph")
	}
	if !floatNear(node.Adj[0].Weight, 100) {
		t.Fatalf("compiled weight = %v, want 100", node.Adj[0].Weight)
	}
	if topo.Nodes[0].Adj[0].Weight != 1 {
		t.Fatalf("compiler mutated the input topology weight: %v", topo.Nodes[0].Adj[0].Weight)
	}
}

func TestCompileGraph_NilTopology(t *testing.T) {
	g := CompileGraph(nil)
	if g.NodeCount() != 0 || g.SpineCount() != 0 {
		t.Fatalf("nil topology compiled to non-empty graph")
	}
	if _, ok := g.Node("anything"); ok {
		t.Fatalf("empty graph resolved a node")
	}
}
