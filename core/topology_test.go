package core

import (
	"strings"
	"testing"
)

func TestParseTopology_NamespacesStationIDs(t *testing.T) {
	const doc = `{
		"nodes": [
			{"id": "central", "label": "Central", "coordinate": {"x": 0, "y": 0},
			 "adj": [{"node_id": "north", "weight": 3}]},
			{"id": "station_north", "label": "North", "coordinate": {"x": 0, "y": 50}}
		]
	}`
	topo, err := ParseTopology(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
	if len(topo.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(topo.Nodes))
	}
	if topo.Nodes[0].ID != "station_central" {
		t.Fatalf("ID = %q, want station_central", topo.Nodes[0].ID)
	}
	// An already-prefixed ID is not double-prefixed.
	if topo.Nodes[1].ID != "station_north" {
		t.Fatalf("ID = %q, want station_north", topo.Nodes[1].ID)
	}
	// Adjacency targets are namespaced the same way, so edges resolve.
	if got := topo.Nodes[0].Adj[0].NodeID; got != "station_north" {
		t.Fatalf("adjacency target = %q, want station_north", got)
	}
}

func TestParseTopology_SkipsEmptyEntries(t *testing.T) {
	const doc = `{
		"nodes": [
			{"id": "", "coordinate": {"x": 1, "y": 1}},
			{"id": "a", "coordinate": {"x": 0, "y": 0},
			 "adj": [{"node_id": "", "weight": 1}, {"node_id": "b", "weight": 1}]},
			{"id": "b", "coordinate": {"x": 10, "y": 0}}
		]
	}`
	topo, err := ParseTopology(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
	if len(topo.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2 (empty ID dropped)", len(topo.Nodes))
	}
	if len(topo.Nodes[0].Adj) != 1 {
		t.Fatalf("adjacencies = %d, want 1 (empty target dropped)", len(topo.Nodes[0].Adj))
	}
}

func TestParseTopology_DecodeError(t *testing.T) {
	if _, err := ParseTopology(strings.NewReader(`{"nodes": [`)); err == nil {
		t.Fatalf("ParseTopology on truncated JSON succeeded")
	}
}

func TestParseTopology_CompilesEndToEnd(t *testing.T) {
	const doc = `{
		"nodes": [
			{"id": "a", "coordinate": {"x": 0, "y": 0},
			 "adj": [{"node_id": "b", "weight": 999}]},
			{"id": "b", "coordinate": {"x": 30, "y": 40},
			 "adj": [{"node_id": "a", "weight": 999}]}
		]
	}`
	topo, err := ParseTopology(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseTopology: %v", err)
	}
	g := CompileGraph(topo)
	if g.SpineCount() != 2 {
		t.Fatalf("SpineCount() = %d, want 2", g.SpineCount())
	}
	spine, ok := g.Spine(SpineID("station_a", "station_b"))
	if !ok {
		t.Fatalf("spine missing")
	}
	// Weight normalization replaces the declared 999 with the Euclidean 50.
	if spine.TotalLength != 50 {
		t.Fatalf("TotalLength = %v, want 50", spine.TotalLength)
	}
	node, _ := g.Node("station_a")
	if node.Adj[0].Weight != 50 {
		t.Fatalf("normalized weight = %v, want 50", node.Adj[0].Weight)
	}
}
