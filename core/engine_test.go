package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aexis-io/aexis/model"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(DefaultMotionConfig(), nil, nil)
	e.SetTopology(context.Background(), &model.Topology{Nodes: []*model.NetworkNode{
		{
			ID:         "station_a",
			Coordinate: model.Coordinate{X: 0, Y: 0},
			Adj:        []model.NetworkAdjacency{{NodeID: "station_b", Weight: 1}},
		},
		{
			ID:         "station_b",
			Coordinate: model.Coordinate{X: 100, Y: 0},
		},
	}})
	return e
}

func TestFrame_MeasuredDelta(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	v := 10.0
	u := model.AgentUpdate{
		AgentID:  "pod_1",
		Location: &model.LocationUpdate{Type: model.LocationEdge, SpineID: "station_a->station_b", Distance: 0},
		Velocity: &v,
	}
	if err := e.Ingestor().ApplyUpdate(ctx, u); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	// Keep the authority moving with the extrapolation so correction does not
	// pull the visual distance back.
	e.Registry().UpdateAgent("pod_1", func(a *model.Agent) { a.AuthoritativeDistance = 5 })

	t0 := time.Now()
	states := e.Frame(t0)
	if len(states) != 1 {
		t.Fatalf("states = %d, want 1", len(states))
	}

	// First frame has no predecessor: dt is zero, no extrapolation, and the
	// correction pulls 15% of the 5-unit error.
	a, _ := e.Registry().Agent("pod_1")
	if !floatNear(a.VisualDistance, 0.75) {
		t.Fatalf("VisualDistance after first frame = %v, want 0.75", a.VisualDistance)
	}

	// Second frame half a second later extrapolates 10 * 0.5 = 5 units.
	before := a.VisualDistance
	e.Registry().UpdateAgent("pod_1", func(a *model.Agent) { a.AuthoritativeDistance = before + 5 })
	e.Frame(t0.Add(500 * time.Millisecond))
	a, _ = e.Registry().Agent("pod_1")
	if !floatNear(a.VisualDistance, before+5) {
		t.Fatalf("VisualDistance = %v, want %v", a.VisualDistance, before+5)
	}
}

func TestFrame_SkipsUnresolvableSpine(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_ = e.Ingestor().ApplyUpdate(ctx, model.AgentUpdate{
		AgentID:  "pod_1",
		Location: &model.LocationUpdate{Type: model.LocationEdge, SpineID: "station_a->station_b", Distance: 10},
	})
	_ = e.Ingestor().ApplyUpdate(ctx, model.AgentUpdate{
		AgentID:  "pod_2",
		Location: &model.LocationUpdate{Type: model.LocationNode, NodeID: "station_a"},
	})

	// Reload with a topology that no longer carries the edge: pod_1 becomes
	// unplaceable and is skipped, pod_2 keeps rendering.
	e.SetTopology(ctx, &model.Topology{Nodes: []*model.NetworkNode{
		{ID: "station_a", Coordinate: model.Coordinate{X: 0, Y: 0}},
		{ID: "station_b", Coordinate: model.Coordinate{X: 100, Y: 0}},
	}})

	states := e.Frame(time.Now())
	if len(states) != 1 || states[0].AgentID != "pod_2" {
		t.Fatalf("states = %+v, want only pod_2", states)
	}
	if e.Registry().AgentCount() != 2 {
		t.Fatalf("AgentCount() = %d, want 2 (skip is not removal)", e.Registry().AgentCount())
	}
}

func TestFrame_NotifiesListeners(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_ = e.Ingestor().ApplyUpdate(ctx, model.AgentUpdate{
		AgentID:  "pod_1",
		Location: &model.LocationUpdate{Type: model.LocationNode, NodeID: "station_b"},
	})

	var gotNow time.Time
	var gotStates []RenderState
	e.AddFrameListener(func(now time.Time, states []RenderState) {
		gotNow = now
		gotStates = states
	})

	want := time.Now()
	e.Frame(want)
	if !gotNow.Equal(want) {
		t.Fatalf("listener now = %v, want %v", gotNow, want)
	}
	if len(gotStates) != 1 || gotStates[0].AgentID != "pod_1" {
		t.Fatalf("listener states = %+v, want pod_1", gotStates)
	}
	if !gotStates[0].AtNode || gotStates[0].Position != (model.Coordinate{X: 100, Y: 0}) {
		t.Fatalf("render state = %+v, want pinned at (100, 0)", gotStates[0])
	}
}

func TestFrame_StableAgentOrder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for _, id := range []string{"pod_c", "pod_a", "pod_b"} {
		_ = e.Ingestor().ApplyUpdate(ctx, model.AgentUpdate{
			AgentID:  id,
			Location: &model.LocationUpdate{Type: model.LocationNode, NodeID: "station_a"},
		})
	}
	states := e.Frame(time.Now())
	want := []string{"pod_a", "pod_b", "pod_c"}
	for i := range want {
		if states[i].AgentID != want[i] {
			t.Fatalf("order = %v, want %v", states, want)
		}
	}
}

func TestLoadTopology_FromJSON(t *testing.T) {
	e := NewEngine(DefaultMotionConfig(), nil, nil)
	const doc = `{
		"nodes": [
			{"id": "a", "label": "Alpha", "coordinate": {"x": 0, "y": 0},
			 "adj": [{"node_id": "b", "weight": 1}]},
			{"id": "b", "label": "Beta", "coordinate": {"x": 100, "y": 0}}
		]
	}`
	summary, err := e.LoadTopology(context.Background(), strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadTopology: %v", err)
	}
	if len(summary.NodeIDs) != 2 || len(summary.SpineIDs) != 1 {
		t.Fatalf("summary = %+v, want 2 nodes, 1 spine", summary)
	}
	if _, ok := e.Graph().Spine("station_a->station_b"); !ok {
		t.Fatalf("spine station_a->station_b not compiled")
	}
}

func TestLoadTopology_BadJSON(t *testing.T) {
	e := NewEngine(DefaultMotionConfig(), nil, nil)
	if _, err := e.LoadTopology(context.Background(), strings.NewReader("{nope")); err == nil {
		t.Fatalf("LoadTopology on malformed JSON succeeded")
	}
}
