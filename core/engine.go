package core

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aexis-io/aexis/internal/logging"
	"github.com/aexis-io/aexis/model"
)

// EngineMetrics is the metrics surface the engine drives. Satisfied by
// observability.Collector; nil disables metrics.
type EngineMetrics interface {
	IngestRecorder
	ObserveFrame(seconds float64)
	SetTopologyCounts(nodes, spines int)
	SetRegistryCounts(agents, payloads int)
}

// RenderState is what the render sink needs to place and orient one drawable
// for one frame: a world position and a unit direction.
type RenderState struct {
	AgentID  string
	Kind     model.AgentKind
	Position model.Coordinate
	Tangent  Vec2
	AtNode   bool
	NodeID   string
	SpineID  string
}

// FrameListener receives the full render output of one frame.
type FrameListener func(now time.Time, states []RenderState)

// Engine is the visualizer context object: the compiled graph, the agent
// registry, the motion reconciler, and the event ingestor, constructed once
// and passed around explicitly so independent instances can coexist.
//
// The graph pointer is swapped atomically on topology reload; a frame in
// flight keeps sampling the graph it started with and never observes a
// partially compiled one.
type Engine struct {
	graph   atomic.Pointer[Graph]
	reg     *Registry
	rc      *Reconciler
	ingest  *Ingestor
	log     logging.Logger
	metrics EngineMetrics
	tracer  trace.Tracer

	mu        sync.Mutex
	listeners []FrameListener

	// lastFrame is touched only by Frame, which must be driven from a single
	// goroutine (the frame clock).
	lastFrame time.Time
}

// NewEngine constructs an engine with an empty graph and registry. metrics
// may be nil.
func NewEngine(cfg MotionConfig, log logging.Logger, metrics EngineMetrics) *Engine {
	if log == nil {
		log = logging.Noop()
	}
	e := &Engine{
		reg:     NewRegistry(),
		rc:      NewReconciler(cfg),
		log:     log,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/aexis-io/aexis/core"),
	}
	e.graph.Store(&Graph{
		nodes:  map[string]*model.NetworkNode{},
		spines: map[string]*Spine{},
	})
	var rec IngestRecorder
	if metrics != nil {
		rec = metrics
	}
	e.ingest = NewIngestor(e.Graph, e.reg, log, rec)
	return e
}

// Graph returns the current compiled graph.
func (e *Engine) Graph() *Graph { return e.graph.Load() }

// Registry returns the agent registry.
func (e *Engine) Registry() *Registry { return e.reg }

// Ingestor returns the event ingestor boundary.
func (e *Engine) Ingestor() *Ingestor { return e.ingest }

// Reconciler returns the motion reconciler.
func (e *Engine) Reconciler() *Reconciler { return e.rc }

// AddFrameListener registers a render sink for per-frame output.
func (e *Engine) AddFrameListener(fn FrameListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// LoadTopology parses the JSON topology from r, compiles it, and swaps it in
// atomically. Agents whose spine ID no longer resolves are skipped by the
// reconciler until the next authoritative update places them again.
func (e *Engine) LoadTopology(ctx context.Context, r io.Reader) (*TopologySummary, error) {
	topo, err := ParseTopology(r)
	if err != nil {
		return nil, err
	}
	return e.SetTopology(ctx, topo), nil
}

// SetTopology compiles a topology and swaps it in atomically.
func (e *Engine) SetTopology(ctx context.Context, topo *model.Topology) *TopologySummary {
	ctx, span := e.tracer.Start(ctx, "topology.reload")
	defer span.End()

	g := CompileGraph(topo)
	e.graph.Store(g)

	summary := &TopologySummary{
		NodeIDs:  g.NodeIDs(),
		SpineIDs: g.SpineIDs(),
	}
	span.SetAttributes(
		attribute.Int("topology.nodes", len(summary.NodeIDs)),
		attribute.Int("topology.spines", len(summary.SpineIDs)),
	)
	if e.metrics != nil {
		e.metrics.SetTopologyCounts(len(summary.NodeIDs), len(summary.SpineIDs))
	}
	e.log.Info(ctx, "topology loaded",
		logging.Int("nodes", len(summary.NodeIDs)),
		logging.Int("spines", len(summary.SpineIDs)))
	return summary
}

// Frame runs one reconciler pass at the given wall-clock instant and returns
// the render states for every placeable agent, in stable agent-ID order.
// The frame delta is measured, not assumed: render tick rate is not uniform.
func (e *Engine) Frame(now time.Time) []RenderState {
	dt := 0.0
	if !e.lastFrame.IsZero() {
		dt = now.Sub(e.lastFrame).Seconds()
		if dt < 0 {
			dt = 0
		}
	}
	e.lastFrame = now

	start := time.Now()
	g := e.graph.Load()
	states := make([]RenderState, 0, e.reg.AgentCount())
	e.reg.EachAgent(func(a *model.Agent) {
		sample, ok := e.rc.Step(g, a, dt)
		if !ok {
			return
		}
		states = append(states, RenderState{
			AgentID:  a.ID,
			Kind:     a.Kind,
			Position: sample.Position,
			Tangent:  sample.Tangent,
			AtNode:   a.Residency.Type == model.ResidencyAtNode,
			NodeID:   a.Residency.NodeID,
			SpineID:  a.Residency.SpineID,
		})
	})

	if e.metrics != nil {
		e.metrics.ObserveFrame(time.Since(start).Seconds())
		e.metrics.SetRegistryCounts(e.reg.AgentCount(), e.reg.PayloadCount())
	}

	e.mu.Lock()
	listeners := make([]FrameListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()
	for _, fn := range listeners {
		fn(now, states)
	}
	return states
}
