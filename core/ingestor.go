package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aexis-io/aexis/internal/logging"
	"github.com/aexis-io/aexis/model"
)

var (
	ErrMalformedUpdate = errors.New("malformed update")
	ErrUnknownNode     = errors.New("update references unknown node")
	ErrUnknownSpine    = errors.New("update references unknown spine")
	ErrUnknownPayload  = errors.New("unknown payload")
)

// Ingest result labels, used for metrics and once-per-class logging.
const (
	ingestApplied  = "applied"
	ingestRejected = "rejected"
	ingestDropped  = "dropped"
)

// IngestRecorder receives ingest outcome counts. Satisfied by
// observability.Collector.
type IngestRecorder interface {
	IncIngest(result string)
}

// Ingestor is the external-facing boundary that turns inbound state updates
// into registry mutations. It validates untyped feed data into the strict
// internal representation exactly once, writes only authoritative fields
// (distance, residency, velocity, metadata), and leaves the visual distance
// to the reconciler except for the residency-transition resets.
//
// A malformed update rejects only the one agent it names; a referential miss
// (unknown node or spine) drops the update and is logged once per occurrence
// class, not per event. Neither aborts processing of other agents.
type Ingestor struct {
	graph   func() *Graph
	reg     *Registry
	log     logging.Logger
	metrics IngestRecorder
	tracer  trace.Tracer
	now     func() time.Time

	mu     sync.Mutex
	logged map[string]struct{}
}

// NewIngestor constructs an ingestor reading the current graph through
// graphFn. metrics may be nil.
func NewIngestor(graphFn func() *Graph, reg *Registry, log logging.Logger, metrics IngestRecorder) *Ingestor {
	if log == nil {
		log = logging.Noop()
	}
	return &Ingestor{
		graph:   graphFn,
		reg:     reg,
		log:     log,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/aexis-io/aexis/core"),
		now:     time.Now,
		logged:  make(map[string]struct{}),
	}
}

// ApplyUpdate applies a single incremental update: creates the agent if
// unseen, otherwise mutates only the fields present. It never removes an
// agent. The returned error classifies rejected or dropped updates and is
// informational; ingestion of other agents is unaffected either way.
func (in *Ingestor) ApplyUpdate(ctx context.Context, u model.AgentUpdate) error {
	if err := validateUpdate(u); err != nil {
		in.count(ingestRejected)
		in.logOnce(ctx, "malformed_update", "rejected malformed update",
			logging.String("agent_id", u.AgentID))
		return err
	}

	var applyErr error
	var undoCreate bool
	in.reg.UpsertAgent(u.AgentID, func(a *model.Agent, created bool) {
		applyErr = in.applyTo(a, u)
		// Don't keep an agent we could not place.
		undoCreate = applyErr != nil && created
	})
	if undoCreate {
		in.reg.RemoveAgent(u.AgentID)
	}
	if applyErr != nil {
		in.count(ingestDropped)
		in.logOnce(ctx, dropClass(applyErr), "dropped update",
			logging.String("agent_id", u.AgentID))
		return applyErr
	}
	in.count(ingestApplied)
	return nil
}

// ApplySnapshot applies a full-state snapshot keyed by agent ID: every agent
// present is created-if-absent and overwritten, and every previously-known
// agent absent from the snapshot is evicted. Malformed entries reject only
// themselves; their IDs still count as "present" so a bad record does not
// evict a live agent.
func (in *Ingestor) ApplySnapshot(ctx context.Context, states map[string]model.AgentUpdate) {
	ctx, span := in.tracer.Start(ctx, "ingest.snapshot",
		trace.WithAttributes(attribute.Int("snapshot.agents", len(states))))
	defer span.End()

	keep := make(map[string]struct{}, len(states))
	ids := make([]string, 0, len(states))
	for id := range states {
		keep[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		u := states[id]
		if u.AgentID == "" {
			u.AgentID = id
		}
		_ = in.ApplyUpdate(ctx, u)
	}

	evicted := in.reg.RetainAgents(keep)
	if len(evicted) > 0 {
		in.log.Debug(ctx, "evicted stale agents",
			logging.Int("count", len(evicted)),
			logging.Any("agent_ids", evicted))
	}
}

// ApplyPayloadArrival records a payload now waiting at a node.
func (in *Ingestor) ApplyPayloadArrival(ctx context.Context, p model.PayloadArrival) error {
	if p.PayloadID == "" || p.NodeID == "" {
		in.count(ingestRejected)
		return fmt.Errorf("%w: payload arrival missing id or node", ErrMalformedUpdate)
	}
	if _, ok := in.graph().Node(p.NodeID); !ok {
		in.count(ingestDropped)
		in.logOnce(ctx, "unknown_node", "dropped payload arrival for unknown node",
			logging.String("node_id", p.NodeID))
		return fmt.Errorf("%w: %q", ErrUnknownNode, p.NodeID)
	}
	in.reg.AddPayload(&model.StationPayload{
		ID:        p.PayloadID,
		NodeID:    p.NodeID,
		Kind:      p.Kind,
		CreatedAt: in.now(),
	})
	in.count(ingestApplied)
	return nil
}

// ApplyPayloadDeparture removes a waiting payload on a load/departure event.
func (in *Ingestor) ApplyPayloadDeparture(ctx context.Context, payloadID string) error {
	if payloadID == "" {
		in.count(ingestRejected)
		return fmt.Errorf("%w: payload departure missing id", ErrMalformedUpdate)
	}
	if !in.reg.RemovePayload(payloadID) {
		in.count(ingestDropped)
		in.logOnce(ctx, "unknown_payload", "dropped departure for unknown payload",
			logging.String("payload_id", payloadID))
		return fmt.Errorf("%w: %q", ErrUnknownPayload, payloadID)
	}
	in.count(ingestApplied)
	return nil
}

// applyTo writes the validated update onto the agent. Called with the
// registry lock held.
func (in *Ingestor) applyTo(a *model.Agent, u model.AgentUpdate) error {
	g := in.graph()
	loc := u.Location

	switch loc.Type {
	case model.LocationNode:
		// Entering (or staying at) a node pins the visual position to the
		// node coordinate immediately, independent of frame timing. A direct
		// coordinate, when present, wins over the node-ID lookup.
		var pinned model.Coordinate
		if loc.Coordinate != nil {
			pinned = *loc.Coordinate
		} else {
			node, ok := g.Node(loc.NodeID)
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownNode, loc.NodeID)
			}
			pinned = node.Coordinate
		}
		a.Residency = model.AtNode(loc.NodeID)
		a.Pinned = pinned
		a.AuthoritativeDistance = 0
		a.VisualDistance = 0

	case model.LocationEdge:
		if _, ok := g.Spine(loc.SpineID); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSpine, loc.SpineID)
		}
		sameSpine := a.Residency.Type == model.ResidencyOnSpine &&
			a.Residency.SpineID == loc.SpineID
		if sameSpine {
			a.AuthoritativeDistance = loc.Distance
		} else {
			// A new spine has no relation to the old one's scalar
			// coordinate: hard reset of both distances.
			a.Residency = model.OnSpine(loc.SpineID)
			a.AuthoritativeDistance = loc.Distance
			a.VisualDistance = loc.Distance
		}
	}

	if u.Kind != model.AgentKindUnknown {
		a.Kind = u.Kind
	}
	if u.Velocity != nil {
		a.Velocity = *u.Velocity
	}
	if len(u.Metadata) > 0 {
		if a.Metadata == nil {
			a.Metadata = make(map[string]string, len(u.Metadata))
		}
		for k, v := range u.Metadata {
			a.Metadata[k] = v
		}
	}
	a.LastUpdate = in.now()
	return nil
}

// validateUpdate checks that an update carries the required fields for its
// declared shape.
func validateUpdate(u model.AgentUpdate) error {
	if u.AgentID == "" {
		return fmt.Errorf("%w: missing agent id", ErrMalformedUpdate)
	}
	loc := u.Location
	if loc == nil {
		return fmt.Errorf("%w: missing location", ErrMalformedUpdate)
	}
	switch loc.Type {
	case model.LocationNode:
		if loc.NodeID == "" && loc.Coordinate == nil {
			return fmt.Errorf("%w: node location without node id or coordinate", ErrMalformedUpdate)
		}
	case model.LocationEdge:
		if loc.SpineID == "" {
			return fmt.Errorf("%w: edge location without edge id", ErrMalformedUpdate)
		}
		if math.IsNaN(loc.Distance) || math.IsInf(loc.Distance, 0) || loc.Distance < 0 {
			return fmt.Errorf("%w: edge location with invalid distance", ErrMalformedUpdate)
		}
	default:
		return fmt.Errorf("%w: unknown location type", ErrMalformedUpdate)
	}
	if u.Velocity != nil && (math.IsNaN(*u.Velocity) || math.IsInf(*u.Velocity, 0)) {
		return fmt.Errorf("%w: invalid velocity", ErrMalformedUpdate)
	}
	return nil
}

func dropClass(err error) string {
	switch {
	case errors.Is(err, ErrUnknownNode):
		return "unknown_node"
	case errors.Is(err, ErrUnknownSpine):
		return "unknown_spine"
	default:
		return "dropped"
	}
}

func (in *Ingestor) count(result string) {
	if in.metrics != nil {
		in.metrics.IncIngest(result)
	}
}

// logOnce logs at warn level the first time a class is seen and stays silent
// afterwards, so a misbehaving feed cannot flood the log.
func (in *Ingestor) logOnce(ctx context.Context, class, msg string, fields ...logging.Field) {
	in.mu.Lock()
	_, seen := in.logged[class]
	if !seen {
		in.logged[class] = struct{}{}
	}
	in.mu.Unlock()
	if seen {
		return
	}
	fields = append(fields, logging.String("class", class))
	in.log.Warn(ctx, msg, fields...)
}
