// Package feed is the external-facing boundary of the visualizer: it decodes
// the JSON agent-state feed into registry mutations through the event
// ingestor, and exposes the current state over HTTP and WebSocket for render
// clients.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aexis-io/aexis/core"
	"github.com/aexis-io/aexis/model"
)

// Envelope frames every feed message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound message types.
const (
	TypeSnapshot         = "snapshot"
	TypeUpdate           = "update"
	TypePayloadArrival   = "payload_arrival"
	TypePayloadDeparture = "payload_departure"
)

// TypeFrame is the outbound per-frame render message.
const TypeFrame = "frame"

// Coordinate is the wire form of a 2D position.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Location is the wire form of an agent's reported residency.
type Location struct {
	Type       string      `json:"type"` // "node" | "edge"
	NodeID     string      `json:"node_id,omitempty"`
	EdgeID     string      `json:"edge_id,omitempty"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
	Distance   float64     `json:"distance,omitempty"`
}

// AgentState is one agent's reported state: a full-snapshot entry, or the
// body of an incremental update.
type AgentState struct {
	Kind     string            `json:"kind,omitempty"`
	Location *Location         `json:"location,omitempty"`
	Velocity *float64          `json:"velocity,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// Update is a single incremental position event.
type Update struct {
	AgentID string `json:"agent_id"`
	AgentState
}

// Snapshot is a full-state snapshot keyed by agent ID.
type Snapshot map[string]AgentState

// PayloadArrival announces a payload waiting at a node.
type PayloadArrival struct {
	PayloadID string `json:"payload_id"`
	NodeID    string `json:"node_id"`
	Kind      string `json:"kind"`
}

// PayloadDeparture removes a waiting payload.
type PayloadDeparture struct {
	PayloadID string `json:"payload_id"`
}

// toModelUpdate converts a wire agent state into the strict internal
// representation. Shape problems surface later as ingestor rejections; this
// conversion only maps fields, it does not judge them.
func toModelUpdate(agentID string, s AgentState) model.AgentUpdate {
	u := model.AgentUpdate{
		AgentID:  agentID,
		Kind:     model.AgentKindUnknown,
		Velocity: s.Velocity,
		Metadata: s.Meta,
	}
	if s.Kind != "" {
		u.Kind = model.ParseAgentKind(s.Kind)
	}
	if s.Location != nil {
		loc := &model.LocationUpdate{
			NodeID:   s.Location.NodeID,
			SpineID:  s.Location.EdgeID,
			Distance: s.Location.Distance,
		}
		switch s.Location.Type {
		case "node":
			loc.Type = model.LocationNode
		case "edge":
			loc.Type = model.LocationEdge
		default:
			loc.Type = model.LocationUnknown
		}
		if s.Location.Coordinate != nil {
			loc.Coordinate = &model.Coordinate{
				X: s.Location.Coordinate.X,
				Y: s.Location.Coordinate.Y,
			}
		}
		u.Location = loc
	}
	return u
}

// Dispatch decodes one feed message and applies it through the ingestor.
// Unknown envelope types and undecodable payloads return an error; per-agent
// rejections inside a snapshot do not (the ingestor already isolates them).
func Dispatch(ctx context.Context, ing *core.Ingestor, raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("feed: decode envelope: %w", err)
	}

	switch env.Type {
	case TypeSnapshot:
		var snap Snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			return fmt.Errorf("feed: decode snapshot: %w", err)
		}
		states := make(map[string]model.AgentUpdate, len(snap))
		for id, s := range snap {
			states[id] = toModelUpdate(id, s)
		}
		ing.ApplySnapshot(ctx, states)
		return nil

	case TypeUpdate:
		var u Update
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return fmt.Errorf("feed: decode update: %w", err)
		}
		// Rejections are the ingestor's business; the stream stays up.
		_ = ing.ApplyUpdate(ctx, toModelUpdate(u.AgentID, u.AgentState))
		return nil

	case TypePayloadArrival:
		var p PayloadArrival
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("feed: decode payload arrival: %w", err)
		}
		_ = ing.ApplyPayloadArrival(ctx, model.PayloadArrival{
			PayloadID: p.PayloadID,
			NodeID:    p.NodeID,
			Kind:      model.PayloadKind(p.Kind),
		})
		return nil

	case TypePayloadDeparture:
		var p PayloadDeparture
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("feed: decode payload departure: %w", err)
		}
		_ = ing.ApplyPayloadDeparture(ctx, p.PayloadID)
		return nil

	default:
		return fmt.Errorf("feed: unknown message type %q", env.Type)
	}
}
