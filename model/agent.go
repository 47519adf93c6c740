package model

import "time"

// AgentKind categorizes the payload an agent carries.
type AgentKind int

const (
	AgentKindUnknown AgentKind = iota
	AgentKindPassenger
	AgentKindCargo
	AgentKindMixed
)

// ParseAgentKind maps a feed kind tag onto the closed AgentKind set.
// Unrecognized tags map to AgentKindUnknown.
func ParseAgentKind(s string) AgentKind {
	switch s {
	case "passenger":
		return AgentKindPassenger
	case "cargo":
		return AgentKindCargo
	case "mixed":
		return AgentKindMixed
	default:
		return AgentKindUnknown
	}
}

// String returns the feed tag for the kind.
func (k AgentKind) String() string {
	switch k {
	case AgentKindPassenger:
		return "passenger"
	case AgentKindCargo:
		return "cargo"
	case AgentKindMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// ResidencyType discriminates the Residency union.
type ResidencyType int

const (
	// ResidencyAtNode pins the agent to a node coordinate.
	ResidencyAtNode ResidencyType = iota
	// ResidencyOnSpine positions the agent along a spine by scalar distance.
	ResidencyOnSpine
)

// Residency is an agent's current location: either pinned to a node, or
// on a directed spine identified by its "u->v" key.
type Residency struct {
	Type    ResidencyType
	NodeID  string // set when Type == ResidencyAtNode
	SpineID string // set when Type == ResidencyOnSpine
}

// AtNode constructs a node residency.
func AtNode(nodeID string) Residency {
	return Residency{Type: ResidencyAtNode, NodeID: nodeID}
}

// OnSpine constructs a spine residency.
func OnSpine(spineID string) Residency {
	return Residency{Type: ResidencyOnSpine, SpineID: spineID}
}

// Agent is a mobile entity moving over the network.
//
// AuthoritativeDistance is the most recent distance reported by the feed and
// is never extrapolated. VisualDistance is owned by the motion reconciler and
// is the only field the render sink reads for geometry; the event ingestor
// touches it only through the residency-transition reset rules.
type Agent struct {
	ID        string
	Kind      AgentKind
	Residency Residency

	AuthoritativeDistance float64
	VisualDistance        float64
	Velocity              float64 // distance units per second, last reported

	// Pinned is the visual position while residency is AtNode. It is set
	// synchronously at ingest time, independent of frame timing.
	Pinned Coordinate

	LastUpdate time.Time
	Metadata   map[string]string
}
