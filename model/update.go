package model

// LocationType discriminates the location carried by an inbound update.
type LocationType int

const (
	LocationUnknown LocationType = iota
	LocationNode
	LocationEdge
)

// LocationUpdate is the residency-indicating part of an inbound update.
// For node locations the optional Coordinate, when present, is used for an
// immediate snap instead of a node-ID lookup.
type LocationUpdate struct {
	Type       LocationType
	NodeID     string
	SpineID    string
	Coordinate *Coordinate
	Distance   float64
}

// AgentUpdate is one agent's authoritative state as reported by the external
// feed, already validated into the closed internal representation. It serves
// both as a full-snapshot entry and as an incremental update; optional fields
// are nil / zero-valued when absent.
type AgentUpdate struct {
	AgentID  string
	Kind     AgentKind // AgentKindUnknown when the update carries no kind
	Location *LocationUpdate
	Velocity *float64
	Metadata map[string]string
}

// PayloadArrival announces a payload now waiting at a node.
type PayloadArrival struct {
	PayloadID string
	NodeID    string
	Kind      PayloadKind
}
