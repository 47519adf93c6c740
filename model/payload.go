package model

import "time"

// PayloadKind categorizes a waiting station payload.
type PayloadKind string

const (
	PayloadPassenger PayloadKind = "passenger"
	PayloadCargo     PayloadKind = "cargo"
)

// StationPayload is a small entity waiting at a node (a passenger group or a
// cargo lot awaiting pickup). Payloads are keyed by their own ID, not by an
// agent ID: multiple payloads can await the same node concurrently. Their
// lifecycle is independent of agent movement.
type StationPayload struct {
	ID        string
	NodeID    string
	Kind      PayloadKind
	CreatedAt time.Time
}
