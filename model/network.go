package model

// NetworkAdjacency is a directed adjacency entry from one node to another.
// Absence of the reverse entry means the reverse direction is not traversable.
type NetworkAdjacency struct {
	NodeID string
	Weight float64
}

// NetworkNode represents a topological endpoint (station) in the network.
// Nodes are immutable once loaded; identity is the ID.
type NetworkNode struct {
	ID         string
	Label      string
	Coordinate Coordinate
	Adj        []NetworkAdjacency
}

// Topology is the raw network description consumed by the path compiler:
// an ordered set of nodes with positions and directed weighted adjacency.
type Topology struct {
	Nodes []*NetworkNode
}

// Node returns the node with the given ID, or nil if it is not part of
// the topology.
func (t *Topology) Node(id string) *NetworkNode {
	if t == nil {
		return nil
	}
	for _, n := range t.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
