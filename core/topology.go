package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aexis-io/aexis/model"
)

// TopologySummary is a small summary of what was loaded. It's mainly useful
// for logging from main().
type TopologySummary struct {
	NodeIDs  []string
	SpineIDs []string
}

// internal JSON shapes – kept unexported so the wire format can evolve
// without touching the model types.
type topologyJSON struct {
	Nodes []topologyNodeJSON `json:"nodes"`
}

type topologyNodeJSON struct {
	ID         string              `json:"id"`
	Label      string              `json:"label"`
	Coordinate coordinateJSON      `json:"coordinate"`
	Adj        []topologyAdjacency `json:"adj"`
}

type topologyAdjacency struct {
	NodeID string  `json:"node_id"`
	Weight float64 `json:"weight"`
}

type coordinateJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// stationID namespaces raw topology node IDs the way the upstream network
// data does, so feed references and topology references agree.
func stationID(raw string) string {
	if strings.HasPrefix(raw, "station_") {
		return raw
	}
	return "station_" + raw
}

// ParseTopology reads the JSON network description from r and returns the
// raw topology. It fails only on JSON / structural errors; semantic problems
// (dangling adjacency targets, degenerate geometry) are resolved by the
// compiler, not here.
func ParseTopology(r io.Reader) (*model.Topology, error) {
	var payload topologyJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("ParseTopology: decode failed: %w", err)
	}

	topo := &model.Topology{}
	for _, n := range payload.Nodes {
		if n.ID == "" {
			continue
		}
		node := &model.NetworkNode{
			ID:         stationID(n.ID),
			Label:      n.Label,
			Coordinate: model.Coordinate{X: n.Coordinate.X, Y: n.Coordinate.Y},
		}
		for _, a := range n.Adj {
			if a.NodeID == "" {
				continue
			}
			node.Adj = append(node.Adj, model.NetworkAdjacency{
				NodeID: stationID(a.NodeID),
				Weight: a.Weight,
			})
		}
		topo.Nodes = append(topo.Nodes, node)
	}
	return topo, nil
}
