package core

import (
	"sort"
	"sync"

	"github.com/aexis-io/aexis/model"
)

// Registry is the thread-safe store of live agents and waiting station
// payloads. All access goes through these methods; the internal mutex
// guarantees that every mutation (one inbound update, one frame step)
// is applied atomically before the next reader observes it.
type Registry struct {
	mu sync.RWMutex

	agents   map[string]*model.Agent
	payloads map[string]*model.StationPayload

	// payloadSeq preserves insertion order among payloads waiting at the
	// same node, for display offsetting.
	payloadSeq map[string]int64
	nextSeq    int64
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents:     make(map[string]*model.Agent),
		payloads:   make(map[string]*model.StationPayload),
		payloadSeq: make(map[string]int64),
	}
}

// Agent returns a copy of the agent with the given ID.
func (r *Registry) Agent(id string) (model.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return model.Agent{}, false
	}
	return *a, true
}

// UpsertAgent fetches the agent, creating it when absent, and applies fn
// while the registry lock is held. fn is told whether the agent was created
// by this call.
func (r *Registry) UpsertAgent(id string, fn func(a *model.Agent, created bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		a = &model.Agent{ID: id}
		r.agents[id] = a
	}
	fn(a, !ok)
}

// UpdateAgent applies fn to an existing agent under the registry lock and
// reports whether the agent exists.
func (r *Registry) UpdateAgent(id string, fn func(*model.Agent)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return false
	}
	fn(a)
	return true
}

// RemoveAgent deletes an agent; removing an unknown ID is a no-op.
func (r *Registry) RemoveAgent(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
}

// RetainAgents removes every agent whose ID is absent from keep and returns
// the evicted IDs. This is the stale-entry eviction half of full-snapshot
// ingestion: a set reconciliation, not a merge.
func (r *Registry) RetainAgents(keep map[string]struct{}) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id := range r.agents {
		if _, ok := keep[id]; !ok {
			delete(r.agents, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// EachAgent applies fn to every agent in stable ID order while the registry
// lock is held. Each invocation runs to completion before the next begins,
// which is the ordering discipline the frame pass relies on.
func (r *Registry) EachAgent(fn func(*model.Agent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fn(r.agents[id])
	}
}

// AgentCount returns the number of live agents.
func (r *Registry) AgentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Agents returns a copy of every agent in stable ID order.
func (r *Registry) Agents() []model.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddPayload stores a waiting payload, overwriting any previous payload with
// the same ID.
func (r *Registry) AddPayload(p *model.StationPayload) {
	if p == nil || p.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payloads[cp.ID] = &cp
	if _, ok := r.payloadSeq[cp.ID]; !ok {
		r.nextSeq++
		r.payloadSeq[cp.ID] = r.nextSeq
	}
}

// RemovePayload deletes a payload by its own ID, reporting whether it existed.
func (r *Registry) RemovePayload(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.payloads[id]
	delete(r.payloads, id)
	delete(r.payloadSeq, id)
	return ok
}

// PayloadsAtNode returns copies of the payloads waiting at a node, in
// insertion order.
func (r *Registry) PayloadsAtNode(nodeID string) []model.StationPayload {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.StationPayload
	for _, p := range r.payloads {
		if p.NodeID == nodeID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.payloadSeq[out[i].ID] < r.payloadSeq[out[j].ID]
	})
	return out
}

// PayloadCount returns the number of waiting payloads.
func (r *Registry) PayloadCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.payloads)
}
