package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/aexis-io/aexis/core"
	"github.com/aexis-io/aexis/internal/logging"
	"github.com/aexis-io/aexis/internal/observability"
	"github.com/aexis-io/aexis/model"
)

const writeWait = 5 * time.Second

// Server exposes the visualizer state: REST endpoints for agents, stations,
// and topology, plus a WebSocket stream of per-frame render states for
// render clients. It is a read-only surface; all mutation flows through the
// feed subscriber.
type Server struct {
	engine    *core.Engine
	log       logging.Logger
	collector *observability.Collector
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewServer constructs a server and hooks it into the engine's frame output.
func NewServer(engine *core.Engine, log logging.Logger, collector *observability.Collector) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		engine:    engine,
		log:       log,
		collector: collector,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
	engine.AddFrameListener(s.broadcastFrame)
	return s
}

// Router builds the HTTP routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	if s.collector != nil {
		r.Use(s.collector.Middleware)
		r.Handle("/metrics", s.collector.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/agents", s.handleAgents).Methods(http.MethodGet)
	r.HandleFunc("/api/agents/{id}", s.handleAgent).Methods(http.MethodGet)
	r.HandleFunc("/api/stations", s.handleStations).Methods(http.MethodGet)
	r.HandleFunc("/api/stations/{id}", s.handleStation).Methods(http.MethodGet)
	r.HandleFunc("/api/topology", s.handleTopology).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	return r
}

type agentJSON struct {
	ID            string            `json:"id"`
	Kind          string            `json:"kind"`
	Location      Location          `json:"location"`
	Authoritative float64           `json:"authoritative_distance"`
	Visual        float64           `json:"visual_distance"`
	Velocity      float64           `json:"velocity"`
	LastUpdate    time.Time         `json:"last_update"`
	Meta          map[string]string `json:"meta,omitempty"`
}

type stationJSON struct {
	ID         string        `json:"id"`
	Label      string        `json:"label,omitempty"`
	Coordinate Coordinate    `json:"coordinate"`
	Payloads   []payloadJSON `json:"payloads"`
}

type payloadJSON struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

type spineJSON struct {
	ID          string  `json:"id"`
	StartNodeID string  `json:"start_node_id"`
	EndNodeID   string  `json:"end_node_id"`
	TotalLength float64 `json:"total_length"`
}

type topologyJSON struct {
	Nodes  []stationJSON `json:"nodes"`
	Spines []spineJSON   `json:"spines"`
}

func agentToJSON(a model.Agent) agentJSON {
	out := agentJSON{
		ID:            a.ID,
		Kind:          a.Kind.String(),
		Authoritative: a.AuthoritativeDistance,
		Visual:        a.VisualDistance,
		Velocity:      a.Velocity,
		LastUpdate:    a.LastUpdate,
		Meta:          a.Metadata,
	}
	switch a.Residency.Type {
	case model.ResidencyAtNode:
		out.Location = Location{
			Type:       "node",
			NodeID:     a.Residency.NodeID,
			Coordinate: &Coordinate{X: a.Pinned.X, Y: a.Pinned.Y},
		}
	case model.ResidencyOnSpine:
		out.Location = Location{
			Type:     "edge",
			EdgeID:   a.Residency.SpineID,
			Distance: a.VisualDistance,
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"agents": s.engine.Registry().AgentCount(),
		"nodes":  s.engine.Graph().NodeCount(),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.engine.Registry().Agents()
	out := make([]agentJSON, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentToJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, ok := s.engine.Registry().Agent(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		return
	}
	writeJSON(w, http.StatusOK, agentToJSON(a))
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	g := s.engine.Graph()
	out := make([]stationJSON, 0, g.NodeCount())
	for _, id := range g.NodeIDs() {
		if node, ok := g.Node(id); ok {
			out = append(out, s.stationToJSON(node))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	node, ok := s.engine.Graph().Node(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "station not found"})
		return
	}
	writeJSON(w, http.StatusOK, s.stationToJSON(node))
}

func (s *Server) stationToJSON(node *model.NetworkNode) stationJSON {
	payloads := s.engine.Registry().PayloadsAtNode(node.ID)
	pj := make([]payloadJSON, 0, len(payloads))
	for _, p := range payloads {
		pj = append(pj, payloadJSON{ID: p.ID, Kind: string(p.Kind), CreatedAt: p.CreatedAt})
	}
	return stationJSON{
		ID:         node.ID,
		Label:      node.Label,
		Coordinate: Coordinate{X: node.Coordinate.X, Y: node.Coordinate.Y},
		Payloads:   pj,
	}
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	g := s.engine.Graph()
	out := topologyJSON{
		Nodes:  make([]stationJSON, 0, g.NodeCount()),
		Spines: make([]spineJSON, 0, g.SpineCount()),
	}
	for _, id := range g.NodeIDs() {
		if node, ok := g.Node(id); ok {
			out.Nodes = append(out.Nodes, s.stationToJSON(node))
		}
	}
	for _, id := range g.SpineIDs() {
		if sp, ok := g.Spine(id); ok {
			out.Spines = append(out.Spines, spineJSON{
				ID:          sp.ID,
				StartNodeID: sp.StartNodeID,
				EndNodeID:   sp.EndNodeID,
				TotalLength: sp.TotalLength,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// RenderAgent is the outbound wire form of one agent's frame state.
type RenderAgent struct {
	AgentID string  `json:"agent_id"`
	Kind    string  `json:"kind"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"` // radians from +X axis
	AtNode  bool    `json:"at_node"`
	NodeID  string  `json:"node_id,omitempty"`
	EdgeID  string  `json:"edge_id,omitempty"`
}

// FramePayload is the outbound per-frame message body.
type FramePayload struct {
	Timestamp time.Time     `json:"timestamp"`
	Agents    []RenderAgent `json:"agents"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", logging.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	clients := len(s.conns)
	s.mu.Unlock()
	s.log.Debug(r.Context(), "render client connected", logging.Int("clients", clients))

	// Reader loop: we ignore client messages but need to service control
	// frames and notice disconnects.
	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// broadcastFrame fans one frame's render states out to every connected
// client. It runs on the frame-clock goroutine; a slow or dead client is
// dropped rather than allowed to stall the frame.
func (s *Server) broadcastFrame(now time.Time, states []core.RenderState) {
	s.mu.Lock()
	n := len(s.conns)
	s.mu.Unlock()
	if n == 0 {
		return
	}

	agents := make([]RenderAgent, 0, len(states))
	for _, st := range states {
		agents = append(agents, RenderAgent{
			AgentID: st.AgentID,
			Kind:    st.Kind.String(),
			X:       st.Position.X,
			Y:       st.Position.Y,
			Heading: st.Tangent.Angle(),
			AtNode:  st.AtNode,
			NodeID:  st.NodeID,
			EdgeID:  st.SpineID,
		})
	}
	data, err := json.Marshal(Envelope{Type: TypeFrame, Data: mustMarshal(FramePayload{
		Timestamp: now,
		Agents:    agents,
	})})
	if err != nil {
		return
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			s.drop(c)
		}
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
