// Command aexis-feedsim is a synthetic stand-in for the remote authority:
// it walks a handful of agents over a topology and serves the resulting
// snapshots and position events over WebSocket, in the same wire format the
// visualizer consumes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aexis-io/aexis/core"
	"github.com/aexis-io/aexis/internal/feed"
	"github.com/aexis-io/aexis/internal/logging"
)

func main() {
	listen := flag.String("listen", ":9001", "address to serve the feed on")
	topologyPath := flag.String("topology", "configs/network.json", "path to the network JSON")
	agents := flag.Int("agents", 4, "number of simulated agents")
	tick := flag.Duration("tick", 500*time.Millisecond, "interval between feed updates")
	snapshotEvery := flag.Int("snapshot-every", 20, "emit a full snapshot every N ticks")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	f, err := os.Open(*topologyPath)
	if err != nil {
		log.Error(ctx, "failed to open topology", logging.String("error", err.Error()))
		os.Exit(1)
	}
	topo, err := core.ParseTopology(f)
	f.Close()
	if err != nil {
		log.Error(ctx, "failed to parse topology", logging.String("error", err.Error()))
		os.Exit(1)
	}
	graph := core.CompileGraph(topo)
	if graph.SpineCount() == 0 {
		log.Error(ctx, "topology has no traversable spines")
		os.Exit(1)
	}

	sim := newSimulator(graph, *agents)
	hub := newHub(log)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		ticker := time.NewTicker(*tick)
		defer ticker.Stop()
		n := 0
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				n++
				msgs := sim.step(tick.Seconds())
				if *snapshotEvery > 0 && n%*snapshotEvery == 0 {
					msgs = append(msgs, sim.snapshot())
				}
				for _, m := range msgs {
					hub.broadcast(m)
				}
			}
		}
	}()

	srv := &http.Server{Addr: *listen, Handler: hub}
	go func() {
		log.Info(ctx, "serving synthetic feed", logging.String("addr", *listen))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "feed server exited", logging.String("error", err.Error()))
			stop()
		}
	}()

	<-runCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// simAgent walks spines end to end, dwelling briefly at each node before
// picking a random outgoing spine.
type simAgent struct {
	id       string
	kind     string
	spineID  string
	distance float64
	speed    float64
	dwell    int // remaining ticks at a node
	nodeID   string
}

type simulator struct {
	graph  *core.Graph
	agents []*simAgent
	rng    *rand.Rand
}

func newSimulator(g *core.Graph, n int) *simulator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	spineIDs := g.SpineIDs()
	kinds := []string{"passenger", "cargo", "mixed"}
	sim := &simulator{graph: g, rng: rng}
	for i := 0; i < n; i++ {
		sim.agents = append(sim.agents, &simAgent{
			id:      agentID(i),
			kind:    kinds[i%len(kinds)],
			spineID: spineIDs[rng.Intn(len(spineIDs))],
			speed:   20 + rng.Float64()*30,
		})
	}
	return sim
}

func agentID(i int) string {
	return fmt.Sprintf("pod_%03d", i+1)
}

func (s *simulator) step(dt float64) [][]byte {
	var msgs [][]byte
	for _, a := range s.agents {
		if a.dwell > 0 {
			a.dwell--
			if a.dwell == 0 {
				s.depart(a)
				msgs = append(msgs, s.updateFor(a))
			}
			continue
		}
		spine, ok := s.graph.Spine(a.spineID)
		if !ok {
			continue
		}
		a.distance += a.speed * dt
		if a.distance >= spine.TotalLength {
			a.nodeID = spine.EndNodeID
			a.spineID = ""
			a.distance = 0
			a.dwell = 2 + s.rng.Intn(4)
		}
		msgs = append(msgs, s.updateFor(a))
	}
	return msgs
}

// depart picks a random outgoing spine from the agent's current node.
func (s *simulator) depart(a *simAgent) {
	node, ok := s.graph.Node(a.nodeID)
	if !ok || len(node.Adj) == 0 {
		a.dwell = 1
		return
	}
	next := node.Adj[s.rng.Intn(len(node.Adj))]
	id := core.SpineID(a.nodeID, next.NodeID)
	if _, ok := s.graph.Spine(id); !ok {
		a.dwell = 1
		return
	}
	a.spineID = id
	a.distance = 0
	a.nodeID = ""
}

func (s *simulator) stateFor(a *simAgent) feed.AgentState {
	vel := a.speed
	st := feed.AgentState{Kind: a.kind, Velocity: &vel}
	if a.spineID == "" {
		zero := 0.0
		st.Velocity = &zero
		st.Location = &feed.Location{Type: "node", NodeID: a.nodeID}
	} else {
		st.Location = &feed.Location{Type: "edge", EdgeID: a.spineID, Distance: a.distance}
	}
	return st
}

func (s *simulator) updateFor(a *simAgent) []byte {
	return envelope(feed.TypeUpdate, feed.Update{AgentID: a.id, AgentState: s.stateFor(a)})
}

func (s *simulator) snapshot() []byte {
	snap := feed.Snapshot{}
	for _, a := range s.agents {
		snap[a.id] = s.stateFor(a)
	}
	return envelope(feed.TypeSnapshot, snap)
}

func envelope(typ string, v any) []byte {
	data, _ := json.Marshal(v)
	out, _ := json.Marshal(feed.Envelope{Type: typ, Data: data})
	return out
}

// hub fans feed messages out to every connected subscriber.
type hub struct {
	log      logging.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newHub(log logging.Logger) *hub {
	return &hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.log.Info(r.Context(), "subscriber connected")

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(c)
		}
	}
}
