package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aexis-io/aexis/core"
	"github.com/aexis-io/aexis/model"
)

func newTestServer(t *testing.T) (*Server, *core.Engine) {
	t.Helper()
	engine := core.NewEngine(core.DefaultMotionConfig(), nil, nil)
	engine.SetTopology(context.Background(), lineTopology())
	return NewServer(engine, nil, nil), engine
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	var body map[string]any
	if code := getJSON(t, ts, "/healthz", &body); code != http.StatusOK {
		t.Fatalf("/healthz status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("status = %v, want ok", body["status"])
	}
	if body["nodes"].(float64) != 2 {
		t.Fatalf("nodes = %v, want 2", body["nodes"])
	}
}

func TestServer_Agents(t *testing.T) {
	s, engine := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	ctx := context.Background()

	_ = engine.Ingestor().ApplyUpdate(ctx, model.AgentUpdate{
		AgentID: "pod_1",
		Kind:    model.AgentKindPassenger,
		Location: &model.LocationUpdate{
			Type: model.LocationEdge, SpineID: "station_a->station_b", Distance: 40,
		},
	})

	var list []agentJSON
	if code := getJSON(t, ts, "/api/agents", &list); code != http.StatusOK {
		t.Fatalf("/api/agents status = %d, want 200", code)
	}
	if len(list) != 1 || list[0].ID != "pod_1" {
		t.Fatalf("agents = %+v, want [pod_1]", list)
	}
	if list[0].Kind != "passenger" || list[0].Location.EdgeID != "station_a->station_b" {
		t.Fatalf("agent = %+v", list[0])
	}

	var one agentJSON
	if code := getJSON(t, ts, "/api/agents/pod_1", &one); code != http.StatusOK {
		t.Fatalf("/api/agents/pod_1 status = %d, want 200", code)
	}
	if one.Authoritative != 40 {
		t.Fatalf("authoritative_distance = %v, want 40", one.Authoritative)
	}

	if code := getJSON(t, ts, "/api/agents/pod_missing", nil); code != http.StatusNotFound {
		t.Fatalf("missing agent status = %d, want 404", code)
	}
}

func TestServer_Stations(t *testing.T) {
	s, engine := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	_ = engine.Ingestor().ApplyPayloadArrival(context.Background(), model.PayloadArrival{
		PayloadID: "pl_1", NodeID: "station_a", Kind: model.PayloadCargo,
	})

	var list []stationJSON
	if code := getJSON(t, ts, "/api/stations", &list); code != http.StatusOK {
		t.Fatalf("/api/stations status = %d, want 200", code)
	}
	if len(list) != 2 {
		t.Fatalf("stations = %d, want 2", len(list))
	}

	var one stationJSON
	if code := getJSON(t, ts, "/api/stations/station_a", &one); code != http.StatusOK {
		t.Fatalf("/api/stations/station_a status = %d, want 200", code)
	}
	if len(one.Payloads) != 1 || one.Payloads[0].ID != "pl_1" || one.Payloads[0].Kind != "cargo" {
		t.Fatalf("payloads = %+v, want [pl_1 cargo]", one.Payloads)
	}

	if code := getJSON(t, ts, "/api/stations/station_z", nil); code != http.StatusNotFound {
		t.Fatalf("missing station status = %d, want 404", code)
	}
}

func TestServer_Topology(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	var topo topologyJSON
	if code := getJSON(t, ts, "/api/topology", &topo); code != http.StatusOK {
		t.Fatalf("/api/topology status = %d, want 200", code)
	}
	if len(topo.Nodes) != 2 || len(topo.Spines) != 2 {
		t.Fatalf("topology = %d nodes, %d spines, want 2/2", len(topo.Nodes), len(topo.Spines))
	}
	if topo.Spines[0].TotalLength != 100 {
		t.Fatalf("TotalLength = %v, want 100", topo.Spines[0].TotalLength)
	}
}

func TestServer_FrameBroadcast(t *testing.T) {
	s, engine := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	defer conn.Close()

	_ = engine.Ingestor().ApplyUpdate(context.Background(), model.AgentUpdate{
		AgentID: "pod_1",
		Location: &model.LocationUpdate{
			Type: model.LocationEdge, SpineID: "station_a->station_b", Distance: 50,
		},
	})

	// Registration of the ws connection races the dial returning; keep the
	// frame clock running until a frame lands.
	done := make(chan struct{})
	defer close(done)
	go func() {
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-tick.C:
				engine.Frame(now)
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != TypeFrame {
		t.Fatalf("type = %q, want frame", env.Type)
	}
	var frame FramePayload
	if err := json.Unmarshal(env.Data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if len(frame.Agents) != 1 {
		t.Fatalf("agents = %d, want 1", len(frame.Agents))
	}
	got := frame.Agents[0]
	if got.AgentID != "pod_1" || got.X != 50 || got.Y != 0 {
		t.Fatalf("render agent = %+v, want pod_1 at (50, 0)", got)
	}
	if got.Heading != 0 {
		t.Fatalf("heading = %v, want 0 (east)", got.Heading)
	}
}
